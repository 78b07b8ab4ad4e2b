package account

import "testing"

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		input    string
		expected map[string]string
	}{
		{
			"key1=value1&key2=value2",
			map[string]string{"key1": "value1", "key2": "value2"},
		},
		{
			"name=John%20Doe&age=30",
			map[string]string{"name": "John Doe", "age": "30"},
		},
		{
			"bad=%zz&novalue",
			map[string]string{"bad": "%zz"},
		},
		{
			"",
			map[string]string{},
		},
	}

	for _, test := range tests {
		result := parseKeyValuePairsFromBytes([]byte(test.input))

		if len(result) != len(test.expected) {
			t.Errorf("Expected %d pairs, got %d", len(test.expected), len(result))
			continue
		}

		for key, expectedValue := range test.expected {
			if actualValue, exists := result[key]; !exists || actualValue != expectedValue {
				t.Errorf("Expected %s=%s, got %s=%s", key, expectedValue, key, actualValue)
			}
		}
	}
}

func TestParseFields(t *testing.T) {
	result, err := parseFields(` {"name": "John", "age": 30, "active": true}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := map[string]string{
		"name":   "John",
		"age":    "30",
		"active": "true",
	}
	for key, expectedValue := range expected {
		if actualValue, exists := result[key]; !exists || actualValue != expectedValue {
			t.Errorf("Expected %s=%s, got %s=%s", key, expectedValue, key, actualValue)
		}
	}

	if _, err := parseFields(`{"name":`); err == nil {
		t.Error("Expected error for truncated JSON")
	}

	form, err := parseFields("username=tom")
	if err != nil || form["username"] != "tom" {
		t.Errorf("Expected form fallback, got %v %v", form, err)
	}
}
