package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// parseKeyValuePairsFromBytes parses URL-encoded key-value pairs
func parseKeyValuePairsFromBytes(data []byte) map[string]string {
	resultMap := make(map[string]string, 8)
	pairs := bytes.Split(data, []byte("&"))

	for _, pair := range pairs {
		parts := bytes.SplitN(pair, []byte("="), 2)
		if len(parts) == 2 {
			key := safeURLDecode(string(parts[0]))
			value := safeURLDecode(string(parts[1]))
			resultMap[key] = value
		}
	}
	return resultMap
}

// parseJSONBodyFromBytes parses a flat JSON object into a string map
func parseJSONBodyFromBytes(bodyData []byte) (map[string]string, error) {
	var jsonData map[string]any
	if err := json.Unmarshal(bodyData, &jsonData); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(jsonData))
	for key, value := range jsonData {
		result[key] = fmt.Sprintf("%v", value)
	}
	return result, nil
}

// parseFields reads a JSON object, or URL-encoded pairs when the body does
// not look like JSON.
func parseFields(body string) (map[string]string, error) {
	data := bytes.TrimSpace([]byte(body))
	if len(data) > 0 && data[0] == '{' {
		return parseJSONBodyFromBytes(data)
	}
	return parseKeyValuePairsFromBytes(data), nil
}

// safeURLDecode decodes a URL-encoded string, returning original on error
func safeURLDecode(encoded string) string {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}
