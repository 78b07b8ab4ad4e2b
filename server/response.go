package server

import (
	"bytes"
	"net/http"
	"strconv"
)

// StatusResponse returns a bodiless response such as
// "HTTP/1.1 404 Not Found\r\n\r\n".
func StatusResponse(status int) []byte {
	return []byte("HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status) + "\r\n\r\n")
}

// CreateResponseBytes builds an HTTP response with Content-Type and
// Content-Length headers. Handlers write the result to their output buffer.
func CreateResponseBytes(status int, contentType string, body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(64 + len(contentType) + len(body))
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteString(" ")
	buf.WriteString(http.StatusText(status))
	if contentType != "" {
		buf.WriteString("\r\nContent-Type: ")
		buf.WriteString(contentType)
	}
	buf.WriteString("\r\nConnection: close")
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// statusOf reads the status code from a response's status line, or 0 if
// there is none.
func statusOf(resp []byte) int {
	line := resp
	if i := bytes.IndexByte(resp, '\r'); i >= 0 {
		line = resp[:i]
	}
	fields := bytes.Fields(line)
	if len(fields) < 2 || !bytes.HasPrefix(fields[0], []byte("HTTP/")) {
		return 0
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return 0
	}
	return code
}
