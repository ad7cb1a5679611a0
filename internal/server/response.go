package server

import (
	"fmt"
	"io"
	"strconv"
)

// header is one response header in emission order.
type header struct {
	name  string
	value string
}

func statusReason(status int) string {
	switch status {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	default:
		return "OK"
	}
}

// writeResponse emits one complete HTTP/1.1 response. Content-Length and
// Connection: close are always appended; every exchange is one request,
// one response, one connection.
func writeResponse(w io.Writer, status int, headers []header, body []byte) {
	buf := make([]byte, 0, 256+len(body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(status), 10)
	buf = append(buf, ' ')
	buf = append(buf, statusReason(status)...)
	buf = append(buf, "\r\n"...)
	for _, h := range headers {
		buf = append(buf, h.name...)
		buf = append(buf, ": "...)
		buf = append(buf, h.value...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\nConnection: close\r\n\r\n"...)
	buf = append(buf, body...)
	_, _ = w.Write(buf)
}

// writeJSONError sends a canned JSON error body.
func writeJSONError(w io.Writer, status int, message string) {
	body := fmt.Sprintf(`{"error":%q}`, message)
	writeResponse(w, status, []header{{"Content-Type", "application/json"}}, []byte(body))
}
