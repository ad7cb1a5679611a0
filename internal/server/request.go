package server

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// maxHeaderBytes caps how much is read while hunting for the header
// terminator. Peers that never send a blank line get cut off here.
const maxHeaderBytes = 1 << 20

// Request is one parsed HTTP/1.1 request. The protocol surface is small
// enough that a full HTTP library buys nothing over reading the socket
// ourselves, and it keeps the serving path free of implicit behavior
// (keep-alive, chunked bodies, continuation lines) the API never uses.
type Request struct {
	Method      string
	Path        string
	QueryString string
	Headers     map[string]string
	Body        []byte
}

// ReadRequest reconstructs one request from a raw byte stream, advancing
// through three phases: buffer until the header terminator, parse the
// request line, parse header lines (then drain a declared body). Any
// malformed input yields nil; the caller answers with a generic 400.
func ReadRequest(r io.Reader) *Request {
	buffer := readHeaderBlock(r)
	if len(buffer) == 0 {
		return nil
	}

	headerEnd := bytes.Index(buffer, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil
	}
	headerPart := string(buffer[:headerEnd])
	remaining := buffer[headerEnd+4:]

	lines := strings.Split(headerPart, "\n")
	req := parseRequestLine(strings.TrimSuffix(lines[0], "\r"))
	if req == nil {
		return nil
	}

	req.Headers = make(map[string]string)
	for _, line := range lines[1:] {
		parseHeaderLine(strings.TrimSuffix(line, "\r"), req.Headers)
	}

	req.Body = readBody(r, remaining, req.Headers)
	return req
}

// readHeaderBlock accumulates bytes until the blank-line terminator shows
// up, the cap is hit, or the peer closes.
func readHeaderBlock(r io.Reader) []byte {
	var buffer []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
			if bytes.Contains(buffer, []byte("\r\n\r\n")) {
				break
			}
			if len(buffer) > maxHeaderBytes {
				break
			}
		}
		if err != nil {
			break
		}
	}
	return buffer
}

// parseRequestLine accepts "METHOD SP TARGET SP VERSION" and rejects any
// version other than the literal HTTP/1.1 token. The target splits into
// path and query string at the first '?'.
func parseRequestLine(line string) *Request {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil
	}
	if fields[2] != "HTTP/1.1" {
		return nil
	}

	req := &Request{Method: fields[0]}
	target := fields[1]
	if q := strings.IndexByte(target, '?'); q >= 0 {
		req.Path = target[:q]
		req.QueryString = target[q+1:]
	} else {
		req.Path = target
	}
	return req
}

// parseHeaderLine folds one "Key: value" line into the header map: all
// whitespace is stripped from the key before lowercasing, the value is
// trimmed of spaces and tabs. Lines without a colon are ignored.
func parseHeaderLine(line string, headers map[string]string) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return
	}
	key := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line[:colon])
	key = strings.ToLower(key)
	if key == "" {
		return
	}
	headers[key] = strings.Trim(line[colon+1:], " \t")
}

// readBody returns the request body. A content-length header governs how
// many bytes are kept and how far the read loop continues; without one,
// whatever followed the header terminator is the body.
func readBody(r io.Reader, remaining []byte, headers map[string]string) []byte {
	lengthValue, ok := headers["content-length"]
	if !ok {
		return remaining
	}

	length, err := strconv.ParseUint(lengthValue, 10, 31)
	if err != nil {
		length = 0
	}
	if uint64(len(remaining)) >= length {
		return remaining[:length]
	}

	body := make([]byte, length)
	copy(body, remaining)
	n, _ := io.ReadFull(r, body[len(remaining):])
	return body[:len(remaining)+n]
}

// urlDecode percent-decodes a query-string component, with '+' as space.
// A '%' not followed by two hex digits passes through literally.
func urlDecode(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '+' {
			b.WriteByte(' ')
			continue
		}
		if c == '%' && i+2 < len(value) {
			hi, okHi := hexNibble(value[i+1])
			lo, okLo := hexNibble(value[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// parseQueryMap splits "a=1&b=2" into a decoded key/value map. A segment
// without '=' becomes a key with an empty value.
func parseQueryMap(query string) map[string]string {
	params := make(map[string]string)
	for _, segment := range strings.Split(query, "&") {
		if segment == "" {
			continue
		}
		if eq := strings.IndexByte(segment, '='); eq >= 0 {
			params[urlDecode(segment[:eq])] = urlDecode(segment[eq+1:])
		} else {
			params[urlDecode(segment)] = ""
		}
	}
	return params
}
