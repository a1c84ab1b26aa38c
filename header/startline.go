package header

import (
	"bytes"
	"errors"
	"strconv"
)

var statusLinePrefix = []byte("http/")

// IsStatusLine reports whether line is an HTTP status line
// rather than a header field, the check is case-insensitive
func IsStatusLine(line []byte) bool {
	return hasPrefixIgnoreCase(line, statusLinePrefix)
}

var (
	errNoProtocol   = errors.New("no http version provided")
	errNoStatusCode = errors.New("no status code provided")
)

// ResponseLine start line of a http response
type ResponseLine struct {
	protocol   string
	statusCode int
	reason     string
}

// Protocol HTTP/1.0, HTTP/1.1 etc.
func (l *ResponseLine) Protocol() string {
	return l.protocol
}

// StatusCode response status code
func (l *ResponseLine) StatusCode() int {
	return l.statusCode
}

// Reason the reason phrase, may be empty
func (l *ResponseLine) Reason() string {
	return l.reason
}

// Reset reset response line
func (l *ResponseLine) Reset() {
	l.protocol = ""
	l.statusCode = 0
	l.reason = ""
}

// Parse parse a single raw status line, with or without its CRLF
//
// status-line = HTTP-version SP status-code SP reason-phrase CRLF
//
// HTTP/2 status lines may omit the reason phrase.
func (l *ResponseLine) Parse(line []byte) error {
	line = trimSpace(line)
	protocolEnd := bytes.IndexByte(line, ' ')
	if protocolEnd <= 0 {
		return errNoProtocol
	}
	rest := line[protocolEnd+1:]
	codeEnd := bytes.IndexByte(rest, ' ')
	if codeEnd < 0 {
		codeEnd = len(rest)
	}
	if codeEnd == 0 {
		return errNoStatusCode
	}
	code, err := strconv.Atoi(string(rest[:codeEnd]))
	if err != nil || code <= 0 {
		return errNoStatusCode
	}
	l.protocol = string(line[:protocolEnd])
	l.statusCode = code
	l.reason = ""
	if codeEnd < len(rest) {
		l.reason = string(trimSpace(rest[codeEnd+1:]))
	}
	return nil
}

// AppendStatusLine appends `<protocol> <code> <reason>\r\n` to dst
func AppendStatusLine(dst []byte, protocol string, statusCode int, reason string) []byte {
	dst = append(dst, protocol...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(statusCode), 10)
	if len(reason) > 0 {
		dst = append(dst, ' ')
		dst = append(dst, reason...)
	}
	return append(dst, '\r', '\n')
}
