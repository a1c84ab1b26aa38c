package multi

import (
	"github.com/google/uuid"
)

// ReadFunc produces request body bytes into p, io.EOF ends the body
type ReadFunc func(p []byte) (int, error)

// WriteFunc consumes response body bytes, consuming fewer than len(p)
// bytes aborts the transfer with WriteError
type WriteFunc func(p []byte) (int, error)

// HeaderFunc consumes one raw header line including its CRLF, an error
// aborts the transfer with WriteError
type HeaderFunc func(line []byte) error

// Handle a reusable transport session cloned from a Template.
//
// A handle is configured by its owner, registered with a Multi, and
// inspected again only after the Multi reported it complete. It must not
// be registered with two Multi at once.
type Handle struct {
	id   uuid.UUID
	tmpl *Template

	// request options
	url           string
	method        string
	noBody        bool
	header        []string
	noEncoding    bool
	noAuth        bool
	read          ReadFunc
	contentLength int64
	write         WriteFunc
	headerFn      HeaderFunc

	// results of the last transfer
	err          error
	code         Code
	responseCode int
	connectCode  int
	contentType  string
	headers      []string

	// registration
	multi   *Multi
	cleaned bool
}

func newHandle(t *Template) *Handle {
	h := &Handle{
		id:   uuid.New(),
		tmpl: t,
	}
	h.Reset()
	return h
}

// ID unique id of the session, stable across transfers
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// SetURL request url
func (h *Handle) SetURL(url string) {
	h.url = url
}

// SetMethod request method in UPPER case
func (h *Handle) SetMethod(method string) {
	h.method = method
}

// SetNoBody do not receive a response body, used by HEAD
func (h *Handle) SetNoBody(noBody bool) {
	h.noBody = noBody
}

// SetHeaders raw `Name: value` request header lines in order,
// a line with an empty value removes that header
func (h *Handle) SetHeaders(lines []string) {
	h.header = lines
}

// SetNoEncoding ask for an identity encoded response body
func (h *Handle) SetNoEncoding(v bool) {
	h.noEncoding = v
}

// SetNoAuth skip the template credentials and any url user info
func (h *Handle) SetNoAuth(v bool) {
	h.noAuth = v
}

// SetReadFunc request body producer, contentLength -1 if unknown
func (h *Handle) SetReadFunc(fn ReadFunc, contentLength int64) {
	h.read = fn
	h.contentLength = contentLength
}

// SetWriteFunc response body consumer, nil discards the body
func (h *Handle) SetWriteFunc(fn WriteFunc) {
	h.write = fn
}

// SetHeaderFunc raw header line consumer
func (h *Handle) SetHeaderFunc(fn HeaderFunc) {
	h.headerFn = fn
}

// NativeHeaders whether the handle records structured headers itself
func (h *Handle) NativeHeaders() bool {
	return h.tmpl.NativeHeaders
}

// Reset restores the template baseline and forgets the last results,
// the session id is kept
func (h *Handle) Reset() {
	h.url = ""
	h.method = "GET"
	h.noBody = false
	h.header = nil
	h.noEncoding = false
	h.noAuth = false
	h.read = nil
	h.contentLength = -1
	h.write = nil
	h.headerFn = nil
	h.resetResults()
}

func (h *Handle) resetResults() {
	h.err = nil
	h.code = OK
	h.responseCode = 0
	h.connectCode = 0
	h.contentType = ""
	h.headers = nil
}

// Cleanup destroys the session, it must not be registered
func (h *Handle) Cleanup() {
	h.Reset()
	h.cleaned = true
}

// Result result code of the last transfer
func (h *Handle) Result() Code {
	return h.code
}

// Err transport error of the last transfer, nil on success
func (h *Handle) Err() error {
	return h.err
}

// ResponseCode status code of the last received response
func (h *Handle) ResponseCode() int {
	return h.responseCode
}

// ConnectCode status code of the last proxy CONNECT response
func (h *Handle) ConnectCode() int {
	return h.connectCode
}

// ContentType content type of the last received response
func (h *Handle) ContentType() string {
	return h.contentType
}

// Headers `Name: value` fields of the final response, only recorded
// by handles whose template has NativeHeaders
func (h *Handle) Headers() []string {
	return h.headers
}
