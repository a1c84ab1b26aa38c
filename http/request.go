// Package http describes the requests a client sends and where their
// responses go.
package http

import (
	"errors"
	"io"

	"github.com/haxii/fastmux/bytebufferpool"
)

// Method request method
type Method int

const (
	// MethodGet GET
	MethodGet Method = iota
	// MethodHead HEAD, no response body is received
	MethodHead
	// MethodPost POST
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	}
	return ""
}

// DefaultFieldsContentType content type of a FieldsBody unless set
const DefaultFieldsContentType = "application/x-www-form-urlencoded"

var (
	errNoURL       = errors.New("request url is empty")
	errBadMethod   = errors.New("unknown request method")
	errNilBodyBuf  = errors.New("buffer body without a buffer")
	errNilBodyFile = errors.New("file body without a file")
	errNilBodyFn   = errors.New("callback body without a callback")
)

// Request one HTTP request
type Request struct {
	// URL absolute request url
	URL string

	// Method GET if not set
	Method Method

	// ExtraHeaders `Name: value` lines sent in order after the
	// built-in ones, an empty value suppresses that header
	ExtraHeaders []string

	// NoCache ask intermediaries not to answer from a cache
	NoCache bool

	// NoEncoding ask for an identity encoded response body
	NoEncoding bool

	// NoAuth send no credentials with this request
	NoAuth bool

	// Body request body, nil for none
	Body Body
}

// Validate checks the request can be built
func (r *Request) Validate() error {
	if len(r.URL) == 0 {
		return errNoURL
	}
	if len(r.Method.String()) == 0 {
		return errBadMethod
	}
	switch b := r.Body.(type) {
	case *BufferBody:
		if b.Buf == nil {
			return errNilBodyBuf
		}
	case *FileBody:
		if b.File == nil {
			return errNilBodyFile
		}
	case *CallbackBody:
		if b.Fn == nil {
			return errNilBodyFn
		}
	}
	return nil
}

// Reset clears r for reuse
func (r *Request) Reset() {
	r.URL = ""
	r.Method = MethodGet
	r.ExtraHeaders = r.ExtraHeaders[:0]
	r.NoCache = false
	r.NoEncoding = false
	r.NoAuth = false
	r.Body = nil
}

// Body source of a request body:
// *BufferBody, *FileBody, *CallbackBody or *FieldsBody
type Body interface {
	body()
}

// BufferBody sends the content of Buf, consuming it
type BufferBody struct {
	Buf *bytebufferpool.ByteBuffer
	// ContentType sent as `Content-Type` if set
	ContentType string
}

// FileBody sends everything read from File
type FileBody struct {
	File io.Reader
}

// CallbackBody sends what Fn produces until it returns io.EOF
type CallbackBody struct {
	Fn func(p []byte) (int, error)
}

// FieldsBody sends Data as it is
type FieldsBody struct {
	Data []byte
	// ContentType DefaultFieldsContentType if not set
	ContentType string
}

func (*BufferBody) body()   {}
func (*FileBody) body()     {}
func (*CallbackBody) body() {}
func (*FieldsBody) body()   {}
