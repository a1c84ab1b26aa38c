package http

import (
	"errors"
	"io"

	"github.com/haxii/fastmux/bytebufferpool"
	"github.com/haxii/fastmux/multi"
)

var (
	errNilSinkBuf  = errors.New("buffer sink without a buffer")
	errNilSinkFile = errors.New("file sink without a file")
	errNilSinkFn   = errors.New("callback sink without a callback")
)

// Response where a response goes and what came back
type Response struct {
	// Sink receives the response body, nil discards it
	Sink Sink

	// CaptureHeaders fill Headers with the fields of the final response
	CaptureHeaders bool

	// filled in once the request is done
	Result      multi.Code
	Err         error
	StatusCode  int
	ConnectCode int
	ContentType string
	Headers     []string
}

// Validate checks the sink can be written
func (r *Response) Validate() error {
	switch s := r.Sink.(type) {
	case *BufferSink:
		if s.Buf == nil {
			return errNilSinkBuf
		}
	case *FileSink:
		if s.File == nil {
			return errNilSinkFile
		}
	case *CallbackSink:
		if s.Fn == nil {
			return errNilSinkFn
		}
	}
	return nil
}

// Reset clears the outcome of the last request, the sink is kept
func (r *Response) Reset() {
	r.Result = multi.OK
	r.Err = nil
	r.StatusCode = 0
	r.ConnectCode = 0
	r.ContentType = ""
	r.Headers = r.Headers[:0]
}

// Sink destination of a response body:
// *BufferSink, *FileSink or *CallbackSink
type Sink interface {
	sink()
}

// BufferSink appends the body to Buf
type BufferSink struct {
	Buf *bytebufferpool.ByteBuffer
}

// FileSink writes the body through a buffered writer to File
type FileSink struct {
	File io.Writer
}

// CallbackSink hands the body to Fn, consuming fewer bytes than offered
// aborts the request
type CallbackSink struct {
	Fn func(p []byte) (int, error)
}

func (*BufferSink) sink()   {}
func (*FileSink) sink()     {}
func (*CallbackSink) sink() {}
