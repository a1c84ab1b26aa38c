package client

import (
	"bufio"

	"github.com/haxii/fastmux/header"
	"github.com/haxii/fastmux/http"
)

// Transfer a started request
type Transfer struct {
	req  *http.Request
	resp *http.Response
	slot int

	finished  bool
	collector *header.Collector
	bw        *bufio.Writer
}

// Finished whether the response of t is complete
func (t *Transfer) Finished() bool {
	return t.finished
}

// Request the request of t
func (t *Transfer) Request() *http.Request {
	return t.req
}

// Response the response of t, its fields are final once Finished
func (t *Transfer) Response() *http.Response {
	return t.resp
}
