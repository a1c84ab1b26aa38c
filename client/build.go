package client

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"

	"github.com/haxii/fastmux/header"
	"github.com/haxii/fastmux/http"
	"github.com/haxii/fastmux/multi"
	"github.com/haxii/fastmux/util"
)

const (
	pragmaNoCache  = "Pragma: no-cache"
	pragmaSuppress = "Pragma:"
)

// build configures the session h for the request and response of t
func (c *Client) build(h *multi.Handle, t *Transfer) error {
	req, resp := t.req, t.resp

	h.SetURL(req.URL)
	h.SetMethod(req.Method.String())
	if req.Method == http.MethodHead {
		h.SetNoBody(true)
	}
	h.SetNoEncoding(req.NoEncoding)
	h.SetNoAuth(req.NoAuth)

	headers := make([]string, 0, len(req.ExtraHeaders)+2)
	if req.NoCache {
		headers = append(headers, pragmaNoCache)
	} else {
		headers = append(headers, pragmaSuppress)
	}
	for _, line := range req.ExtraHeaders {
		if err := validateHeaderLine(line); err != nil {
			return err
		}
		headers = append(headers, line)
	}

	switch b := req.Body.(type) {
	case *http.BufferBody:
		if len(b.ContentType) > 0 {
			headers = append(headers, "Content-Type: "+b.ContentType)
		}
		h.SetReadFunc(b.Buf.Read, int64(b.Buf.Len()))
	case *http.FileBody:
		h.SetReadFunc(b.File.Read, -1)
	case *http.CallbackBody:
		h.SetReadFunc(b.Fn, -1)
	case *http.FieldsBody:
		contentType := b.ContentType
		if len(contentType) == 0 {
			contentType = http.DefaultFieldsContentType
		}
		headers = append(headers, "Content-Type: "+contentType)
		h.SetReadFunc(bytes.NewReader(b.Data).Read, int64(len(b.Data)))
	}
	h.SetHeaders(headers)

	switch s := resp.Sink.(type) {
	case *http.BufferSink:
		h.SetWriteFunc(s.Buf.Write)
	case *http.FileSink:
		bw := c.bufioPool.AcquireWriter(s.File)
		t.bw = bw
		h.SetWriteFunc(func(p []byte) (int, error) {
			return util.WriteWithValidation(bw, p)
		})
	case *http.CallbackSink:
		h.SetWriteFunc(s.Fn)
	}

	if resp.CaptureHeaders && !h.NativeHeaders() {
		t.collector = &header.Collector{}
		h.SetHeaderFunc(func(line []byte) error {
			t.collector.Add(line)
			return nil
		})
	}
	return nil
}

func validateHeaderLine(line string) error {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return errors.Errorf("header line %q has no colon", line)
	}
	if !httpguts.ValidHeaderFieldName(strings.TrimSpace(name)) {
		return errors.Errorf("invalid header name in %q", line)
	}
	if !httpguts.ValidHeaderFieldValue(strings.TrimSpace(value)) {
		return errors.Errorf("invalid header value in %q", line)
	}
	return nil
}
