package multi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/haxii/fastmux/bytebufferpool"
	"github.com/haxii/fastmux/header"
)

var (
	errShortConsume = errors.New("body consumer took fewer bytes than offered")
	errBadProduce   = errors.New("body producer returned an invalid count")
)

type eventKind int

const (
	eventHeader eventKind = iota
	eventWrite
	eventRead
	eventDone
)

type reply struct {
	n   int
	err error
}

type event struct {
	kind  eventKind
	xfer  *transfer
	lines [][]byte
	buf   []byte
	err   error
	reply chan reply
}

// transfer one run of a handle inside a multi
type transfer struct {
	m *Multi
	h *Handle

	// copied from the handle when added, the goroutine never reads the handle
	url           string
	method        string
	noBody        bool
	header        []string
	noEncoding    bool
	noAuth        bool
	hasBody       bool
	contentLength int64
	rawHeaders    bool
	nativeHeaders bool

	// driving goroutine only
	started  bool
	finished bool
	removed  bool
	abort    *Error
	cancel   context.CancelFunc

	// written by the transfer goroutine before it posts eventDone
	responseCode int
	contentType  string
	headers      []string

	// written by the transport while connecting through a proxy
	connectCode int64

	// a request body is read by the transport's own goroutine, which can
	// overlap with the transfer goroutine waiting on a response event
	replyc chan reply
	readc  chan reply
}

func newTransfer(m *Multi, h *Handle) *transfer {
	return &transfer{
		m:             m,
		h:             h,
		url:           h.url,
		method:        h.method,
		noBody:        h.noBody,
		header:        h.header,
		noEncoding:    h.noEncoding,
		noAuth:        h.noAuth,
		hasBody:       h.read != nil,
		contentLength: h.contentLength,
		rawHeaders:    h.headerFn != nil && !h.tmpl.NativeHeaders,
		nativeHeaders: h.tmpl.NativeHeaders,
		replyc:        make(chan reply, 1),
		readc:         make(chan reply, 1),
	}
}

// call posts ev and blocks until Perform served it
func (x *transfer) call(ctx context.Context, ev *event) (int, error) {
	ev.xfer = x
	x.m.post(ev)
	select {
	case r := <-ev.reply:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (x *transfer) run(ctx context.Context) {
	ctx = context.WithValue(ctx, transferKey{}, x)
	err := x.do(ctx)
	x.m.post(&event{kind: eventDone, xfer: x, err: err})
}

func (x *transfer) do(ctx context.Context) error {
	tmpl := x.h.tmpl
	req, err := x.newRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := tmpl.client.Do(req)
	if resp != nil {
		x.responseCode = resp.StatusCode
		x.contentType = resp.Header.Get("Content-Type")
	}
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()

	if x.nativeHeaders {
		x.headers = nativeHeaderLines(resp.Header)
	} else if x.rawHeaders {
		ev := &event{kind: eventHeader, lines: rawHeaderLines(resp), reply: x.replyc}
		if _, err = x.call(ctx, ev); err != nil {
			return err
		}
	}

	if x.noBody {
		return nil
	}
	return x.receive(ctx, resp.Body)
}

func (x *transfer) newRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if x.hasBody && x.contentLength != 0 {
		body = &bodyReader{ctx: ctx, x: x}
	}
	req, err := http.NewRequestWithContext(ctx, x.method, x.url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.ContentLength = x.contentLength
	} else if x.hasBody {
		req.Body = http.NoBody
	}

	tmpl := x.h.tmpl
	if len(tmpl.UserAgent) > 0 {
		req.Header.Set("User-Agent", tmpl.UserAgent)
	}
	if x.noEncoding {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if x.noAuth {
		req.URL.User = nil
	} else if len(tmpl.Username) > 0 {
		req.SetBasicAuth(tmpl.Username, tmpl.Password)
	}

	// the first line of a name replaces the defaults, later ones add to it
	seen := make(map[string]bool, len(x.header))
	for _, line := range x.header {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = http.CanonicalHeaderKey(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		switch {
		case len(name) == 0:
		case len(value) == 0 && name == "User-Agent":
			// an absent user agent is replaced by the transport's default
			req.Header.Set(name, "")
		case len(value) == 0:
			req.Header.Del(name)
		case name == "Host":
			req.Host = value
		case seen[name]:
			req.Header.Add(name, value)
		default:
			req.Header.Set(name, value)
			seen[name] = true
		}
	}
	return req, nil
}

// receive streams the response body to the handle's consumer
func (x *transfer) receive(ctx context.Context, body io.Reader) error {
	chunk := x.m.chunks.Get()
	defer x.m.chunks.Put(chunk)
	for {
		n, err := body.Read(chunk.B)
		if n > 0 {
			ev := &event{kind: eventWrite, buf: chunk.B[:n], reply: x.replyc}
			if _, werr := x.call(ctx, ev); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// bodyReader hands the transport's buffer to the handle's producer
type bodyReader struct {
	ctx context.Context
	x   *transfer
}

func (r *bodyReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > bytebufferpool.MaxSize {
		p = p[:bytebufferpool.MaxSize]
	}
	return r.x.call(r.ctx, &event{kind: eventRead, buf: p, reply: r.x.readc})
}

func (r *bodyReader) Close() error {
	return nil
}

// rawHeaderLines the status line and header lines of every hop of resp in
// the order they were received, each hop closed by a blank line
func rawHeaderLines(resp *http.Response) [][]byte {
	var hops []*http.Response
	for r := resp; r != nil; {
		hops = append(hops, r)
		if r.Request == nil {
			break
		}
		r = r.Request.Response
	}

	var lines [][]byte
	for i := len(hops) - 1; i >= 0; i-- {
		r := hops[i]
		reason := strings.TrimPrefix(r.Status, strconv.Itoa(r.StatusCode))
		lines = append(lines, header.AppendStatusLine(nil, r.Proto, r.StatusCode,
			strings.TrimSpace(reason)))
		for _, kv := range nativeHeaderLines(r.Header) {
			lines = append(lines, []byte(kv+"\r\n"))
		}
		lines = append(lines, []byte("\r\n"))
	}
	return lines
}

// nativeHeaderLines `Name: value` fields sorted by name
func nativeHeaderLines(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range h[k] {
			lines = append(lines, k+": "+v)
		}
	}
	return lines
}
