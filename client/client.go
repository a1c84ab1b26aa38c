package client

import (
	"crypto/tls"
	"time"

	"github.com/pkg/errors"

	"github.com/haxii/fastmux/bufiopool"
	"github.com/haxii/fastmux/http"
	"github.com/haxii/fastmux/log"
	"github.com/haxii/fastmux/multi"
	"github.com/haxii/fastmux/sessionpool"
	"github.com/haxii/fastmux/superproxy"
	"github.com/haxii/fastmux/usage"
)

// fallbackTimeout longest single wait when the engine has no better hint
const fallbackTimeout = 50 * time.Millisecond

// ErrStartFailed is returned when a request could not be handed to the
// engine, the request never ran and its session is idle again
var ErrStartFailed = errors.New("cannot start request")

var (
	errNilReq  = errors.New("nil request")
	errNilResp = errors.New("nil response")
	errClosed  = errors.New("client is closed")

	errUnmatched = errors.New("finished session matches no slot")
)

// Config client settings, read once by New
type Config struct {
	// UserAgent sent with every request
	UserAgent string

	// Minimum idle sessions kept alive between requests.
	//
	// sessionpool.DefaultMinSessions is used if not set.
	MinSessions int

	// Maximum requests in flight, Start waits for a free session once
	// reached.
	//
	// sessionpool.DefaultMaxSessions is used if not set.
	MaxSessions int

	// Proxy all requests go through, nil for direct connections
	Proxy *superproxy.SuperProxy

	// TLSConfig client TLS settings, see cert.MakeClientTLSConfig
	TLSConfig *tls.Config

	// CookieFile Netscape formatted cookie file loaded into the cookie jar,
	// cookies are disabled if not set
	CookieFile string

	// Username & Password basic credentials sent unless a request
	// sets NoAuth
	Username string
	Password string

	// Timeout whole request time limit, unlimited if not set
	Timeout time.Duration

	// MaxRedirects redirects followed per request, negative disables
	// following.
	//
	// multi.DefaultMaxRedirects is used if not set.
	MaxRedirects int

	// HTTP2 negotiate HTTP/2 over TLS
	HTTP2 bool

	// NativeHeaders let the sessions record response headers instead of
	// reassembling them from raw header lines
	NativeHeaders bool

	// PollInterval longest wait between two engine polls while requests
	// are in flight.
	//
	// multi.DefaultPollInterval is used if not set.
	PollInterval time.Duration

	// Logger the haxii logger is used if not set
	Logger log.Logger
}

// engine the multi-transfer facility a client drives
type engine interface {
	Add(h *multi.Handle) error
	Remove(h *multi.Handle) error
	Perform() (int, error)
	InfoRead() (*multi.Message, int)
	Timeout() time.Duration
	Fdset() (<-chan struct{}, int)
	Close()
}

// Client runs many requests at once over a bounded set of sessions.
//
// Requests are started with Start and progress only while the client is
// driven by Wait or a further Start. A Client must be used from one
// goroutine at a time, every body and header callback of its requests is
// invoked on that goroutine.
type Client struct {
	tmpl   *multi.Template
	engine engine
	pool   *sessionpool.Pool
	usage  usage.Usage

	bufioPool   *bufiopool.Pool
	logger      log.Logger
	maxSessions int
	closed      bool
}

// New initializes the session template and the engine
func New(cfg Config) (*Client, error) {
	c := &Client{
		logger:      cfg.Logger,
		maxSessions: cfg.MaxSessions,
		bufioPool:   bufiopool.New(bufiopool.MinReadBufferSize, bufiopool.MinWriteBufferSize),
	}
	if c.logger == nil {
		c.logger = &log.DefaultLogger{}
	}
	if c.maxSessions <= 0 {
		c.maxSessions = sessionpool.DefaultMaxSessions
	}

	tmpl, err := c.makeTemplate(&cfg)
	if err != nil {
		return nil, err
	}
	c.tmpl = tmpl

	m := multi.New()
	m.PollInterval = cfg.PollInterval
	m.Usage = &c.usage
	m.Logger = c.logger
	c.engine = m

	c.pool = &sessionpool.Pool{
		Template:    tmpl,
		MinSessions: cfg.MinSessions,
	}
	return c, nil
}

// Close cancels the requests still in flight and destroys every session
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.engine.Close()

	// requests in flight are never dispatched once the engine is closed
	for i := 0; i < c.pool.Len(); i++ {
		slot := c.pool.Slot(i)
		t, ok := slot.Owner.(*Transfer)
		if !ok || !slot.InUse {
			continue
		}
		t.resp.Result = multi.AbortedByCallback
		t.resp.Err = errClosed
		if t.bw != nil {
			c.bufioPool.ReleaseWriter(t.bw)
			t.bw = nil
		}
		t.finished = true
		c.pool.Release(i)
	}
	c.pool.Close()
	c.tmpl.Close()
}

// Usage bytes moved by all requests so far
func (c *Client) Usage() *usage.Usage {
	return &c.usage
}

// Do performs req and fills resp, see Wait for the returned error
func (c *Client) Do(req *http.Request, resp *http.Response) error {
	t, err := c.Start(req, resp)
	if err != nil {
		return err
	}
	return c.Wait(t)
}

// Start hands req to the engine and returns without waiting for it.
//
// Start blocks, driving the requests in flight, while MaxSessions
// requests are running. ErrStartFailed is returned if the engine refused
// the request.
func (c *Client) Start(req *http.Request, resp *http.Response) (*Transfer, error) {
	if req == nil {
		return nil, errNilReq
	}
	if resp == nil {
		return nil, errNilResp
	}
	if c.closed {
		return nil, errClosed
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid request")
	}
	if err := resp.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid response")
	}
	resp.Reset()

	for c.pool.Active >= c.maxSessions {
		c.step()
		if c.pool.Active < c.maxSessions {
			break
		}
		c.block()
	}

	i, slot, err := c.pool.Acquire()
	if err != nil {
		c.logger.Errorf(err, "cannot acquire a session for %s", req.URL)
		resp.Result = multi.FailedInit
		resp.Err = err
		return nil, ErrStartFailed
	}
	t := &Transfer{req: req, resp: resp, slot: i}
	slot.Owner = t

	h := slot.Handle
	h.Reset()
	if err := c.build(h, t); err != nil {
		c.abandon(t)
		return nil, err
	}
	if err := c.engine.Add(h); err != nil {
		c.logger.Errorf(err, "cannot add %s %s to the engine", req.Method, req.URL)
		c.abandon(t)
		resp.Result = multi.FailedInit
		resp.Err = err
		return nil, ErrStartFailed
	}
	c.logger.Debugf("request %s %s started on session %s", req.Method, req.URL, h.ID())

	c.step()
	return t, nil
}

// Wait drives every request in flight until t is done.
//
// nil is returned if the transfer of t succeeded whatever the status code,
// otherwise a *multi.Error carrying the result code.
func (c *Client) Wait(t *Transfer) error {
	for !t.finished {
		if c.closed {
			return errClosed
		}
		c.step()
		if t.finished {
			break
		}
		c.block()
	}
	if t.resp.Result != multi.OK {
		return &multi.Error{Code: t.resp.Result, Err: t.resp.Err}
	}
	return nil
}

// step runs the engine until it has nothing queued, then dispatches the
// finished requests
func (c *Client) step() {
	var (
		running int
		err     error
	)
	for {
		running, err = c.engine.Perform()
		if err != multi.ErrCallAgain {
			break
		}
	}
	if err != nil {
		c.logger.Errorf(err, "cannot perform requests")
	}
	if running < c.pool.Active {
		c.drain()
		c.pool.Cleanup()
	}
}

// block waits until the engine signals progress or its timeout expires
func (c *Client) block() {
	timeout := c.engine.Timeout()
	if timeout == 0 {
		return
	}
	if timeout < 0 {
		timeout = fallbackTimeout
	}
	ready, waitable := c.engine.Fdset()
	if waitable == 0 && timeout > fallbackTimeout {
		timeout = fallbackTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	}
}

// abandon gives the slot of a transfer that never started back
func (c *Client) abandon(t *Transfer) {
	if t.bw != nil {
		c.bufioPool.ReleaseWriter(t.bw)
		t.bw = nil
	}
	c.pool.Abandon(t.slot)
	t.finished = true
}
