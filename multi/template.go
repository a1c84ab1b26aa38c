package multi

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"
)

// DefaultMaxRedirects redirects followed when Template.MaxRedirects is unset
const DefaultMaxRedirects = 20

// Template the baseline every session handle is cloned from.
//
// Fields are read once by Init, changing them afterwards has no effect.
type Template struct {
	// UserAgent identifying user agent sent unless a request overrides it
	UserAgent string

	// Proxy every transfer is routed through, nil for a direct connection
	Proxy *url.URL

	// TLSConfig client TLS settings, nil for the defaults
	TLSConfig *tls.Config

	// Jar cookie jar shared by all sessions, nil disables cookies
	Jar http.CookieJar

	// Username & Password basic credentials, skipped by NoAuth transfers
	Username string
	Password string

	// Timeout whole transfer time limit, zero means unlimited
	Timeout time.Duration

	// MaxRedirects redirects to follow, negative disables following
	//
	// DefaultMaxRedirects is used if not set.
	MaxRedirects int

	// HTTP2 negotiate HTTP/2 over TLS
	HTTP2 bool

	// NativeHeaders sessions record the structured header fields of the
	// final response themselves, otherwise raw header lines are handed to
	// the handle's header function
	NativeHeaders bool

	client *http.Client
}

type transferKey struct{}

// Init builds the shared transport, a failure here is a setup fault
func (t *Template) Init() error {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       t.TLSConfig,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		OnProxyConnectResponse: func(ctx context.Context, _ *url.URL,
			_ *http.Request, connectRes *http.Response) error {
			if xfer, ok := ctx.Value(transferKey{}).(*transfer); ok {
				atomic.StoreInt64(&xfer.connectCode, int64(connectRes.StatusCode))
			}
			return nil
		},
	}
	if t.Proxy != nil {
		tr.Proxy = http.ProxyURL(t.Proxy)
	}
	if t.HTTP2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			return errors.Wrap(err, "cannot enable http2")
		}
	}

	maxRedirects := t.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}
	t.client = &http.Client{
		Transport: tr,
		Jar:       t.Jar,
		Timeout:   t.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if maxRedirects < 0 {
				return http.ErrUseLastResponse
			}
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
	return nil
}

// Clone a fresh session handle carrying the template's baseline
func (t *Template) Clone() (*Handle, error) {
	if t.client == nil {
		return nil, errors.New("session template is not initialized")
	}
	h := newHandle(t)
	return h, nil
}

// Close drops the idle connections of the shared transport
func (t *Template) Close() {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
}
