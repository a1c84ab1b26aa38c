// Package superproxy describes the upstream proxy every session of a
// multiplexer is routed through.
package superproxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ProxyType type of super proxy
type ProxyType int

const (
	// ProxyTypeHTTP a traditional http proxy
	ProxyTypeHTTP ProxyType = iota
	// ProxyTypeHTTPS a HTTPS proxy a.k.a. which supports SSL
	ProxyTypeHTTPS
	// ProxyTypeSOCKS5 a SOCKS5 proxy
	ProxyTypeSOCKS5
)

var proxySchemes = [...]string{
	ProxyTypeHTTP:   "http",
	ProxyTypeHTTPS:  "https",
	ProxyTypeSOCKS5: "socks5",
}

// String the url scheme of the proxy type
func (t ProxyType) String() string {
	if t < 0 || int(t) >= len(proxySchemes) {
		return "unknown"
	}
	return proxySchemes[t]
}

var (
	errNilHost     = errors.New("nil host provided")
	errNilPort     = errors.New("nil port provided")
	errUnknownType = errors.New("unknown proxy type")
	errBadPort     = errors.New("proxy port missing or out of range")
)

// SuperProxy chaining proxy
type SuperProxy struct {
	hostWithPort string

	// proxyType, HTTP/HTTPS/SOCKS5
	proxyType ProxyType

	user string
	pass string
}

// NewSuperProxy new a super proxy
func NewSuperProxy(proxyHost string, proxyPort uint16, proxyType ProxyType,
	user string, pass string) (*SuperProxy, error) {
	// check input vars
	if len(proxyHost) == 0 {
		return nil, errNilHost
	}
	if proxyPort == 0 {
		return nil, errNilPort
	}
	if proxyType < ProxyTypeHTTP || proxyType > ProxyTypeSOCKS5 {
		return nil, errUnknownType
	}
	return &SuperProxy{
		hostWithPort: net.JoinHostPort(proxyHost, strconv.Itoa(int(proxyPort))),
		proxyType:    proxyType,
		user:         user,
		pass:         pass,
	}, nil
}

// ParseSuperProxy parse a proxy given as `[scheme://][user:pass@]host:port`,
// the scheme defaults to http
func ParseSuperProxy(raw string) (*SuperProxy, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	proxyType := ProxyType(-1)
	for t, scheme := range proxySchemes {
		if strings.EqualFold(u.Scheme, scheme) {
			proxyType = ProxyType(t)
		}
	}
	if proxyType < 0 {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	if err != nil {
		return nil, errBadPort
	}
	pass, _ := u.User.Password()
	return NewSuperProxy(u.Hostname(), uint16(port), proxyType, u.User.Username(), pass)
}

// GetProxyType returns super proxy type
func (p *SuperProxy) GetProxyType() ProxyType {
	return p.proxyType
}

// HostWithPort host with port in string
func (p *SuperProxy) HostWithPort() string {
	return p.hostWithPort
}

// HasAuth whether user & password are set
func (p *SuperProxy) HasAuth() bool {
	return len(p.user) > 0 && len(p.pass) > 0
}

// URL the proxy as understood by the transport's proxy function,
// credentials are only included when both user and password are set
func (p *SuperProxy) URL() *url.URL {
	u := &url.URL{
		Scheme: p.proxyType.String(),
		Host:   p.hostWithPort,
	}
	if p.HasAuth() {
		u.User = url.UserPassword(p.user, p.pass)
	}
	return u
}
