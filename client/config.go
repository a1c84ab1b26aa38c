package client

import (
	"io"
	gohttp "net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"

	"github.com/haxii/fastmux/multi"
)

// makeTemplate turns cfg into an initialized session template
func (c *Client) makeTemplate(cfg *Config) (*multi.Template, error) {
	tmpl := &multi.Template{
		UserAgent:     cfg.UserAgent,
		TLSConfig:     cfg.TLSConfig,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Timeout:       cfg.Timeout,
		MaxRedirects:  cfg.MaxRedirects,
		HTTP2:         cfg.HTTP2,
		NativeHeaders: cfg.NativeHeaders,
	}
	if cfg.Proxy != nil {
		tmpl.Proxy = cfg.Proxy.URL()
	}
	if len(cfg.CookieFile) > 0 {
		jar, err := c.loadCookieJar(cfg.CookieFile)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load cookie file %s", cfg.CookieFile)
		}
		tmpl.Jar = jar
	}
	if err := tmpl.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot initialize session template")
	}
	return tmpl, nil
}

// loadCookieJar makes a cookie jar holding the cookies of a Netscape
// cookie file, a missing file gives an empty jar
func (c *Client) loadCookieJar(path string) (gohttp.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return jar, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := c.bufioPool.AcquireReader(f)
	defer c.bufioPool.ReleaseReader(br)

	now := time.Now()
	for {
		line, err := br.ReadString('\n')
		if u, cookie := parseCookieLine(line, now); cookie != nil {
			jar.SetCookies(u, []*gohttp.Cookie{cookie})
		}
		if err == io.EOF {
			return jar, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseCookieLine parses one line of a Netscape cookie file
//
//	domain  include-subdomains  path  secure  expires  name  value
//
// comments, blank, malformed and expired lines give a nil cookie
func parseCookieLine(line string, now time.Time) (*url.URL, *gohttp.Cookie) {
	line = strings.TrimRight(line, "\r\n")
	httpOnly := false
	if strings.HasPrefix(line, "#HttpOnly_") {
		line = strings.TrimPrefix(line, "#HttpOnly_")
		httpOnly = true
	}
	if len(line) == 0 || line[0] == '#' {
		return nil, nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, nil
	}
	domain, subdomains, path, secure := fields[0], fields[1], fields[2], fields[3]
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil || len(domain) == 0 {
		return nil, nil
	}

	cookie := &gohttp.Cookie{
		Name:     fields[5],
		Value:    fields[6],
		Path:     path,
		Secure:   strings.EqualFold(secure, "TRUE"),
		HttpOnly: httpOnly,
	}
	if expires > 0 {
		cookie.Expires = time.Unix(expires, 0)
		if cookie.Expires.Before(now) {
			return nil, nil
		}
	}
	host := strings.TrimPrefix(domain, ".")
	if strings.EqualFold(subdomains, "TRUE") {
		cookie.Domain = host
	}

	u := &url.URL{Scheme: "http", Host: host, Path: path}
	if cookie.Secure {
		u.Scheme = "https"
	}
	return u, cookie
}
