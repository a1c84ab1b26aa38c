package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/haxii/fastmux/bytebufferpool"
	"github.com/haxii/fastmux/cert"
	"github.com/haxii/fastmux/client"
	"github.com/haxii/fastmux/http"
	"github.com/haxii/fastmux/superproxy"
)

type options struct {
	method        string
	fields        string
	headers       []string
	proxy         string
	caFile        string
	insecure      bool
	cookieFile    string
	userAgent     string
	timeout       time.Duration
	noCache       bool
	nativeHeaders bool
	http2         bool
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "request [url]",
		Short: "Send one request through a fastmux client and print the outcome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := "https://httpbin.org/post"
			if len(args) > 0 {
				url = args[0]
			}
			return run(url, opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", "POST", "request method: GET, HEAD or POST")
	flags.StringVarP(&opts.fields, "data", "d", "q=hello+world&foo=bar", "url encoded fields sent by POST")
	flags.StringArrayVarP(&opts.headers, "header", "H", []string{"X-Foo: bar"}, "extra request header")
	flags.StringVarP(&opts.proxy, "proxy", "x", "", "proxy url, http, https or socks5")
	flags.StringVar(&opts.caFile, "cacert", "", "PEM bundle of trusted CAs")
	flags.BoolVarP(&opts.insecure, "insecure", "k", false, "skip certificate verification")
	flags.StringVarP(&opts.cookieFile, "cookie", "b", "", "Netscape cookie file")
	flags.StringVarP(&opts.userAgent, "user-agent", "A", "fastmux/1.0", "user agent")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request time limit")
	flags.BoolVar(&opts.noCache, "no-cache", false, "send Pragma: no-cache")
	flags.BoolVar(&opts.nativeHeaders, "native-headers", false, "let the sessions record response headers")
	flags.BoolVar(&opts.http2, "http2", false, "negotiate HTTP/2")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseMethod(s string) (http.Method, error) {
	for _, m := range []http.Method{http.MethodGet, http.MethodHead, http.MethodPost} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unsupported method %s", s)
}

func run(url string, opts *options) error {
	method, err := parseMethod(opts.method)
	if err != nil {
		return err
	}

	cfg := client.Config{
		UserAgent:     opts.userAgent,
		CookieFile:    opts.cookieFile,
		Timeout:       opts.timeout,
		HTTP2:         opts.http2,
		NativeHeaders: opts.nativeHeaders,
	}
	if len(opts.proxy) > 0 {
		if cfg.Proxy, err = superproxy.ParseSuperProxy(opts.proxy); err != nil {
			return err
		}
	}
	if len(opts.caFile) > 0 || opts.insecure {
		cfg.TLSConfig, err = cert.MakeClientTLSConfig(cert.ClientOptions{
			CAFile:   opts.caFile,
			Insecure: opts.insecure,
		})
		if err != nil {
			return err
		}
	}

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	req := &http.Request{
		URL:          url,
		Method:       method,
		ExtraHeaders: opts.headers,
		NoCache:      opts.noCache,
	}
	if method == http.MethodPost {
		req.Body = &http.FieldsBody{Data: []byte(opts.fields)}
	}

	body := bytebufferpool.Get()
	defer bytebufferpool.Put(body)
	resp := &http.Response{
		Sink:           &http.BufferSink{Buf: body},
		CaptureHeaders: true,
	}

	err = c.Do(req, resp)
	fmt.Printf("err: %v\n", err)
	fmt.Printf("result: %d (%s)\n", resp.Result, resp.Result)
	fmt.Printf("http status: %d\n", resp.StatusCode)
	fmt.Printf("len(response): %d\n", body.Len())
	fmt.Printf("response: %s\n", body.String())
	for _, h := range resp.Headers {
		fmt.Printf("header: %s\n", h)
	}
	u := c.Usage()
	fmt.Printf("sent %d bytes, received %d bytes\n", u.GetOutgoingSize(), u.GetIncomingSize())
	return nil
}
