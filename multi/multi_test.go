package multi

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haxii/fastmux/header"
	"github.com/haxii/fastmux/log"
	"github.com/haxii/fastmux/usage"
)

func newTestMulti() *Multi {
	m := New()
	m.Logger = log.NopLogger{}
	return m
}

func newTestHandle(t *testing.T, tmpl *Template) *Handle {
	if tmpl == nil {
		tmpl = &Template{UserAgent: "fastmux-test"}
	}
	require.NoError(t, tmpl.Init())
	h, err := tmpl.Clone()
	require.NoError(t, err)
	return h
}

// drive runs m until one transfer completes
func drive(t *testing.T, m *Multi) *Message {
	deadline := time.After(5 * time.Second)
	for {
		for {
			_, err := m.Perform()
			if err != ErrCallAgain {
				require.NoError(t, err)
				break
			}
		}
		if msg, _ := m.InfoRead(); msg != nil {
			return msg
		}
		ready, _ := m.Fdset()
		select {
		case <-ready:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("transfer did not finish in time")
		}
	}
}

func TestMultiGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Test", "yes")
		io.WriteString(w, "hello")
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	m.Usage = &usage.Usage{}

	h := newTestHandle(t, nil)
	var body bytes.Buffer
	var lines []string
	h.SetURL(srv.URL)
	h.SetWriteFunc(body.Write)
	h.SetHeaderFunc(func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Same(t, h, msg.Handle)
	assert.Equal(t, OK, msg.Result)
	assert.NoError(t, h.Err())
	assert.Equal(t, 200, h.ResponseCode())
	assert.Equal(t, "text/plain", h.ContentType())
	assert.Equal(t, "hello", body.String())
	require.NotEmpty(t, lines)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", lines[0])
	assert.Contains(t, lines, "X-Test: yes\r\n")
	assert.Equal(t, "\r\n", lines[len(lines)-1])
	assert.Nil(t, h.Headers())
	assert.EqualValues(t, 5, m.Usage.GetIncomingSize())
	assert.EqualValues(t, 1, m.Usage.GetRequests())
}

func TestMultiRedirectHeaderLines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Hop", "first")
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Hop", "second")
		io.WriteString(w, "done")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)

	var statusLines []string
	var c header.Collector
	h.SetURL(srv.URL + "/a")
	h.SetHeaderFunc(func(line []byte) error {
		if header.IsStatusLine(line) {
			statusLines = append(statusLines, string(line))
		}
		c.Add(line)
		return nil
	})
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	require.Equal(t, OK, msg.Result)
	assert.Equal(t, []string{"HTTP/1.1 302 Found\r\n", "HTTP/1.1 200 OK\r\n"}, statusLines)
	assert.Equal(t, 200, c.StatusCode())
	v, ok := c.Get("X-Hop")
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestMultiNativeHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, &Template{NativeHeaders: true})
	assert.True(t, h.NativeHeaders())

	called := false
	h.SetURL(srv.URL)
	h.SetHeaderFunc(func([]byte) error {
		called = true
		return nil
	})
	require.NoError(t, m.Add(h))

	drive(t, m)
	assert.False(t, called)
	assert.Contains(t, h.Headers(), "X-Test: yes")
}

func TestMultiPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	}))
	defer srv.Close()

	for _, length := range []int64{-1, 9} {
		m := newTestMulti()
		m.Usage = &usage.Usage{}
		h := newTestHandle(t, nil)

		var body bytes.Buffer
		h.SetURL(srv.URL)
		h.SetMethod(http.MethodPost)
		h.SetReadFunc(strings.NewReader("want=this").Read, length)
		h.SetWriteFunc(body.Write)
		require.NoError(t, m.Add(h))

		msg := drive(t, m)
		assert.Equal(t, OK, msg.Result)
		assert.Equal(t, "want=this", body.String())
		assert.EqualValues(t, 9, m.Usage.GetOutgoingSize())
		m.Close()
	}
}

func TestMultiHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	h.SetMethod(http.MethodHead)
	h.SetNoBody(true)
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, OK, msg.Result)
	assert.Equal(t, http.StatusNoContent, h.ResponseCode())
}

func TestMultiRequestHeaders(t *testing.T) {
	var (
		mu  sync.Mutex
		got http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Clone()
		mu.Unlock()
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, &Template{UserAgent: "agent/1", Username: "u", Password: "p"})
	h.SetURL(srv.URL)
	h.SetNoEncoding(true)
	h.SetHeaders([]string{"Pragma: no-cache", "X-Multi: 1", "X-Multi: 2", "User-Agent:"})
	require.NoError(t, m.Add(h))
	drive(t, m)

	mu.Lock()
	req := &http.Request{Header: got}
	mu.Unlock()
	require.NotNil(t, req.Header)
	assert.Empty(t, req.UserAgent())
	assert.Equal(t, "no-cache", req.Header.Get("Pragma"))
	assert.Equal(t, []string{"1", "2"}, req.Header.Values("X-Multi"))
	assert.Equal(t, "identity", req.Header.Get("Accept-Encoding"))
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)

	// reset drops the request options but keeps the session
	require.NoError(t, m.Remove(h))
	id := h.ID()
	h.Reset()
	assert.Equal(t, id, h.ID())
	h.SetURL(srv.URL)
	h.SetNoAuth(true)
	require.NoError(t, m.Add(h))
	drive(t, m)

	mu.Lock()
	req = &http.Request{Header: got}
	mu.Unlock()
	assert.Equal(t, "agent/1", req.UserAgent())
	assert.Empty(t, req.Header.Get("Pragma"))
	_, _, ok = req.BasicAuth()
	assert.False(t, ok)
}

func TestMultiWriteErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "some body")
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	h.SetWriteFunc(func(p []byte) (int, error) {
		return len(p) - 1, nil
	})
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, WriteError, msg.Result)
	assert.Error(t, h.Err())
	assert.Equal(t, 200, h.ResponseCode())
}

func TestMultiHeaderErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	h.SetHeaderFunc(func([]byte) error {
		return io.ErrClosedPipe
	})
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, WriteError, msg.Result)
	assert.ErrorIs(t, h.Err(), io.ErrClosedPipe)
}

func TestMultiReadErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	h.SetMethod(http.MethodPost)
	h.SetReadFunc(func(p []byte) (int, error) {
		return 0, io.ErrUnexpectedEOF
	}, -1)
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, ReadError, msg.Result)
	assert.ErrorIs(t, h.Err(), io.ErrUnexpectedEOF)
}

func TestMultiTooManyRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer srv.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, &Template{MaxRedirects: 2})
	h.SetURL(srv.URL)
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, TooManyRedirects, msg.Result)
	assert.Equal(t, http.StatusFound, h.ResponseCode())
}

func TestMultiProxyConnectCode(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodConnect, r.Method)
		w.WriteHeader(http.StatusProxyAuthRequired)
	}))
	defer proxy.Close()
	proxyURL, err := url.Parse(proxy.URL)
	require.NoError(t, err)

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, &Template{Proxy: proxyURL})
	h.SetURL("https://fastmux.invalid/")
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.NotEqual(t, OK, msg.Result)
	assert.Equal(t, http.StatusProxyAuthRequired, h.ConnectCode())
	assert.Zero(t, h.ResponseCode())
}

func TestMultiCouldntConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL("http://" + addr + "/")
	require.NoError(t, m.Add(h))

	msg := drive(t, m)
	assert.Equal(t, CouldntConnect, msg.Result)
	assert.Error(t, h.Err())
}

func TestMultiBadURLs(t *testing.T) {
	m := newTestMulti()
	defer m.Close()
	for raw, code := range map[string]Code{
		"http://[::1":  URLMalformat,
		"gopher://a/b": UnsupportedProtocol,
	} {
		h := newTestHandle(t, nil)
		h.SetURL(raw)
		require.NoError(t, m.Add(h))
		msg := drive(t, m)
		assert.Equal(t, code, msg.Result, raw)
		require.NoError(t, m.Remove(h))
	}
}

func TestMultiAddErrors(t *testing.T) {
	m := newTestMulti()
	m.MaxTransfers = 1

	assert.Equal(t, ErrBadHandle, m.Add(nil))

	h := newTestHandle(t, nil)
	h.SetURL("http://127.0.0.1:1/")
	require.NoError(t, m.Add(h))
	assert.Equal(t, ErrAddedAlready, m.Add(h))

	other, err := h.tmpl.Clone()
	require.NoError(t, err)
	assert.Equal(t, ErrTooManyTransfers, m.Add(other))
	assert.Equal(t, ErrNotAdded, m.Remove(other))

	require.NoError(t, m.Remove(h))
	require.NoError(t, m.Add(other))

	third, err := h.tmpl.Clone()
	require.NoError(t, err)
	third.Cleanup()
	assert.Equal(t, ErrBadHandle, m.Add(third))

	m.Close()
	assert.Equal(t, ErrClosed, m.Add(h))
	_, err = m.Perform()
	assert.Equal(t, ErrClosed, err)
}

func TestMultiTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	m := newTestMulti()
	defer m.Close()
	m.PollInterval = 20 * time.Millisecond
	assert.Equal(t, time.Duration(-1), m.Timeout())

	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	require.NoError(t, m.Add(h))
	assert.Equal(t, time.Duration(0), m.Timeout())

	running, err := m.Perform()
	require.NoError(t, err)
	assert.Equal(t, 1, running)
	assert.Equal(t, 20*time.Millisecond, m.Timeout())
	_, waitable := m.Fdset()
	assert.Equal(t, 1, waitable)
}

func TestMultiRemoveRunning(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m := newTestMulti()
	defer m.Close()
	h := newTestHandle(t, nil)
	h.SetURL(srv.URL)
	require.NoError(t, m.Add(h))

	running, err := m.Perform()
	require.NoError(t, err)
	require.Equal(t, 1, running)

	require.NoError(t, m.Remove(h))
	time.Sleep(50 * time.Millisecond)
	for {
		running, err = m.Perform()
		if err != ErrCallAgain {
			break
		}
	}
	require.NoError(t, err)
	assert.Zero(t, running)
	msg, _ := m.InfoRead()
	assert.Nil(t, msg)
}
