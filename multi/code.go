package multi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Code result of a transfer, numbered after the codes of the libcurl
// family so logs stay comparable with other git HTTP stacks
type Code int

// result codes
const (
	OK                     Code = 0
	UnsupportedProtocol    Code = 1
	FailedInit             Code = 2
	URLMalformat           Code = 3
	CouldntResolveProxy    Code = 5
	CouldntResolveHost     Code = 6
	CouldntConnect         Code = 7
	PartialFile            Code = 18
	WriteError             Code = 23
	ReadError              Code = 26
	OperationTimedout      Code = 28
	SSLConnectError        Code = 35
	AbortedByCallback      Code = 42
	TooManyRedirects       Code = 47
	GotNothing             Code = 52
	SendError              Code = 55
	RecvError              Code = 56
	PeerFailedVerification Code = 60
)

var codeNames = map[Code]string{
	OK:                     "no error",
	UnsupportedProtocol:    "unsupported protocol",
	FailedInit:             "failed initialization",
	URLMalformat:           "URL using bad/illegal format",
	CouldntResolveProxy:    "could not resolve proxy name",
	CouldntResolveHost:     "could not resolve host name",
	CouldntConnect:         "could not connect to server",
	PartialFile:            "transferred a partial file",
	WriteError:             "failed writing received data",
	ReadError:              "failed reading request body",
	OperationTimedout:      "timeout was reached",
	SSLConnectError:        "SSL connect error",
	AbortedByCallback:      "operation was aborted by an application callback",
	TooManyRedirects:       "number of redirects hit maximum amount",
	GotNothing:             "server returned nothing",
	SendError:              "failed sending data to the peer",
	RecvError:              "failure when receiving data from the peer",
	PeerFailedVerification: "SSL peer certificate was not OK",
}

// String human readable description of c
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown error " + strconv.Itoa(int(c))
}

// Error a failed transfer, Err is the transport error behind Code
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Err.Error()
}

// Unwrap ...
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrTooManyRedirects returned by the redirect policy of a template
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// Classify maps a transport error onto a result code
func Classify(err error) Code {
	if err == nil {
		return OK
	}

	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code
	}
	if errors.Is(err, ErrTooManyRedirects) {
		return TooManyRedirects
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OperationTimedout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return URLMalformat
	}
	if strings.Contains(err.Error(), "unsupported protocol scheme") {
		return UnsupportedProtocol
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return CouldntResolveProxy
		}
		return CouldntConnect
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CouldntResolveHost
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OperationTimedout
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr), errors.As(err, &invalidCert):
		return PeerFailedVerification
	case errors.As(err, &recordErr):
		return SSLConnectError
	}

	if opErr != nil {
		switch opErr.Op {
		case "dial":
			return CouldntConnect
		case "write":
			return SendError
		}
		return RecvError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return PartialFile
	}
	if errors.Is(err, io.EOF) {
		return GotNothing
	}
	return RecvError
}
