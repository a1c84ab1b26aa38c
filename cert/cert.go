// Package cert builds the client TLS configuration shared by every
// session of a multiplexer.
package cert

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"github.com/haxii/fastmux/util"
)

// ClientOptions TLS settings of a client, all optional
type ClientOptions struct {
	// CAFile PEM bundle used instead of the system roots
	CAFile string
	// CertFile & KeyFile client certificate pair
	CertFile string
	KeyFile  string
	// ServerName overrides the name used for verification
	ServerName string
	// Insecure skips certificate verification
	Insecure bool
}

var errNoCertificates = errors.New("no certificates found in CA file")

// MakeClientTLSConfig make a client TLS config from opts,
// sessions resumption is enabled for every config made
func MakeClientTLSConfig(opts ClientOptions) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ClientSessionCache: tls.NewLRUClientSessionCache(0),
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.Insecure,
	}

	if len(opts.CAFile) > 0 {
		pemCerts, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, util.ErrWrapper(err, "cannot read CA file %s", opts.CAFile)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemCerts) {
			return nil, errNoCertificates
		}
		tlsConfig.RootCAs = pool
	}

	if len(opts.CertFile) > 0 || len(opts.KeyFile) > 0 {
		keyFile := opts.KeyFile
		if len(keyFile) == 0 {
			// key may be bundled with the certificate
			keyFile = opts.CertFile
		}
		pair, err := tls.LoadX509KeyPair(opts.CertFile, keyFile)
		if err != nil {
			return nil, util.ErrWrapper(err, "cannot load client certificate %s", opts.CertFile)
		}
		tlsConfig.Certificates = append(tlsConfig.Certificates, pair)
	}
	return tlsConfig, nil
}
