package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"golang.org/x/net/netutil"
)

// Transport turns accepted sockets into the byte streams the connection
// pipeline reads requests from. Plain and TLS servers differ only here.
type Transport interface {
	// Listen opens the listening socket for addr
	Listen(addr string) (net.Listener, error)

	// Handshake promotes a freshly accepted connection. On error the raw
	// connection is not used by the pipeline.
	Handshake(ctx context.Context, raw net.Conn) (net.Conn, error)

	// Name identifies the transport in logs ("http", "https")
	Name() string
}

// PlainTransport serves cleartext HTTP
type PlainTransport struct {
	// MaxConnections caps concurrently open connections; 0 means no cap
	MaxConnections int
}

// Listen opens a TCP listener, limited to MaxConnections when set
func (t *PlainTransport) Listen(addr string) (net.Listener, error) {
	return listen(addr, t.MaxConnections)
}

// Handshake tunes the socket and returns it unchanged
func (t *PlainTransport) Handshake(_ context.Context, raw net.Conn) (net.Conn, error) {
	tuneConn(raw)
	return raw, nil
}

func (t *PlainTransport) Name() string { return "http" }

// TLSTransport serves HTTPS. The TLS session is established before the
// connection enters the pipeline.
type TLSTransport struct {
	Config         *tls.Config
	MaxConnections int
}

// NewTLSTransport loads the certificate and private key from disk
func NewTLSTransport(certFile, keyFile string, maxConnections int) (*TLSTransport, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	return &TLSTransport{
		Config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"http/1.1"},
			MinVersion:   tls.VersionTLS12,
		},
		MaxConnections: maxConnections,
	}, nil
}

// Listen opens a TCP listener; the TLS layer is added per connection in
// Handshake.
func (t *TLSTransport) Listen(addr string) (net.Listener, error) {
	return listen(addr, t.MaxConnections)
}

// Handshake runs the server side of the TLS handshake on raw
func (t *TLSTransport) Handshake(ctx context.Context, raw net.Conn) (net.Conn, error) {
	tuneConn(raw)

	conn := tls.Server(raw, t.Config)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return conn, nil
}

func (t *TLSTransport) Name() string { return "https" }

func listen(addr string, maxConnections int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConnections > 0 {
		ln = netutil.LimitListener(ln, maxConnections)
	}
	return ln, nil
}
