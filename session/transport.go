package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// Transport is the byte-stream abstraction the session reads frames from
// and writes frames to. TLS/TCP primitives are assumed available from the
// host platform per spec §1's Non-goals; this interface is what the session
// depends on, so any transport (plain TCP, TLS, an in-memory pipe for
// tests) can stand in behind it.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Transport to host:port. opts is the opaque transport_opts
// map from Config (TLS certs, verify mode, SNI, …); a concrete Dialer
// interprets whichever keys it recognizes and ignores the rest.
type Dialer func(ctx context.Context, host string, port int, opts map[string]string) (Transport, error)

// connectTimeout is the spec-mandated transport connect timeout (§5).
const connectTimeout = 10 * time.Second

// DialTCP is the default Dialer: plain TCP, or TLS when opts["tls"] is
// "true". Recognized opts: "tls", "insecure_skip_verify", "server_name".
func DialTCP(ctx context.Context, host string, port int, opts map[string]string) (Transport, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", host, port)
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}

	if opts["tls"] != "true" {
		return conn, nil
	}

	tlsConf := &tls.Config{
		ServerName:         opts["server_name"],
		InsecureSkipVerify: opts["insecure_skip_verify"] == "true",
	}
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = host
	}

	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, &TransportError{Cause: err}
	}
	return tlsConn, nil
}
