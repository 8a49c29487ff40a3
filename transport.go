package mqtt311

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Dialer establishes the byte-stream connection the protocol engine
// runs on. The engine itself only ever sees a net.Conn.
type Dialer interface {
	// Dial connects to the address with the given context.
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// TCPDialer connects to MQTT brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	var dialer net.Dialer
	if d.Timeout > 0 {
		dialer.Timeout = d.Timeout
	}
	return dialer.DialContext(ctx, "tcp", address)
}

// TLSDialer connects to MQTT brokers over TLS.
type TLSDialer struct {
	// Config is the TLS configuration.
	Config *tls.Config

	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to the address.
func (d *TLSDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	netDialer := &net.Dialer{}
	if d.Timeout > 0 {
		netDialer.Timeout = d.Timeout
	}

	config := d.Config
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: config}
	return tlsDialer.DialContext(ctx, "tcp", address)
}
