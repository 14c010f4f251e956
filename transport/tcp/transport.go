// Package tcp implements the CorvusDB transport over a plain or TLS TCP
// connection. One TCPTransport owns one socket; pooling happens a layer up,
// in the client's connection pool.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvusdb/corvusdb-go/protocol"
	"github.com/corvusdb/corvusdb-go/transport"
)

// Options configures the TCP transport
type Options struct {
	// Address is the server address (host:port)
	Address string

	// Timeout for dialing and per-message operations
	Timeout time.Duration

	// TLS configuration
	UseTLS     bool
	TLSConfig  *tls.Config
	CertPath   string
	KeyPath    string
	SkipVerify bool
}

// TCPTransport implements transport.Transport for a single TCP connection
type TCPTransport struct {
	opts    Options
	conn    net.Conn
	scanner *bufio.Scanner
	metrics tcpMetrics
	mu      sync.Mutex
	alive   bool
}

type tcpMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64 // nanoseconds
	lastError     error
	lastErrorTime time.Time
	mu            sync.RWMutex
}

// Dial opens a new TCP (optionally TLS) transport to the server.
func Dial(ctx context.Context, opts Options) (transport.Transport, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	conn, err := net.DialTimeout("tcp", opts.Address, opts.Timeout)
	if err != nil {
		return nil, protocol.ConnectionRefusedError(fmt.Sprintf("failed to connect to %s", opts.Address), map[string]interface{}{
			"address": opts.Address,
			"timeout": opts.Timeout.String(),
		})
	}

	// Upgrade to TLS if enabled
	if opts.UseTLS || opts.TLSConfig != nil {
		tlsConfig, err := buildTLSConfig(opts)
		if err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			tlsConn.Close()
			return nil, protocol.ConnectionRefusedError("TLS handshake failed", map[string]interface{}{
				"address": opts.Address,
				"error":   err.Error(),
			})
		}
		conn = tlsConn
	}

	scanner := bufio.NewScanner(conn)
	// Frames can carry whole write batches; size the scanner accordingly.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	scanner.Split(splitAtEOT)

	return &TCPTransport{
		opts:    opts,
		conn:    conn,
		scanner: scanner,
		alive:   true,
	}, nil
}

// Factory returns a transport.Factory that dials with the given options.
func Factory(opts Options) transport.Factory {
	return func(ctx context.Context) (transport.Transport, error) {
		return Dial(ctx, opts)
	}
}

// Send implements transport.Transport
func (t *TCPTransport) Send(ctx context.Context, data []byte) error {
	start := time.Now()
	t.metrics.totalRequests.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.alive {
		err := protocol.ConnectionRefusedError("transport is closed", nil)
		t.recordError(err)
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			t.recordError(err)
			return err
		}
	}

	if _, err := t.conn.Write(data); err != nil {
		t.alive = false
		t.recordError(err)
		return err
	}

	t.metrics.bytesSent.Add(int64(len(data)))
	t.metrics.latencySum.Add(int64(time.Since(start)))
	return nil
}

// Receive implements transport.Transport
func (t *TCPTransport) Receive(ctx context.Context) ([]byte, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.alive {
		err := protocol.ConnectionRefusedError("transport is closed", nil)
		t.recordError(err)
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			t.recordError(err)
			return nil, err
		}
	}

	if !t.scanner.Scan() {
		t.alive = false
		if err := t.scanner.Err(); err != nil {
			t.recordError(err)
			return nil, err
		}
		err := protocol.ConnectionRefusedError("connection closed by server", nil)
		t.recordError(err)
		return nil, err
	}

	data := t.scanner.Bytes()
	t.metrics.bytesReceived.Add(int64(len(data)))
	t.metrics.latencySum.Add(int64(time.Since(start)))

	// Return a copy since the scanner reuses its buffer
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Close implements transport.Transport
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// IsHealthy implements transport.Transport
func (t *TCPTransport) IsHealthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// GetMetrics implements transport.Transport
func (t *TCPTransport) GetMetrics() transport.TransportMetrics {
	t.metrics.mu.RLock()
	lastErr := t.metrics.lastError
	lastErrTime := t.metrics.lastErrorTime
	t.metrics.mu.RUnlock()

	totalReqs := t.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.metrics.latencySum.Load() / totalReqs)
	}

	return transport.TransportMetrics{
		TotalRequests:  totalReqs,
		TotalErrors:    t.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		LastError:      lastErr,
		LastErrorTime:  lastErrTime,
		BytesSent:      t.metrics.bytesSent.Load(),
		BytesReceived:  t.metrics.bytesReceived.Load(),
	}
}

// recordError records an error in metrics
func (t *TCPTransport) recordError(err error) {
	t.metrics.totalErrors.Add(1)
	t.metrics.mu.Lock()
	t.metrics.lastError = err
	t.metrics.lastErrorTime = time.Now()
	t.metrics.mu.Unlock()
}

// buildTLSConfig creates a TLS configuration
func buildTLSConfig(opts Options) (*tls.Config, error) {
	if opts.TLSConfig != nil {
		return opts.TLSConfig, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: opts.SkipVerify,
	}

	// Extract server name from address
	serverName := opts.Address
	if idx := strings.Index(opts.Address, ":"); idx >= 0 {
		serverName = opts.Address[:idx]
	}
	tlsConfig.ServerName = serverName

	// Load client certificate if provided
	if opts.CertPath != "" && opts.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		if err != nil {
			return nil, protocol.ConnectionRefusedError("failed to load TLS certificate", map[string]interface{}{
				"certPath": opts.CertPath,
				"keyPath":  opts.KeyPath,
				"error":    err.Error(),
			})
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// splitAtEOT is a scanner split function that splits on EOT (0x04)
func splitAtEOT(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, protocol.EOT); i >= 0 {
		// Consume the delimiter, return everything before it
		return i + 1, data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	// Request more data
	return 0, nil, nil
}
