package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corvusdb/corvusdb-go/protocol"
	"github.com/corvusdb/corvusdb-go/transport"
	"github.com/corvusdb/corvusdb-go/transport/tcp"
)

// ConnectionInterface defines the contract for database connections.
// This abstraction allows for connection pooling and alternative implementations.
type ConnectionInterface interface {
	// RoundTrip sends a command and waits for its reply. A connection
	// carries at most one exchange at a time.
	RoundTrip(ctx context.Context, cmd *protocol.Command) (*protocol.Reply, error)

	// Ping sends a minimal command to verify connection health.
	Ping(ctx context.Context) error

	// Close closes the connection gracefully.
	Close() error

	// RemoteAddr returns the remote server address.
	RemoteAddr() string

	// IsAlive checks if the connection is still valid.
	IsAlive() bool

	// LastActivity returns the timestamp of the last successful operation.
	LastActivity() time.Time

	// Limits returns the server-advertised operational limits.
	Limits() protocol.Limits
}

// Connection represents a single connection to a CorvusDB server. It pairs a
// transport with the wire codec and serializes round trips, so replies always
// match the command that produced them.
type Connection struct {
	tr         transport.Transport
	codec      protocol.Codec
	remoteAddr string

	// rtMu serializes round trips; one exchange in flight per connection.
	rtMu sync.Mutex

	mu           sync.RWMutex
	alive        bool
	lastActivity time.Time
	limits       protocol.Limits
}

// NewConnection establishes a connection, performs the hello handshake and
// records the server's advertised limits.
func NewConnection(ctx context.Context, address string, opts ClientOptions) (*Connection, error) {
	factory := opts.TransportFactory
	if factory == nil {
		tlsConfig, err := buildTransportTLS(opts, address)
		if err != nil {
			return nil, err
		}
		factory = tcp.Factory(tcp.Options{
			Address:    address,
			Timeout:    time.Duration(opts.DefaultTimeoutMs) * time.Millisecond,
			UseTLS:     opts.TLSEnabled || opts.TLSConfig != nil,
			TLSConfig:  tlsConfig,
			CertPath:   opts.TLSCertFile,
			KeyPath:    opts.TLSKeyFile,
			SkipVerify: opts.TLSInsecureSkipVerify,
		})
	}

	tr, err := factory(ctx)
	if err != nil {
		if isTLSError(err) {
			return nil, parseTLSError(err)
		}
		return nil, &ConnectionError{
			Code:    "CONNECTION_FAILED",
			Type:    "CONNECTION_ERROR",
			Message: fmt.Sprintf("failed to connect to %s", address),
			Details: map[string]interface{}{
				"address": address,
				"timeout": opts.DefaultTimeoutMs,
			},
			Cause: err,
		}
	}

	conn := &Connection{
		tr:           tr,
		codec:        protocol.NewCodec(),
		remoteAddr:   address,
		alive:        true,
		lastActivity: time.Now(),
		limits:       protocol.DefaultLimits(),
	}

	if err := conn.handshake(ctx, opts.connString); err != nil {
		tr.Close()
		return nil, err
	}

	return conn, nil
}

// handshake runs the hello exchange and stores the advertised limits.
func (c *Connection) handshake(ctx context.Context, connString string) error {
	reply, err := c.RoundTrip(ctx, &protocol.Command{
		Kind:            protocol.CommandHello,
		ConnString:      connString,
		ProtocolVersion: protocol.PROTOCOL_VERSION,
	})
	if err != nil {
		return &ConnectionError{
			Code:    "HANDSHAKE_FAILED",
			Type:    "CONNECTION_ERROR",
			Message: "hello handshake failed",
			Details: map[string]interface{}{"address": c.remoteAddr},
			Cause:   err,
		}
	}

	if !reply.OK {
		return &ConnectionError{
			Code:    "HANDSHAKE_REJECTED",
			Type:    "CONNECTION_ERROR",
			Message: fmt.Sprintf("server rejected handshake: %s", reply.ErrMsg),
			Details: map[string]interface{}{
				"address": c.remoteAddr,
				"code":    reply.Code,
			},
		}
	}

	if reply.Limits != nil {
		c.mu.Lock()
		c.limits = *reply.Limits
		c.mu.Unlock()
	}

	return nil
}

// RoundTrip sends a command and waits for its reply.
func (c *Connection) RoundTrip(ctx context.Context, cmd *protocol.Command) (*protocol.Reply, error) {
	if !c.IsAlive() {
		return nil, &ConnectionError{
			Code:    "CONNECTION_DEAD",
			Type:    "CONNECTION_ERROR",
			Message: "connection is not alive",
		}
	}

	data, err := c.codec.EncodeCommand(cmd)
	if err != nil {
		return nil, &ProtocolError{
			Code:    "ENCODE_FAILED",
			Type:    "PROTOCOL_ERROR",
			Message: fmt.Sprintf("failed to encode %s command", cmd.Kind),
			Cause:   err,
		}
	}

	c.rtMu.Lock()
	defer c.rtMu.Unlock()

	if err := c.tr.Send(ctx, data); err != nil {
		c.markDead()
		return nil, &ProtocolError{
			Code:    "SEND_FAILED",
			Type:    "PROTOCOL_ERROR",
			Message: fmt.Sprintf("failed to send %s command", cmd.Kind),
			Details: map[string]interface{}{"address": c.remoteAddr},
			Cause:   err,
		}
	}

	raw, err := c.tr.Receive(ctx)
	if err != nil {
		c.markDead()
		return nil, &ProtocolError{
			Code:    "RECEIVE_FAILED",
			Type:    "PROTOCOL_ERROR",
			Message: fmt.Sprintf("failed to read reply to %s command", cmd.Kind),
			Details: map[string]interface{}{"address": c.remoteAddr},
			Cause:   err,
		}
	}

	reply, err := c.codec.DecodeReply(raw)
	if err != nil {
		return nil, &ProtocolError{
			Code:    "DECODE_FAILED",
			Type:    "PROTOCOL_ERROR",
			Message: fmt.Sprintf("failed to decode reply to %s command", cmd.Kind),
			Details: map[string]interface{}{"address": c.remoteAddr},
			Cause:   err,
		}
	}

	c.updateActivity()
	return reply, nil
}

// Ping sends a ping command to verify connection health.
func (c *Connection) Ping(ctx context.Context) error {
	reply, err := c.RoundTrip(ctx, &protocol.Command{Kind: protocol.CommandPing})
	if err != nil {
		return err
	}
	if !reply.OK {
		return &ConnectionError{
			Code:    "PING_FAILED",
			Type:    "CONNECTION_ERROR",
			Message: fmt.Sprintf("ping rejected: %s", reply.ErrMsg),
		}
	}
	return nil
}

// Close closes the connection gracefully.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()

	if c.tr != nil {
		return c.tr.Close()
	}
	return nil
}

// RemoteAddr returns the remote server address.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// IsAlive checks if the connection is still valid.
func (c *Connection) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive && c.tr.IsHealthy()
}

// LastActivity returns the timestamp of the last successful operation.
func (c *Connection) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Limits returns the limits learned during the handshake.
func (c *Connection) Limits() protocol.Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// updateActivity updates the last activity timestamp.
func (c *Connection) updateActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// markDead marks the connection as dead.
func (c *Connection) markDead() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}
