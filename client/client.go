package client

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// Client is the main CorvusDB client supporting both single and pooled connections.
type Client struct {
	conn        *Connection     // Used in single-connection mode
	pool        *ConnectionPool // Used in pooled mode
	poolEnabled bool
	connFactory func(ctx context.Context) (ConnectionInterface, error)
	opts        ClientOptions
	stateMgr    *StateManager
	connStr     string
	defaultDB   string
	logger      Logger
	debugMode   atomic.Bool

	// codec is used only to fingerprint payloads for debug logging; the
	// wire encoding happens inside Connection.
	codec protocol.Codec

	limitsMu sync.RWMutex
	limits   protocol.Limits
}

// NewClient creates a new CorvusDB client with the given options.
// If opts is nil, default options are used.
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		defaultOpts := DefaultOptions()
		opts = &defaultOpts
	}

	// Initialize logger
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}

	client := &Client{
		opts:        *opts,
		stateMgr:    NewStateManager(),
		logger:      logger,
		poolEnabled: opts.PoolMaxSize > 1,
		codec:       protocol.NewCodec(),
		limits:      protocol.DefaultLimits(),
	}

	client.debugMode.Store(opts.DebugMode)

	// Wire up lifecycle callbacks if provided
	if opts.OnConnected != nil || opts.OnDisconnected != nil || opts.OnReconnecting != nil {
		client.stateMgr.OnStateChange(func(transition StateTransition) {
			switch transition.To {
			case CONNECTED:
				if opts.OnConnected != nil {
					opts.OnConnected(transition)
				}
			case DISCONNECTED:
				if transition.From != DISCONNECTED && opts.OnDisconnected != nil {
					opts.OnDisconnected(transition)
				}
			case CONNECTING:
				if transition.From == DISCONNECTED && opts.OnReconnecting != nil {
					opts.OnReconnecting(transition)
				}
			}
		})
	}

	return client
}

// Connect establishes a connection to the CorvusDB server.
// Connection string format: corvusdb://host:port/database
func (c *Client) Connect(ctx context.Context, connStr string) error {
	c.logger.Info("connecting to database", String("connStr", connStr), Bool("poolEnabled", c.poolEnabled))

	// Transition to CONNECTING state
	err := c.stateMgr.TransitionTo(CONNECTING, nil, map[string]interface{}{
		"reason":           "user_initiated",
		"connectionString": connStr,
		"attempt":          1,
	})
	if err != nil {
		return err
	}

	address, database, parseErr := parseConnString(connStr)
	if parseErr != nil {
		c.stateMgr.TransitionTo(DISCONNECTED, parseErr, map[string]interface{}{
			"reason": "error",
		})
		return parseErr
	}

	c.connStr = connStr
	c.defaultDB = database
	c.opts.connString = connStr

	// Parse TLS options from connection string query parameters
	tlsOpts := parseTLSOptions(connStr)
	if val, ok := tlsOpts["tls"]; ok && (val == "true" || val == "require") {
		c.opts.TLSEnabled = true
		c.logger.Info("TLS enabled via connection string")
	}
	if val, ok := tlsOpts["tlsCAFile"]; ok {
		c.opts.TLSCAFile = val
	}
	if val, ok := tlsOpts["tlsCert"]; ok {
		c.opts.TLSCertFile = val
	}
	if val, ok := tlsOpts["tlsKey"]; ok {
		c.opts.TLSKeyFile = val
	}
	if val, ok := tlsOpts["tlsInsecureSkipVerify"]; ok && val == "true" {
		c.opts.TLSInsecureSkipVerify = true
		c.logger.Warn("TLS certificate verification disabled - USE ONLY FOR TESTING")
	}

	// Create connection factory that will be reused for reconnection. Each
	// new connection refreshes the cached server limits.
	c.connFactory = func(ctx context.Context) (ConnectionInterface, error) {
		conn, err := NewConnection(ctx, address, c.opts)
		if err != nil {
			return nil, err
		}
		c.storeLimits(conn.Limits())
		return conn, nil
	}

	// Use pool mode if configured
	if c.poolEnabled {
		return c.connectWithPool(ctx)
	}

	// Use single connection mode
	return c.connectSingle(ctx)
}

// parseConnString validates a corvusdb:// connection string and extracts the
// host:port address and database name.
func parseConnString(connStr string) (address, database string, err error) {
	const scheme = "corvusdb://"

	if !strings.HasPrefix(connStr, scheme) {
		return "", "", &ConnectionError{
			Code:    "INVALID_SCHEME",
			Type:    "CONNECTION_ERROR",
			Message: "connection string must use 'corvusdb://' scheme",
			Details: map[string]interface{}{
				"connectionString": connStr,
				"expected":         scheme,
			},
		}
	}

	rest := strings.TrimPrefix(connStr, scheme)
	if idx := strings.Index(rest, "?"); idx >= 0 {
		rest = rest[:idx]
	}

	address = rest
	if idx := strings.Index(rest, "/"); idx >= 0 {
		address = rest[:idx]
		database = rest[idx+1:]
	}

	if address == "" || !strings.Contains(address, ":") {
		return "", "", &ConnectionError{
			Code:    "INVALID_CONNECTION_STRING",
			Type:    "CONNECTION_ERROR",
			Message: "invalid connection string format",
			Details: map[string]interface{}{
				"connectionString": connStr,
				"expected":         "corvusdb://host:port/database",
			},
		}
	}

	return address, database, nil
}

// connectWithPool initializes connection pool.
func (c *Client) connectWithPool(ctx context.Context) error {
	c.logger.Info("initializing connection pool",
		Int("minIdle", c.opts.PoolMinSize),
		Int("maxOpen", c.opts.PoolMaxSize))

	c.pool = NewConnectionPool(
		c.connFactory,
		c.opts.PoolMinSize,
		c.opts.PoolMaxSize,
		c.opts.PoolIdleTimeout,
		c.opts.HealthCheckInterval,
	)

	if err := c.pool.Initialize(ctx); err != nil {
		c.logger.Error("failed to initialize connection pool", Error("error", err))
		c.stateMgr.TransitionTo(DISCONNECTED, err, map[string]interface{}{
			"reason": "pool_init_failed",
		})
		return err
	}

	c.logger.Info("connection pool initialized successfully")

	c.stateMgr.TransitionTo(CONNECTED, nil, map[string]interface{}{
		"reason": "user_initiated",
		"mode":   "pool",
	})
	return nil
}

// connectSingle establishes a single persistent connection with retries.
func (c *Client) connectSingle(ctx context.Context) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		c.logger.Debug("attempting connection", Int("attempt", attempt))

		// Check context cancellation
		select {
		case <-ctx.Done():
			c.stateMgr.TransitionTo(DISCONNECTED, ctx.Err(), map[string]interface{}{
				"reason": "context_cancelled",
			})
			return ctx.Err()
		default:
		}

		conn, err := c.connFactory(ctx)
		if err == nil {
			c.conn = conn.(*Connection)
			c.logger.Info("connection established", String("remoteAddr", conn.RemoteAddr()))

			c.stateMgr.TransitionTo(CONNECTED, nil, map[string]interface{}{
				"reason":     "user_initiated",
				"remoteAddr": conn.RemoteAddr(),
				"mode":       "single",
			})
			return nil
		}

		lastErr = err
		c.logger.Warn("connection attempt failed",
			Int("attempt", attempt),
			Error("error", err))

		// If not last attempt, wait and retry
		if attempt < c.opts.MaxRetries {
			time.Sleep(backoff)
			backoff *= 2 // Exponential backoff

			c.stateMgr.TransitionTo(CONNECTING, nil, map[string]interface{}{
				"reason":           "error",
				"connectionString": c.connStr,
				"attempt":          attempt + 1,
			})
		}
	}

	// All retries failed
	c.logger.Error("all connection attempts failed", Error("error", lastErr))
	c.stateMgr.TransitionTo(DISCONNECTED, lastErr, map[string]interface{}{
		"reason":  "error",
		"attempt": c.opts.MaxRetries,
	})

	return lastErr
}

// Disconnect closes the connection gracefully.
func (c *Client) Disconnect(ctx context.Context) error {
	c.logger.Info("disconnecting from database")

	if c.stateMgr.GetState() != CONNECTED {
		return ErrInvalidState("Disconnect", CONNECTED, c.stateMgr.GetState())
	}

	// Transition to DISCONNECTING
	err := c.stateMgr.TransitionTo(DISCONNECTING, nil, map[string]interface{}{
		"reason": "user_initiated",
	})
	if err != nil {
		return err
	}

	// Check context with timeout for graceful shutdown
	select {
	case <-ctx.Done():
		c.logger.Warn("disconnect context cancelled, forcing shutdown")
		if c.poolEnabled && c.pool != nil {
			c.pool.Close(ctx)
			c.pool = nil
		} else if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.stateMgr.TransitionTo(DISCONNECTED, ctx.Err(), map[string]interface{}{
			"reason": "context_timeout",
		})
		return ctx.Err()
	default:
	}

	// Close connection or pool
	var closeErr error
	if c.poolEnabled && c.pool != nil {
		c.logger.Debug("closing connection pool")
		closeErr = c.pool.Close(ctx)
		c.pool = nil
	} else if c.conn != nil {
		c.logger.Debug("closing single connection")
		closeErr = c.conn.Close()
		c.conn = nil
	}

	if closeErr != nil {
		c.logger.Error("error during disconnect", Error("error", closeErr))
	} else {
		c.logger.Info("disconnected successfully")
	}

	// Transition to DISCONNECTED
	c.stateMgr.TransitionTo(DISCONNECTED, closeErr, map[string]interface{}{
		"reason": "user_initiated",
	})

	return closeErr
}

// GetState returns the current connection state.
func (c *Client) GetState() ConnectionState {
	return c.stateMgr.GetState()
}

// GetLastTransition returns the most recent state transition.
func (c *Client) GetLastTransition() StateTransition {
	return c.stateMgr.GetLastTransition()
}

// OnStateChange registers a handler to be called on state transitions.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.stateMgr.OnStateChange(handler)
}

// GetVersion returns the build version of the client.
func (c *Client) GetVersion() string {
	return Version
}

// WriteLimits returns the server limits learned during the handshake.
func (c *Client) WriteLimits() protocol.Limits {
	c.limitsMu.RLock()
	defer c.limitsMu.RUnlock()
	return c.limits
}

func (c *Client) storeLimits(limits protocol.Limits) {
	c.limitsMu.Lock()
	c.limits = limits
	c.limitsMu.Unlock()
}

// RunCommand executes one command round trip, acquiring a connection from the
// pool when pooling is enabled. Every call gets a trace ID carried in the
// context and attached to its log lines.
func (c *Client) RunCommand(ctx context.Context, cmd *protocol.Command) (*protocol.Reply, error) {
	if c.stateMgr.GetState() != CONNECTED {
		return nil, ErrInvalidState("RunCommand", CONNECTED, c.stateMgr.GetState())
	}

	// Apply the default timeout when the caller didn't set a deadline.
	if _, ok := ctx.Deadline(); !ok && c.opts.DefaultTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.opts.DefaultTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	traceID := uuid.New().String()
	ctx = ContextWithRequestID(ctx, traceID)
	debugMode := c.IsDebugMode()

	var payload []byte
	if debugMode {
		// Encode once here purely for the digest; Connection encodes
		// again for the wire.
		payload, _ = c.codec.EncodeCommand(cmd)
		c.logger.Debug("sending command",
			RequestIDField(ctx),
			String("command", string(cmd.Kind)),
			String("payloadDigest", payloadDigest(payload)),
		)
	}

	conn, release, err := c.acquireConn(ctx, traceID, debugMode)
	if err != nil {
		return nil, err
	}
	defer release()

	reply, err := conn.RoundTrip(ctx, cmd)
	duration := time.Since(start)

	c.logCommandExecution(traceID, string(cmd.Kind), payload, duration.Nanoseconds(), err)

	if err != nil {
		c.logger.Error("command failed",
			RequestIDField(ctx),
			String("command", string(cmd.Kind)),
			Error("error", err),
			Duration("duration", duration))
		return nil, err
	}

	c.logger.Debug("command executed",
		RequestIDField(ctx),
		String("command", string(cmd.Kind)),
		Duration("duration", duration))
	return reply, nil
}

// acquireConn hands out a connection plus a release function.
func (c *Client) acquireConn(ctx context.Context, traceID string, debugMode bool) (ConnectionInterface, func(), error) {
	if c.poolEnabled && c.pool != nil {
		if debugMode {
			poolStats := c.pool.Stats()
			c.logger.Debug("acquiring connection from pool",
				String("trace_id", traceID),
				Int("active_connections", int(poolStats.ActiveConnections.Load())),
				Int("idle_connections", int(poolStats.IdleConnections.Load())))
		}

		conn, err := c.pool.Get(ctx)
		if err != nil {
			c.logger.Error("failed to acquire connection from pool", Error("error", err))
			return nil, nil, err
		}

		return conn, func() {
			c.pool.Put(conn)
			if debugMode {
				c.logger.Debug("returned connection to pool",
					String("trace_id", traceID),
					String("remote_addr", conn.RemoteAddr()))
			}
		}, nil
	}

	if c.conn == nil {
		return nil, nil, &ConnectionError{
			Code:    "NO_CONNECTION",
			Type:    "CONNECTION_ERROR",
			Message: "no active connection",
		}
	}

	return c.conn, func() {}, nil
}

// Ping performs a health check on the connection.
// Returns nil if the connection is healthy, an error otherwise.
func (c *Client) Ping(ctx context.Context) error {
	if c.stateMgr.GetState() != CONNECTED {
		return ErrInvalidState("Ping", CONNECTED, c.stateMgr.GetState())
	}

	// Use pool mode if enabled
	if c.poolEnabled && c.pool != nil {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return err
		}
		defer c.pool.Put(conn)
		return conn.Ping(ctx)
	}

	// Use single connection mode
	if c.conn == nil {
		return &ConnectionError{
			Code:    "NO_CONNECTION",
			Type:    "CONNECTION_ERROR",
			Message: "no active connection",
		}
	}

	return c.conn.Ping(ctx)
}

// SetLogLevel changes the logging level at runtime.
// Valid levels: DEBUG, INFO, WARN, ERROR.
func (c *Client) SetLogLevel(level string) {
	parsedLevel := ParseLogLevel(level)

	// Update options
	c.opts.LogLevel = level

	// If using default logger, update its level via recreating
	if _, ok := c.logger.(*defaultLogger); ok {
		c.logger = NewLogger(parsedLevel.String(), nil)
		c.logger.Info("log level changed", String("newLevel", level))
	}
}

// Database returns a handle to the named database. An empty name selects the
// database from the connection string.
func (c *Client) Database(name string) *Database {
	if name == "" {
		name = c.defaultDB
	}
	return &Database{client: c, name: name}
}
