package client

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash"
)

// EnableDebugMode enables debug mode with verbose logging and stack traces.
func (c *Client) EnableDebugMode() {
	c.debugMode.Store(true)
	c.logger.Info("debug mode enabled")
}

// DisableDebugMode disables debug mode.
func (c *Client) DisableDebugMode() {
	c.debugMode.Store(false)
	c.logger.Info("debug mode disabled")
}

// IsDebugMode returns whether debug mode is currently enabled.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// GetDebugInfo returns a comprehensive snapshot of client state for debugging.
func (c *Client) GetDebugInfo() map[string]interface{} {
	info := map[string]interface{}{
		"version":     Version,
		"state":       c.GetState().String(),
		"debugMode":   c.IsDebugMode(),
		"poolEnabled": c.poolEnabled,
	}

	// Connection info
	if c.poolEnabled && c.pool != nil {
		stats := c.pool.Stats()
		info["pool"] = map[string]interface{}{
			"activeConnections": stats.ActiveConnections.Load(),
			"idleConnections":   stats.IdleConnections.Load(),
			"totalConnections":  stats.TotalConnections.Load(),
			"waitCount":         stats.WaitCount.Load(),
			"waitDuration":      stats.WaitDuration.Load(),
			"hits":              stats.Hits.Load(),
			"misses":            stats.Misses.Load(),
			"timeouts":          stats.Timeouts.Load(),
			"errors":            stats.Errors.Load(),
		}
	} else if c.conn != nil {
		limits := c.conn.Limits()
		info["connection"] = map[string]interface{}{
			"remoteAddr":   c.conn.RemoteAddr(),
			"alive":        c.conn.IsAlive(),
			"lastActivity": c.conn.LastActivity().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		info["limits"] = map[string]interface{}{
			"maxWriteBatchSize":    limits.MaxWriteBatchSize,
			"maxDocumentSizeBytes": limits.MaxDocumentSizeBytes,
			"maxMessageSizeBytes":  limits.MaxMessageSizeBytes,
		}
	}

	// Options
	info["options"] = map[string]interface{}{
		"defaultTimeoutMs":     c.opts.DefaultTimeoutMs,
		"maxRetries":           c.opts.MaxRetries,
		"poolMinSize":          c.opts.PoolMinSize,
		"poolMaxSize":          c.opts.PoolMaxSize,
		"poolIdleTimeout":      c.opts.PoolIdleTimeout.String(),
		"healthCheckInterval":  c.opts.HealthCheckInterval.String(),
		"maxReconnectAttempts": c.opts.MaxReconnectAttempts,
		"tlsEnabled":           c.opts.TLSEnabled,
	}

	// Last transition
	lastTransition := c.GetLastTransition()
	info["lastTransition"] = map[string]interface{}{
		"from":      lastTransition.From.String(),
		"to":        lastTransition.To.String(),
		"timestamp": lastTransition.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		"duration":  lastTransition.Duration.String(),
	}

	return info
}

// DumpDebugInfoJSON returns debug info as formatted JSON string.
func (c *Client) DumpDebugInfoJSON() string {
	info := c.GetDebugInfo()
	bytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal debug info: %s"}`, err.Error())
	}
	return string(bytes)
}

// payloadDigest returns a short stable fingerprint of an encoded command.
// Debug logs carry the digest instead of the payload itself, so documents
// never leak into log output.
func payloadDigest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// logCommandExecution logs a command round trip with full details in debug mode.
func (c *Client) logCommandExecution(requestID, kind string, payload []byte, durationNs int64, err error) {
	if !c.IsDebugMode() {
		return
	}

	fields := []Field{
		String("requestID", requestID),
		String("command", kind),
		String("payloadDigest", payloadDigest(payload)),
		Int("payloadBytes", len(payload)),
		Int64("durationNs", durationNs),
	}

	if err != nil {
		fields = append(fields, Error("error", err))
	}

	c.logger.Debug("command execution detail", fields...)
}
