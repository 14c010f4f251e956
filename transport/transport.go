// Package transport defines the transport layer abstraction for CorvusDB
package transport

import (
	"context"
	"time"
)

// Transport is a single logical channel to a CorvusDB server. A transport
// carries one in-flight request/reply exchange at a time; callers that need
// concurrency hold one transport per borrowed connection. The bulk write
// engine relies on this exclusivity so that the bytes of different batches
// never interleave.
type Transport interface {
	// Send transmits one framed message to the server
	Send(ctx context.Context, data []byte) error

	// Receive reads one framed message from the server
	Receive(ctx context.Context) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// IsHealthy returns whether the transport is healthy
	IsHealthy() bool

	// GetMetrics returns transport performance metrics
	GetMetrics() TransportMetrics
}

// TransportMetrics contains performance and health metrics
type TransportMetrics struct {
	// TotalRequests is the total number of messages sent
	TotalRequests int64

	// TotalErrors is the total number of errors encountered
	TotalErrors int64

	// AverageLatency is the average per-message latency
	AverageLatency time.Duration

	// LastError is the most recent error encountered
	LastError error

	// LastErrorTime is when the last error occurred
	LastErrorTime time.Time

	// BytesSent is the total bytes sent
	BytesSent int64

	// BytesReceived is the total bytes received
	BytesReceived int64
}

// Factory creates new transport instances
type Factory func(ctx context.Context) (Transport, error)
