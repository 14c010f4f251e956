// Package mock implements transport.Transport for testing. Replies are
// scripted: each Receive pops the next enqueued frame, so a test can play
// the server side of a multi-batch exchange without a socket.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvusdb/corvusdb-go/protocol"
	"github.com/corvusdb/corvusdb-go/transport"
)

// MockTransport implements transport.Transport for testing
type MockTransport struct {
	// Behavior configuration
	sendErr    error
	receiveErr error
	replies    [][]byte
	healthy    bool
	sendDelay  time.Duration
	recvDelay  time.Duration

	// When >= 0, Send starts failing once this many sends have succeeded.
	// Used to simulate a connection dying between batches.
	failSendAfter int

	// Call tracking
	sendCalls    atomic.Int32
	receiveCalls atomic.Int32
	closeCalls   atomic.Int32

	metrics     mockMetrics
	mu          sync.RWMutex
	closed      bool
	sendHistory [][]byte
}

type mockMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		healthy:       true,
		failSendAfter: -1,
		sendHistory:   make([][]byte, 0),
	}
}

// WithSendError configures the transport to return an error on Send
func (m *MockTransport) WithSendError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
	return m
}

// WithSendErrorAfter configures Send to succeed n times and then return err
func (m *MockTransport) WithSendErrorAfter(n int, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSendAfter = n
	m.sendErr = err
	return m
}

// WithReceiveError configures the transport to return an error on Receive
func (m *MockTransport) WithReceiveError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveErr = err
	return m
}

// EnqueueReply appends a frame to the scripted reply queue
func (m *MockTransport) EnqueueReply(data []byte) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, data)
	return m
}

// WithHealthy configures the health status
func (m *MockTransport) WithHealthy(healthy bool) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// WithSendDelay adds a delay to Send operations
func (m *MockTransport) WithSendDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
	return m
}

// WithReceiveDelay adds a delay to Receive operations
func (m *MockTransport) WithReceiveDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvDelay = delay
	return m
}

// Send implements transport.Transport
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	sent := m.sendCalls.Add(1)
	m.metrics.totalRequests.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}

	delay := m.sendDelay
	sendErr := m.sendErr
	if m.failSendAfter >= 0 && int(sent) <= m.failSendAfter {
		sendErr = nil
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if sendErr != nil {
		m.metrics.totalErrors.Add(1)
		return sendErr
	}

	m.mu.Lock()
	m.sendHistory = append(m.sendHistory, data)
	m.mu.Unlock()

	m.metrics.bytesSent.Add(int64(len(data)))
	return nil
}

// Receive implements transport.Transport
func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	m.receiveCalls.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}

	delay := m.recvDelay
	receiveErr := m.receiveErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if receiveErr != nil {
		m.metrics.totalErrors.Add(1)
		return nil, receiveErr
	}

	m.mu.Lock()
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return nil, protocol.TimeoutError("no scripted reply available", nil)
	}
	data := m.replies[0]
	m.replies = m.replies[1:]
	m.mu.Unlock()

	m.metrics.bytesReceived.Add(int64(len(data)))
	return data, nil
}

// Close implements transport.Transport
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsHealthy implements transport.Transport
func (m *MockTransport) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && !m.closed
}

// GetMetrics implements transport.Transport
func (m *MockTransport) GetMetrics() transport.TransportMetrics {
	return transport.TransportMetrics{
		TotalRequests: m.metrics.totalRequests.Load(),
		TotalErrors:   m.metrics.totalErrors.Load(),
		BytesSent:     m.metrics.bytesSent.Load(),
		BytesReceived: m.metrics.bytesReceived.Load(),
	}
}

// GetSendCallCount returns the number of times Send was called
func (m *MockTransport) GetSendCallCount() int {
	return int(m.sendCalls.Load())
}

// GetReceiveCallCount returns the number of times Receive was called
func (m *MockTransport) GetReceiveCallCount() int {
	return int(m.receiveCalls.Load())
}

// GetCloseCallCount returns the number of times Close was called
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// GetSendHistory returns all frames sent through this transport
func (m *MockTransport) GetSendHistory() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modifications
	history := make([][]byte, len(m.sendHistory))
	copy(history, m.sendHistory)
	return history
}

// PendingReplies returns how many scripted replies remain unconsumed
func (m *MockTransport) PendingReplies() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.replies)
}

// IsClosed returns whether the transport has been closed
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Reset clears all state, call counts and scripted replies
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = nil
	m.receiveErr = nil
	m.replies = nil
	m.healthy = true
	m.closed = false
	m.sendDelay = 0
	m.recvDelay = 0
	m.failSendAfter = -1

	m.sendCalls.Store(0)
	m.receiveCalls.Store(0)
	m.closeCalls.Store(0)

	m.metrics.totalRequests.Store(0)
	m.metrics.totalErrors.Store(0)
	m.metrics.bytesSent.Store(0)
	m.metrics.bytesReceived.Store(0)

	m.sendHistory = make([][]byte, 0)
}
