package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// PoolStats is a snapshot of connection pool counters.
type PoolStats struct {
	ActiveConnections atomic.Int32
	IdleConnections   atomic.Int32
	TotalConnections  atomic.Int32
	WaitCount         atomic.Int64
	WaitDuration      atomic.Int64 // nanoseconds
	Hits              atomic.Int64
	Misses            atomic.Int64
	Timeouts          atomic.Int64
	Errors            atomic.Int64
}

// ConnectionPool keeps a bounded set of connections and recycles them across
// commands. Idle connections are reaped after idleTimeout and pinged every
// healthCheckInterval; dead connections are dropped on checkout and checkin.
type ConnectionPool struct {
	idle        chan ConnectionInterface
	dial        func(ctx context.Context) (ConnectionInterface, error)
	minIdle     int
	maxOpen     int
	idleTimeout time.Duration
	pingEvery   time.Duration

	stats PoolStats

	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewConnectionPool creates a pool that opens connections through dial.
// minIdle connections are pre-warmed by Initialize; at most maxOpen exist at
// any time.
func NewConnectionPool(
	dial func(ctx context.Context) (ConnectionInterface, error),
	minIdle, maxOpen int,
	idleTimeout, healthCheckInterval time.Duration,
) *ConnectionPool {
	if minIdle < 0 {
		minIdle = 0
	}
	if maxOpen < 1 {
		maxOpen = 1
	}
	if minIdle > maxOpen {
		minIdle = maxOpen
	}

	return &ConnectionPool{
		idle:        make(chan ConnectionInterface, maxOpen),
		dial:        dial,
		minIdle:     minIdle,
		maxOpen:     maxOpen,
		idleTimeout: idleTimeout,
		pingEvery:   healthCheckInterval,
		done:        make(chan struct{}),
	}
}

// Initialize pre-warms minIdle connections and starts the maintenance
// workers.
func (p *ConnectionPool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("pool is closed")
	}

	for i := 0; i < p.minIdle; i++ {
		conn, err := p.dial(ctx)
		if err != nil {
			p.drainAndClose()
			return fmt.Errorf("failed to create initial connection: %w", err)
		}

		p.idle <- conn
		p.stats.TotalConnections.Add(1)
		p.stats.IdleConnections.Add(1)
	}

	p.wg.Add(2)
	go p.reapLoop()
	go p.pingLoop()

	return nil
}

// Get checks a connection out of the pool, dialing a new one when the pool
// has capacity and nothing idle is available. Blocks until a connection
// frees up or ctx is done.
func (p *ConnectionPool) Get(ctx context.Context) (ConnectionInterface, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("pool is closed")
	}
	p.mu.RUnlock()

	start := time.Now()
	p.stats.WaitCount.Add(1)

	for {
		select {
		case <-ctx.Done():
			p.stats.Timeouts.Add(1)
			return nil, ctx.Err()

		case conn := <-p.idle:
			if checked := p.checkout(conn, start); checked != nil {
				return checked, nil
			}
			// Dead connection dropped; loop for another.

		default:
			if p.stats.TotalConnections.Load() < int32(p.maxOpen) {
				conn, err := p.dial(ctx)
				if err != nil {
					p.stats.Errors.Add(1)
					return nil, fmt.Errorf("failed to create new connection: %w", err)
				}

				p.stats.WaitDuration.Add(int64(time.Since(start)))
				p.stats.Misses.Add(1)
				p.stats.TotalConnections.Add(1)
				p.stats.ActiveConnections.Add(1)
				return conn, nil
			}

			// At capacity: block until a connection is returned.
			select {
			case <-ctx.Done():
				p.stats.Timeouts.Add(1)
				return nil, ctx.Err()
			case conn := <-p.idle:
				if checked := p.checkout(conn, start); checked != nil {
					return checked, nil
				}
			}
		}
	}
}

// checkout accounts for an idle connection handed to a caller, or drops it
// and returns nil when it is no longer alive.
func (p *ConnectionPool) checkout(conn ConnectionInterface, start time.Time) ConnectionInterface {
	p.stats.IdleConnections.Add(-1)

	if !conn.IsAlive() {
		p.stats.TotalConnections.Add(-1)
		conn.Close()
		return nil
	}

	p.stats.WaitDuration.Add(int64(time.Since(start)))
	p.stats.Hits.Add(1)
	p.stats.ActiveConnections.Add(1)
	return conn
}

// Put checks a connection back in. Dead connections and overflow beyond the
// pool's capacity are closed instead.
func (p *ConnectionPool) Put(conn ConnectionInterface) {
	if conn == nil {
		return
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		conn.Close()
		return
	}

	p.stats.ActiveConnections.Add(-1)

	if !conn.IsAlive() {
		p.stats.TotalConnections.Add(-1)
		conn.Close()
		return
	}

	select {
	case p.idle <- conn:
		p.stats.IdleConnections.Add(1)
	default:
		p.stats.TotalConnections.Add(-1)
		conn.Close()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *ConnectionPool) Stats() PoolStats {
	var s PoolStats
	s.ActiveConnections.Store(p.stats.ActiveConnections.Load())
	s.IdleConnections.Store(p.stats.IdleConnections.Load())
	s.TotalConnections.Store(p.stats.TotalConnections.Load())
	s.WaitCount.Store(p.stats.WaitCount.Load())
	s.WaitDuration.Store(p.stats.WaitDuration.Load())
	s.Hits.Store(p.stats.Hits.Load())
	s.Misses.Store(p.stats.Misses.Load())
	s.Timeouts.Store(p.stats.Timeouts.Load())
	s.Errors.Store(p.stats.Errors.Load())
	return s
}

// Close stops the maintenance workers and closes every idle connection.
// Connections currently checked out are closed when they are put back.
func (p *ConnectionPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	p.drainAndClose()
	return nil
}

// reapLoop periodically drops idle connections older than idleTimeout.
func (p *ConnectionPool) reapLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

// reapIdle closes stale idle connections while keeping minIdle around.
// Scanning stops at the first fresh connection: the idle channel is FIFO, so
// the head is always the longest-idle connection.
func (p *ConnectionPool) reapIdle() {
	now := time.Now()

	for int(p.stats.IdleConnections.Load()) > p.minIdle {
		select {
		case conn := <-p.idle:
			if now.Sub(conn.LastActivity()) > p.idleTimeout {
				p.stats.IdleConnections.Add(-1)
				p.stats.TotalConnections.Add(-1)
				conn.Close()
			} else {
				p.idle <- conn
				return
			}
		default:
			return
		}
	}
}

// pingLoop periodically health-checks idle connections.
func (p *ConnectionPool) pingLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.pingIdle()
		}
	}
}

// pingIdle pings each idle connection once and drops the ones that fail.
func (p *ConnectionPool) pingIdle() {
	count := int(p.stats.IdleConnections.Load())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < count; i++ {
		select {
		case conn := <-p.idle:
			if err := conn.Ping(ctx); err != nil || !conn.IsAlive() {
				p.stats.IdleConnections.Add(-1)
				p.stats.TotalConnections.Add(-1)
				conn.Close()
			} else {
				p.idle <- conn
			}
		default:
			return
		}
	}
}

func (p *ConnectionPool) drainAndClose() {
	for {
		select {
		case conn := <-p.idle:
			conn.Close()
		default:
			return
		}
	}
}
