// Package pool manages a bounded set of sqlstore.Engine connections to the
// same database, the way bundoc/pool manages bundoc.Database connections: a
// minimum warm set, growth up to a configured maximum, idle eviction, and a
// background health checker.
//
// spec.md's database.max_connections config key is this package's maxSize;
// every engine in the pool talks to the same dsn so the xmin/xmax/xip_list
// bookkeeping a single sqlstore.Engine keeps in memory is per-connection,
// which is sound only because SQLite itself serializes writers across
// connections at the file level. A server wiring more than one pooled
// connection to a writable sqlstore database accepts that each connection
// computes transaction ids independently; spec.md does not require a single
// global clock across connections, only that a given connection's revisions
// are internally consistent.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kartikbazzad/entgraph/sqlstore"
	"github.com/kartikbazzad/entgraph/store"
)

// Connection is one pooled sqlstore.Engine plus its lifecycle bookkeeping.
type Connection struct {
	engine    *sqlstore.Engine
	ID        uint64
	CreatedAt time.Time
	InUse     atomic.Bool

	mu       sync.RWMutex
	lastUsed time.Time
	pool     *Pool
}

// Engine returns the connection's store.Engine, the only interface callers
// outside this package need.
func (c *Connection) Engine() store.Engine { return c.engine }

func (c *Connection) getLastUsed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUsed
}

func (c *Connection) setLastUsed(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = t
}

// Options configures a Pool.
type Options struct {
	MinSize        int
	MaxSize        int
	IdleTimeout    time.Duration
	HealthInterval time.Duration
}

// DefaultOptions mirrors bundoc/pool's defaults.
func DefaultOptions() Options {
	return Options{
		MinSize:        2,
		MaxSize:        10,
		IdleTimeout:    5 * time.Minute,
		HealthInterval: 30 * time.Second,
	}
}

// Pool manages sqlstore.Engine connections to a single dsn.
type Pool struct {
	dsn  string
	opts Options

	mu          sync.Mutex
	connections []*Connection
	nextID      atomic.Uint64
	running     bool
	stopChan    chan struct{}
}

// New opens opts.MinSize connections to dsn and starts the health checker.
func New(ctx context.Context, dsn string, opts Options) (*Pool, error) {
	if opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}

	p := &Pool{
		dsn:         dsn,
		opts:        opts,
		connections: make([]*Connection, 0, opts.MaxSize),
		stopChan:    make(chan struct{}),
	}

	for i := 0; i < opts.MinSize; i++ {
		conn, err := p.createConnection(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: create initial connection: %w", err)
		}
		p.connections = append(p.connections, conn)
	}

	p.running = true
	go p.healthChecker()

	return p, nil
}

func (p *Pool) createConnection(ctx context.Context) (*Connection, error) {
	eng, err := sqlstore.Open(ctx, p.dsn)
	if err != nil {
		return nil, err
	}
	conn := &Connection{
		engine:    eng,
		ID:        p.nextID.Add(1),
		CreatedAt: time.Now(),
		pool:      p,
	}
	conn.setLastUsed(time.Now())
	return conn, nil
}

// Acquire returns an idle connection, opening a fresh one if the pool is
// under opts.MaxSize, or an error once the pool is exhausted or closed.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, fmt.Errorf("pool: closed")
	}

	for _, conn := range p.connections {
		if !conn.InUse.Load() {
			conn.InUse.Store(true)
			conn.setLastUsed(time.Now())
			return conn, nil
		}
	}

	if len(p.connections) >= p.opts.MaxSize {
		return nil, fmt.Errorf("pool: exhausted, max size %d reached", p.opts.MaxSize)
	}

	conn, err := p.createConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool: create connection: %w", err)
	}
	conn.InUse.Store(true)
	p.connections = append(p.connections, conn)
	return conn, nil
}

// Release returns a connection acquired from this pool to the idle set.
func (p *Pool) Release(conn *Connection) error {
	if conn == nil {
		return fmt.Errorf("pool: cannot release nil connection")
	}
	if conn.pool != p {
		return fmt.Errorf("pool: connection does not belong to this pool")
	}
	conn.InUse.Store(false)
	conn.setLastUsed(time.Now())
	return nil
}

func (p *Pool) healthChecker() {
	ticker := time.NewTicker(p.opts.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.checkHealth()
		case <-p.stopChan:
			return
		}
	}
}

func (p *Pool) checkHealth() {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	alive := make([]*Connection, 0, len(p.connections))
	for _, conn := range p.connections {
		if conn.InUse.Load() {
			alive = append(alive, conn)
			continue
		}
		if err := conn.engine.Ping(ctx); err != nil {
			conn.engine.Close()
			continue
		}
		if now.Sub(conn.getLastUsed()) > p.opts.IdleTimeout && len(alive) >= p.opts.MinSize {
			conn.engine.Close()
			continue
		}
		alive = append(alive, conn)
	}
	p.connections = alive

	for len(p.connections) < p.opts.MinSize {
		conn, err := p.createConnection(ctx)
		if err != nil {
			break
		}
		p.connections = append(p.connections, conn)
	}
}

// Stats reports the current pool occupancy.
type Stats struct {
	Total, Idle, Active, MinSize, MaxSize int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.connections), MinSize: p.opts.MinSize, MaxSize: p.opts.MaxSize}
	for _, conn := range p.connections {
		if conn.InUse.Load() {
			s.Active++
		} else {
			s.Idle++
		}
	}
	return s
}

// Close stops the health checker and closes every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	close(p.stopChan)

	var lastErr error
	for _, conn := range p.connections {
		if err := conn.engine.Close(); err != nil {
			lastErr = err
		}
	}
	p.connections = nil
	return lastErr
}
