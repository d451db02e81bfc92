// Package connpool implements the connection pool: a process-wide
// registry mapping dbName -> Pool<Connection>, each pool backed by a
// resource.Factory. The pool mechanics (idle list, health checker
// goroutine, min/max sizing) are generalized over any resource.Factory
// so the same pool code serves SQL drivers, an embedded store, or a
// test fake alike.
package connpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/resource"
)

// Connection is one pooled resource plus its bookkeeping.
type Connection struct {
	Raw       any
	id        uint64
	inUse     atomic.Bool
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nano
	owner     *Pool
}

// Options configures a single named Pool.
type Options struct {
	MinSize        int
	MaxSize        int
	IdleTimeout    time.Duration
	HealthInterval time.Duration
	AcquireTimeout time.Duration
}

// DefaultOptions returns the pool's baseline sizing and timeouts.
func DefaultOptions() Options {
	return Options{
		MinSize:        1,
		MaxSize:        20,
		IdleTimeout:    5 * time.Minute,
		HealthInterval: 30 * time.Second,
		AcquireTimeout: 5 * time.Second,
	}
}

// Pool manages the connections for a single named back end.
type Pool struct {
	name        string
	factory     resource.Factory
	opts        Options
	mu          sync.Mutex
	connections []*Connection
	nextID      atomic.Uint64
	stopCh      chan struct{}
	closed      bool
	backoff     *rate.Limiter
}

func newPool(name string, factory resource.Factory, opts Options) (*Pool, error) {
	p := &Pool{
		name:    name,
		factory: factory,
		opts:    opts,
		stopCh:  make(chan struct{}),
		backoff: rate.NewLimiter(rate.Every(25*time.Millisecond), 1),
	}
	for i := 0; i < opts.MinSize; i++ {
		c, err := p.create()
		if err != nil {
			p.closeAll()
			return nil, err
		}
		p.connections = append(p.connections, c)
	}
	if opts.HealthInterval > 0 {
		go p.healthLoop()
	}
	return p, nil
}

func (p *Pool) create() (*Connection, error) {
	raw, err := p.factory.Create()
	if err != nil {
		return nil, err
	}
	c := &Connection{Raw: raw, id: p.nextID.Add(1), createdAt: time.Now(), owner: p}
	c.lastUsed.Store(time.Now().UnixNano())
	return c, nil
}

// Acquire returns an idle, validated connection, creating a new one if
// the pool has room. When the pool is momentarily exhausted it retries,
// paced by a rate limiter, until AcquireTimeout elapses and it finally
// fails with ResourceExhausted.
func (p *Pool) Acquire() (*Connection, error) {
	deadline := time.Now().Add(p.opts.AcquireTimeout)
	for {
		c, err := p.tryAcquire()
		if err == nil || !apperrors.Is(err, apperrors.ResourceExhausted) || time.Now().After(deadline) {
			return c, err
		}
		_ = p.backoff.Wait(context.Background())
	}
}

func (p *Pool) tryAcquire() (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, apperrors.New(apperrors.ResourceAcquisitionFailed, fmt.Sprintf("pool %q is closed", p.name), nil)
	}

	for _, c := range p.connections {
		if c.inUse.Load() {
			continue
		}
		if !p.factory.Validate(c.Raw) {
			continue // reaped by the health loop
		}
		c.inUse.Store(true)
		c.lastUsed.Store(time.Now().UnixNano())
		return c, nil
	}

	if len(p.connections) < p.opts.MaxSize {
		c, err := p.create()
		if err != nil {
			return nil, apperrors.New(apperrors.ResourceAcquisitionFailed, fmt.Sprintf("pool %q: create connection", p.name), err)
		}
		c.inUse.Store(true)
		p.connections = append(p.connections, c)
		return c, nil
	}

	return nil, apperrors.New(apperrors.ResourceExhausted, fmt.Sprintf("pool %q exhausted (max %d)", p.name, p.opts.MaxSize), nil)
}

// Release returns a connection to the idle set. Release never fails the
// caller's operation; any error is returned for logging only.
func (p *Pool) Release(c *Connection) error {
	if c == nil {
		return fmt.Errorf("connpool: release of nil connection")
	}
	if c.owner != p {
		return fmt.Errorf("connpool: connection does not belong to pool %q", p.name)
	}
	c.inUse.Store(false)
	c.lastUsed.Store(time.Now().UnixNano())
	return nil
}

func (p *Pool) healthLoop() {
	ticker := time.NewTicker(p.opts.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reap()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) reap() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	alive := make([]*Connection, 0, len(p.connections))
	for _, c := range p.connections {
		if c.inUse.Load() {
			alive = append(alive, c)
			continue
		}
		if !p.factory.Validate(c.Raw) {
			_ = p.factory.Destroy(c.Raw)
			continue
		}
		idleFor := now.Sub(time.Unix(0, c.lastUsed.Load()))
		if idleFor > p.opts.IdleTimeout && len(alive) >= p.opts.MinSize {
			_ = p.factory.Destroy(c.Raw)
			continue
		}
		alive = append(alive, c)
	}
	p.connections = alive

	for len(p.connections) < p.opts.MinSize {
		c, err := p.create()
		if err != nil {
			break
		}
		p.connections = append(p.connections, c)
	}
}

func (p *Pool) closeAll() {
	for _, c := range p.connections {
		_ = p.factory.Destroy(c.Raw)
	}
	p.connections = nil
}

// Close shuts the pool down, destroying every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.stopCh)
	p.closeAll()
	return nil
}

// Stats reports idle/active/total counts, mirroring bundoc/pool.PoolStats.
type Stats struct {
	Total, Idle, Active, MinSize, MaxSize int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.connections), MinSize: p.opts.MinSize, MaxSize: p.opts.MaxSize}
	for _, c := range p.connections {
		if c.inUse.Load() {
			s.Active++
		} else {
			s.Idle++
		}
	}
	return s
}
