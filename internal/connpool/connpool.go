// Package connpool implements spec.md §4.C: a per-descriptor pool of
// reusable client handles with scoped lease/return semantics. Grounded on
// the teacher's lazily-populated, mutex-guarded client map
// (internal/communication/grpc/grpc_communicator.go's
// clients map[string]communicationpb.MessageServiceClient + clientLock).
package connpool

import (
	"context"
	"sync"

	"github.com/DavidCohen17/ImpalaToGo/internal/cacheerrors"
	"github.com/DavidCohen17/ImpalaToGo/internal/descriptor"
	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
)

// State is one of the four connection states of spec.md §3.
type State int

const (
	NonInitialized State = iota
	FreeInitialized
	BusyOK
	BusyBad
)

// Dialer opens a new native connection handle for a descriptor. It is
// supplied by the remotefs adapter that owns the descriptor (e.g. a call
// through fsbridge's getFileSystem).
type Dialer func(ctx context.Context) (any, error)

// Connection is a pooled native handle plus its lifecycle state.
type Connection struct {
	mu     sync.Mutex
	state  State
	Native any
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lease is a scoped acquisition of a Connection, released on all exit
// paths including error paths — callers must defer lease.Release.
type Lease struct {
	pool *Pool
	conn *Connection
}

// Native returns the leased connection's native handle.
func (l *Lease) Native() any {
	return l.conn.Native
}

// Release returns the connection to the pool. bad marks the connection
// BUSY_BAD (available for re-dial, not re-use as-is) if the caller
// observed the connection misbehave.
func (l *Lease) Release(bad bool) {
	l.conn.mu.Lock()
	if bad {
		l.conn.state = BusyBad
	} else {
		l.conn.state = FreeInitialized
	}
	l.conn.mu.Unlock()
	l.pool.released()
}

// Pool is the per-descriptor connection pool. There is no hard cap;
// growth is demand-driven, per spec.md §4.C.
type Pool struct {
	mu     sync.Mutex
	desc   descriptor.Descriptor
	dial   Dialer
	conns  []*Connection
	ls     logging.Service
}

func NewPool(desc descriptor.Descriptor, dial Dialer, ls logging.Service) *Pool {
	return &Pool{desc: desc, dial: dial, ls: ls.With("connpool")}
}

// Acquire implements the four-step algorithm of spec.md §4.C.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	// Step 1: prefer a FREE_INITIALIZED connection.
	if conn := p.takeFree(); conn != nil {
		return &Lease{pool: p, conn: conn}, nil
	}

	// Step 2: find any non-FREE, non-BUSY_OK connection (e.g. BUSY_BAD)
	// and re-dial it.
	if conn := p.takeRedialable(); conn != nil {
		native, err := p.dial(ctx)
		conn.mu.Lock()
		if err != nil {
			conn.state = BusyBad
			conn.mu.Unlock()
			p.ls.Warn(logging.Event{Message: "re-dial failed", Metadata: map[string]any{"host": p.desc.Host}})
		} else {
			conn.Native = native
			conn.state = BusyOK
			conn.mu.Unlock()
			return &Lease{pool: p, conn: conn}, nil
		}
	}

	// Step 3: create a new connection, admit it FREE_INITIALIZED, retry
	// step 1.
	native, err := p.dial(ctx)
	if err == nil {
		conn := &Connection{state: FreeInitialized, Native: native}
		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.mu.Unlock()
		if got := p.takeFree(); got != nil {
			return &Lease{pool: p, conn: got}, nil
		}
	}

	// Step 4: all steps failed.
	return nil, cacheerrors.New(cacheerrors.KindNotReachable, "connpool.Acquire",
		"descriptor "+string(p.desc.DfsType)+"://"+p.desc.Host+" is not reachable")
}

func (p *Pool) takeFree() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.mu.Lock()
		if c.state == FreeInitialized {
			c.state = BusyOK
			c.mu.Unlock()
			return c
		}
		c.mu.Unlock()
	}
	return nil
}

func (p *Pool) takeRedialable() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.mu.Lock()
		if c.state != FreeInitialized && c.state != BusyOK {
			c.state = BusyOK // reserved for re-dial, avoids a second taker racing us
			c.mu.Unlock()
			return c
		}
		c.mu.Unlock()
	}
	return nil
}

func (p *Pool) released() {
	// No-op hook point; kept distinct from Release so Pool can later track
	// pool-wide metrics (idle count, size) without changing Lease's API.
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Manager routes descriptors to their Pool, creating pools on demand.
type Manager struct {
	mu    sync.Mutex
	pools map[descriptor.RoutingKey]*Pool
	ls    logging.Service
}

func NewManager(ls logging.Service) *Manager {
	return &Manager{pools: make(map[descriptor.RoutingKey]*Pool), ls: ls}
}

// PoolFor returns the pool for desc, constructing it with dial if this is
// the first request for this descriptor's routing key.
func (m *Manager) PoolFor(desc descriptor.Descriptor, dial Dialer) *Pool {
	key := desc.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[key]; ok {
		return p
	}
	p := NewPool(desc, dial, m.ls)
	m.pools[key] = p
	return p
}
