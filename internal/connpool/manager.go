package connpool

import (
	"fmt"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/config"
	"github.com/kartikbazzad/bunbase/opbridge/internal/resource"
)

// FactoryBuilder constructs a resource.Factory for a named driver
// (config key db.<name>.factory), registered at program start — this
// named-factory registry stands in for dynamic class loading.
type FactoryBuilder func(dbc config.DBConfig) (resource.Factory, error)

// Manager is the process-wide connection pool registry.
type Manager struct {
	cfg       *config.Config
	factories map[string]FactoryBuilder // registry key -> builder
	mu        sync.Mutex
	pools     map[string]*Pool // dbName -> Pool, created on first Acquire
}

// NewManager creates a registry for the given configuration. Register
// driver builders with RegisterFactory before the first Acquire.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:       cfg,
		factories: make(map[string]FactoryBuilder),
		pools:     make(map[string]*Pool),
	}
}

// RegisterFactory adds a named driver builder (e.g. "pgx") to the
// registry, analogous to db.<dbName>.factory in configuration.
func (m *Manager) RegisterFactory(name string, b FactoryBuilder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = b
}

// Acquire borrows a connection for dbName (or the configured default
// database when dbName is empty), creating the pool on first use.
func (m *Manager) Acquire(dbName string) (*Connection, string, error) {
	dbc, resolvedName, ok := m.cfg.Lookup(dbName)
	if !ok {
		return nil, "", apperrors.New(apperrors.ConfigMissing, "no db section or default database configured", nil)
	}

	pool, err := m.poolFor(resolvedName, dbc)
	if err != nil {
		return nil, "", err
	}
	conn, err := pool.Acquire()
	if err != nil {
		return nil, "", err
	}
	return conn, resolvedName, nil
}

// Release returns a connection to its owning pool by name.
func (m *Manager) Release(dbName string, conn *Connection) error {
	m.mu.Lock()
	pool, ok := m.pools[dbName]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("connpool: no pool named %q", dbName)
	}
	return pool.Release(conn)
}

// GetDBType resolves db.<name>.type (e.g. "postgresql"), used by the
// SQL query builder to select the SQL dialect.
func (m *Manager) GetDBType(dbName string) (string, error) {
	dbc, _, ok := m.cfg.Lookup(dbName)
	if !ok {
		return "", apperrors.New(apperrors.ConfigMissing, "no db section or default database configured", nil)
	}
	return dbc.Type, nil
}

func (m *Manager) poolFor(name string, dbc config.DBConfig) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[name]; ok {
		return p, nil
	}

	builder, ok := m.factories[dbc.Factory]
	if !ok {
		return nil, apperrors.New(apperrors.UnknownDriver, fmt.Sprintf("no factory registered for %q", dbc.Factory), nil)
	}
	factory, err := builder(dbc)
	if err != nil {
		return nil, apperrors.New(apperrors.UnknownDriver, fmt.Sprintf("build factory %q", dbc.Factory), err)
	}

	opts := DefaultOptions()
	if dbc.PoolMin > 0 {
		opts.MinSize = dbc.PoolMin
	}
	if dbc.PoolMax > 0 {
		opts.MaxSize = dbc.PoolMax
	}
	if m.cfg.AcquireTimeout > 0 {
		opts.AcquireTimeout = m.cfg.AcquireTimeout
	}

	pool, err := newPool(name, factory, opts)
	if err != nil {
		return nil, apperrors.New(apperrors.ResourceAcquisitionFailed, fmt.Sprintf("create pool %q", name), err)
	}
	m.pools[name] = pool
	return pool, nil
}

// CloseAll shuts down every pool, for graceful process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		_ = p.Close()
	}
}
