package datasource

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/connpool"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// instancePool holds the idle DataSource instances for one descriptor
// id, plus the constructor used to grow it.
type instancePool struct {
	mu        sync.Mutex
	idle      []DataSource
	construct func() (DataSource, error)
}

// PoolManager is the DataSourcePool: a process-wide registry mapping
// descriptor id -> Pool<DataSource>, constructing SQL, JSON, or generic
// instances depending on the descriptor's serverType.
type PoolManager struct {
	descriptors    *descriptor.Store
	conns          *connpool.Manager
	dataSourcePath string
	strict         bool
	logger         *slog.Logger

	mu    sync.Mutex
	pools map[string]*instancePool
}

// NewPoolManager builds a DataSourcePool rooted at dataSourcePath,
// acquiring SQL connections through conns.
func NewPoolManager(descriptors *descriptor.Store, conns *connpool.Manager, dataSourcePath string, strictSQLFiltering bool, logger *slog.Logger) *PoolManager {
	return &PoolManager{
		descriptors:    descriptors,
		conns:          conns,
		dataSourcePath: dataSourcePath,
		strict:         strictSQLFiltering,
		logger:         logger,
		pools:          make(map[string]*instancePool),
	}
}

// Acquire returns a pooled DataSource for id, loading and caching its
// descriptor on first use and constructing a new instance only when the
// pool has no idle one.
func (m *PoolManager) Acquire(id string) (DataSource, error) {
	desc, err := m.descriptors.Load(id)
	if err != nil {
		return nil, err
	}

	pool, err := m.poolFor(id, desc)
	if err != nil {
		return nil, err
	}

	pool.mu.Lock()
	if n := len(pool.idle); n > 0 {
		ds := pool.idle[n-1]
		pool.idle = pool.idle[:n-1]
		pool.mu.Unlock()
		return ds, nil
	}
	pool.mu.Unlock()

	return pool.construct()
}

// Release calls DataSource.freeResources and returns the instance to
// its pool.
func (m *PoolManager) Release(id string, ds DataSource) error {
	if err := ds.FreeResources(); err != nil {
		m.logger.Warn("datasource pool: freeResources failed", "id", id, "error", err)
	}

	m.mu.Lock()
	pool, ok := m.pools[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("datasource pool: no pool for id %q", id)
	}
	pool.mu.Lock()
	pool.idle = append(pool.idle, ds)
	pool.mu.Unlock()
	return nil
}

func (m *PoolManager) poolFor(id string, desc *descriptor.DataSourceDescriptor) (*instancePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[id]; ok {
		return p, nil
	}

	construct, err := m.constructorFor(desc)
	if err != nil {
		return nil, err
	}
	p := &instancePool{construct: construct}
	m.pools[id] = p
	return p, nil
}

// constructorFor resolves serverConstructor/serverType to a DataSource
// factory function via explicit dispatch — a custom serverConstructor
// class path is rejected as UnknownServerType rather than loaded
// dynamically.
func (m *PoolManager) constructorFor(desc *descriptor.DataSourceDescriptor) (func() (DataSource, error), error) {
	if desc.ServerConstructor != "" {
		return nil, apperrors.New(apperrors.UnknownServerType, fmt.Sprintf("custom serverConstructor %q is not supported", desc.ServerConstructor), nil)
	}

	switch desc.ServerType {
	case "", "generic":
		return func() (DataSource, error) {
			return NewGenericDataSource(desc, m.logger), nil
		}, nil
	case "sql":
		return func() (DataSource, error) {
			return NewSQLDataSource(desc, m.conns, m.strict, m.logger), nil
		}, nil
	case "json":
		return func() (DataSource, error) {
			return NewJSONDataSource(desc, m.dataSourcePath, m.logger), nil
		}, nil
	default:
		return nil, apperrors.New(apperrors.UnknownServerType, desc.ServerType, nil)
	}
}
