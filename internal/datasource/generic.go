package datasource

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// genericStore is the process-wide backing store for GenericDataSource
// instances, keyed by descriptor id so every pooled instance of the same
// data source shares one record set. This is deliberately a plain
// mutex-guarded slice, not a transactional engine — see DESIGN.md.
type genericStore struct {
	mu   sync.Mutex
	rows []map[string]any
}

var genericStores sync.Map // descriptor id -> *genericStore

func storeFor(id string) *genericStore {
	s, _ := genericStores.LoadOrStore(id, &genericStore{})
	return s.(*genericStore)
}

// GenericDataSource is the base/"generic" serverType DataSource: an
// in-process record store with no external back end.
type GenericDataSource struct {
	Base
	store *genericStore
	req   *Request
}

// NewGenericDataSource constructs a GenericDataSource for desc.
func NewGenericDataSource(desc *descriptor.DataSourceDescriptor, logger *slog.Logger) *GenericDataSource {
	return &GenericDataSource{Base: Base{Desc: desc, Logger: logger}, store: storeFor(desc.ID)}
}

func (g *GenericDataSource) Init(req *Request) error {
	g.req = req
	return nil
}

func (g *GenericDataSource) StartTransaction(ctx context.Context) error { return nil }
func (g *GenericDataSource) Commit(ctx context.Context) error           { return nil }
func (g *GenericDataSource) Rollback(ctx context.Context) error         { return nil }
func (g *GenericDataSource) FreeResources() error                       { return nil }

func (g *GenericDataSource) Execute(ctx context.Context) (*Response, error) {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	switch g.req.OperationType {
	case "fetch":
		return g.executeFetch()
	case "add":
		return g.executeAdd()
	case "update":
		return g.executeUpdate()
	case "remove":
		return g.executeRemove()
	default:
		return nil, apperrors.New(apperrors.Unimplemented, "operationType "+g.req.OperationType+" not implemented", nil)
	}
}

func (g *GenericDataSource) executeFetch() (*Response, error) {
	var matched []map[string]any
	for _, row := range g.store.rows {
		if matchesSimpleCriteria(row, g.req.SimpleCriteria) {
			matched = append(matched, row)
		}
	}
	records := g.ToRecords(matched)
	return &Response{Status: 0, Data: records, StartRow: 0, EndRow: len(records), TotalRows: len(records)}, nil
}

func (g *GenericDataSource) executeAdd() (*Response, error) {
	values := g.req.Values
	if values == nil {
		values = map[string]any{}
	}
	if err := g.ValidateFields(values); err != nil {
		return validationResponse(err), nil
	}
	if _, err := g.GetPKValue(values); err != nil {
		return nil, err
	}
	g.store.rows = append(g.store.rows, values)
	return &Response{Status: 0, Data: g.toRecord(values), AffectedRows: 1, InvalidateCache: true}, nil
}

func (g *GenericDataSource) executeUpdate() (*Response, error) {
	if err := g.ValidateFields(g.req.Values); err != nil {
		return validationResponse(err), nil
	}
	pk, err := g.GetPKValue(g.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}
	for i, row := range g.store.rows {
		rowPK, err := g.GetPKValue(row)
		if err != nil || !reflect.DeepEqual(rowPK, pk) {
			continue
		}
		for k, v := range g.req.Values {
			g.store.rows[i][k] = v
		}
		return &Response{Status: 0, Data: g.toRecord(g.store.rows[i]), AffectedRows: 1, InvalidateCache: true}, nil
	}
	return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
}

func (g *GenericDataSource) executeRemove() (*Response, error) {
	pk, err := g.GetPKValue(g.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}
	for i, row := range g.store.rows {
		rowPK, err := g.GetPKValue(row)
		if err != nil || !reflect.DeepEqual(rowPK, pk) {
			continue
		}
		g.store.rows = append(g.store.rows[:i], g.store.rows[i+1:]...)
		return &Response{Status: 0, Data: pk, AffectedRows: 1, InvalidateCache: true}, nil
	}
	return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
}

func matchesSimpleCriteria(row map[string]any, crit map[string]any) bool {
	for field, want := range crit {
		if !matchesValue(row[field], want) {
			return false
		}
	}
	return true
}

func matchesValue(got, want any) bool {
	if values, ok := want.([]any); ok {
		for _, v := range values {
			if matchesValue(got, v) {
				return true
			}
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}
