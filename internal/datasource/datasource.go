// Package datasource implements the DataSource abstract contract and
// its SQL/JSON/generic concrete subclasses: a descriptor-driven record
// store with field projection helpers, fronting a SQL connection, a
// flat JSON file, or an in-memory map.
package datasource

import (
	"context"

	"github.com/kartikbazzad/bunbase/opbridge/internal/criteria"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// Record is a mapping from field name to scalar value.
type Record map[string]any

// Request is the bound DS operation a DataSource executes.
type Request struct {
	OperationType    string // fetch | add | update | remove | custom
	Data             map[string]any
	SimpleCriteria   map[string]any   // present when criteria is a plain field/value map
	AdvancedCriteria *criteria.Criterion // present when criteria is an AdvancedCriteria tree
	Values           map[string]any
	OldValues        map[string]any
	SortBy           []string
	StartRow         *int
	EndRow           *int
	TextMatchStyle   string // exact | substring | startsWith
}

// Response is the DSResponse a DataSource.Execute returns.
type Response struct {
	Status          int
	Data            any // []Record, Record, or nil
	StartRow        int
	EndRow          int
	TotalRows       int
	AffectedRows    int
	InvalidateCache bool
	Errors          map[string]string
}

// DataSource is the capability set every concrete data source
// implements.
type DataSource interface {
	Init(req *Request) error
	StartTransaction(ctx context.Context) error
	Execute(ctx context.Context) (*Response, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	FreeResources() error
	Descriptor() *descriptor.DataSourceDescriptor
}
