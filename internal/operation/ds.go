package operation

import (
	"context"
	"log/slog"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

// DataSourceAcquirer is the subset of datasource.PoolManager a DS
// operation needs: acquire/release by descriptor id.
type DataSourceAcquirer interface {
	Acquire(id string) (datasource.DataSource, error)
	Release(id string, ds datasource.DataSource) error
}

// DSOperation binds one DS envelope operation to a pooled DataSource
// instance for its init/execute/free lifecycle.
type DSOperation struct {
	Envelope *envelope.Operation
	Pool     DataSourceAcquirer
	Logger   *slog.Logger

	ds datasource.DataSource
}

func (o *DSOperation) Init() error {
	ds, err := o.Pool.Acquire(o.Envelope.DataSourceName)
	if err != nil {
		return err
	}
	req := buildRequest(o.Envelope, ds.Descriptor())
	if err := ds.Init(req); err != nil {
		_ = o.Pool.Release(o.Envelope.DataSourceName, ds)
		return err
	}
	o.ds = ds
	return nil
}

func (o *DSOperation) Execute(ctx context.Context) *Result {
	if err := o.ds.StartTransaction(ctx); err != nil {
		return o.errorResult(err)
	}

	resp, err := o.ds.Execute(ctx)
	if err != nil {
		if rbErr := o.ds.Rollback(ctx); rbErr != nil {
			o.logf("rollback failed", rbErr)
		}
		return o.errorResult(err)
	}

	if err := o.ds.Commit(ctx); err != nil {
		if rbErr := o.ds.Rollback(ctx); rbErr != nil {
			o.logf("rollback after failed commit also failed", rbErr)
		}
		return &Result{
			Kind:         envelope.KindDS,
			Status:       apperrors.TransactionFailed.Status(),
			IsDSResponse: true,
		}
	}

	return &Result{
		Kind:            envelope.KindDS,
		Status:          resp.Status,
		Data:            resp.Data,
		StartRow:        resp.StartRow,
		EndRow:          resp.EndRow,
		TotalRows:       resp.TotalRows,
		AffectedRows:    resp.AffectedRows,
		InvalidateCache: resp.InvalidateCache,
		Errors:          resp.Errors,
		IsDSResponse:    true,
	}
}

func (o *DSOperation) FreeResources() {
	if o.ds == nil {
		return
	}
	if err := o.Pool.Release(o.Envelope.DataSourceName, o.ds); err != nil {
		o.logf("freeResources failed", err)
	}
}

func (o *DSOperation) errorResult(err error) *Result {
	o.logf("DS operation failed", err)
	return &Result{
		Kind:         envelope.KindDS,
		Status:       statusFor(err),
		Data:         err.Error(),
		IsDSResponse: true,
	}
}

func (o *DSOperation) logf(msg string, err error) {
	if o.Logger != nil {
		o.Logger.Warn(msg, "dataSource", o.Envelope.DataSourceName, "error", err)
	}
}
