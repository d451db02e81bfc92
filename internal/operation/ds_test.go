package operation

import (
	"context"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

type fakeDataSource struct {
	desc        *descriptor.DataSourceDescriptor
	req         *datasource.Request
	execErr     error
	commitErr   error
	initErr     error
	freed       bool
	executeResp *datasource.Response
}

func (f *fakeDataSource) Init(req *datasource.Request) error {
	f.req = req
	return f.initErr
}
func (f *fakeDataSource) StartTransaction(ctx context.Context) error { return nil }
func (f *fakeDataSource) Execute(ctx context.Context) (*datasource.Response, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.executeResp, nil
}
func (f *fakeDataSource) Commit(ctx context.Context) error   { return f.commitErr }
func (f *fakeDataSource) Rollback(ctx context.Context) error { return nil }
func (f *fakeDataSource) FreeResources() error               { f.freed = true; return nil }
func (f *fakeDataSource) Descriptor() *descriptor.DataSourceDescriptor { return f.desc }

type fakeAcquirer struct {
	ds      *fakeDataSource
	release bool
}

func (a *fakeAcquirer) Acquire(id string) (datasource.DataSource, error) { return a.ds, nil }
func (a *fakeAcquirer) Release(id string, ds datasource.DataSource) error {
	a.release = true
	return nil
}

func testDescriptor() *descriptor.DataSourceDescriptor {
	return &descriptor.DataSourceDescriptor{
		ID: "country",
		Fields: []descriptor.FieldDescriptor{
			{Name: "id", PrimaryKey: true},
			{Name: "name"},
		},
	}
}

func TestDSOperation_SuccessfulLifecycle(t *testing.T) {
	ds := &fakeDataSource{desc: testDescriptor(), executeResp: &datasource.Response{Status: 0, Data: []datasource.Record{{"id": 1}}}}
	acq := &fakeAcquirer{ds: ds}

	op := &DSOperation{Envelope: &envelope.Operation{DataSourceName: "country", OperationType: "fetch"}, Pool: acq}
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	result := op.Execute(context.Background())
	if result.Status != 0 {
		t.Fatalf("expected status 0, got %d", result.Status)
	}
	op.FreeResources()
	if !acq.release {
		t.Fatalf("expected Release to be called")
	}
}

func TestDSOperation_ExecuteFailureRollsBackAndEmitsErrorResult(t *testing.T) {
	ds := &fakeDataSource{desc: testDescriptor(), execErr: apperrors.New(apperrors.RowNotFound, "Row does not exists", nil)}
	acq := &fakeAcquirer{ds: ds}

	op := &DSOperation{Envelope: &envelope.Operation{DataSourceName: "country", OperationType: "update"}, Pool: acq}
	_ = op.Init()
	result := op.Execute(context.Background())
	if result.Status != -1 {
		t.Fatalf("expected generic failure status -1, got %d", result.Status)
	}
	if result.Data != "RowNotFound: Row does not exists" {
		t.Fatalf("unexpected error data: %v", result.Data)
	}
}

func TestDSOperation_CommitFailureYieldsTransactionFailedStatus(t *testing.T) {
	ds := &fakeDataSource{desc: testDescriptor(), commitErr: apperrors.New(apperrors.BackendError, "commit failed", nil), executeResp: &datasource.Response{}}
	acq := &fakeAcquirer{ds: ds}

	op := &DSOperation{Envelope: &envelope.Operation{DataSourceName: "country", OperationType: "update"}, Pool: acq}
	_ = op.Init()
	result := op.Execute(context.Background())
	if result.Status != -10 {
		t.Fatalf("expected status -10 on commit failure, got %d", result.Status)
	}
}
