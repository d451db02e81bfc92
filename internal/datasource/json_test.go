package datasource

import (
	"context"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

func countryDescriptor(id string) *descriptor.DataSourceDescriptor {
	return &descriptor.DataSourceDescriptor{
		ID: id,
		Fields: []descriptor.FieldDescriptor{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "text"},
			{Name: "continent", Type: "text"},
		},
	}
}

func TestJSONDataSource_MissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	desc := countryDescriptor("country")
	desc.FileName = "country.json"
	ds := NewJSONDataSource(desc, dir, nil)

	if err := ds.Init(&Request{OperationType: "fetch"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	resp, err := ds.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.TotalRows != 0 {
		t.Fatalf("expected 0 rows for missing file, got %d", resp.TotalRows)
	}
}

func TestJSONDataSource_AddFetchUpdateRemove(t *testing.T) {
	dir := t.TempDir()
	desc := countryDescriptor("country")
	desc.FileName = "country.json"

	add := NewJSONDataSource(desc, dir, nil)
	if err := add.Init(&Request{OperationType: "add", Values: map[string]any{"id": float64(1), "name": "Belgium", "continent": "Europe"}}); err != nil {
		t.Fatalf("Init add: %v", err)
	}
	if _, err := add.Execute(context.Background()); err != nil {
		t.Fatalf("add Execute: %v", err)
	}

	fetch := NewJSONDataSource(desc, dir, nil)
	_ = fetch.Init(&Request{OperationType: "fetch"})
	resp, err := fetch.Execute(context.Background())
	if err != nil {
		t.Fatalf("fetch Execute: %v", err)
	}
	if resp.TotalRows != 1 {
		t.Fatalf("expected 1 row after add, got %d", resp.TotalRows)
	}

	update := NewJSONDataSource(desc, dir, nil)
	_ = update.Init(&Request{
		OperationType:  "update",
		SimpleCriteria: map[string]any{"id": float64(1)},
		Values:         map[string]any{"name": "Belgique"},
	})
	updResp, err := update.Execute(context.Background())
	if err != nil {
		t.Fatalf("update Execute: %v", err)
	}
	if rec, ok := updResp.Data.(Record); !ok || rec["name"] != "Belgique" {
		t.Fatalf("expected updated name, got %v", updResp.Data)
	}

	remove := NewJSONDataSource(desc, dir, nil)
	_ = remove.Init(&Request{OperationType: "remove", SimpleCriteria: map[string]any{"id": float64(1)}})
	if _, err := remove.Execute(context.Background()); err != nil {
		t.Fatalf("remove Execute: %v", err)
	}

	fetch2 := NewJSONDataSource(desc, dir, nil)
	_ = fetch2.Init(&Request{OperationType: "fetch"})
	resp2, _ := fetch2.Execute(context.Background())
	if resp2.TotalRows != 0 {
		t.Fatalf("expected 0 rows after remove, got %d", resp2.TotalRows)
	}
}

func TestJSONDataSource_UpdateMissingRowNotFound(t *testing.T) {
	dir := t.TempDir()
	desc := countryDescriptor("country")
	desc.FileName = "country.json"

	update := NewJSONDataSource(desc, dir, nil)
	_ = update.Init(&Request{
		OperationType:  "update",
		SimpleCriteria: map[string]any{"id": float64(99)},
		Values:         map[string]any{"name": "Nowhere"},
	})
	_, err := update.Execute(context.Background())
	if apperrors.KindOf(err) != apperrors.RowNotFound {
		t.Fatalf("expected RowNotFound, got %v", err)
	}
}
