package datasource

import (
	"context"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

func TestGenericDataSource_AddFetchFilterUpdateRemove(t *testing.T) {
	desc := countryDescriptor("generic-country-test")

	add := NewGenericDataSource(desc, nil)
	_ = add.Init(&Request{OperationType: "add", Values: map[string]any{"id": 1, "name": "Belgium", "continent": "Europe"}})
	if _, err := add.Execute(context.Background()); err != nil {
		t.Fatalf("add: %v", err)
	}
	add2 := NewGenericDataSource(desc, nil)
	_ = add2.Init(&Request{OperationType: "add", Values: map[string]any{"id": 2, "name": "Canada", "continent": "North America"}})
	if _, err := add2.Execute(context.Background()); err != nil {
		t.Fatalf("add2: %v", err)
	}

	fetch := NewGenericDataSource(desc, nil)
	_ = fetch.Init(&Request{OperationType: "fetch", SimpleCriteria: map[string]any{"continent": "Europe"}})
	resp, err := fetch.Execute(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.TotalRows != 1 {
		t.Fatalf("expected 1 filtered row, got %d", resp.TotalRows)
	}

	update := NewGenericDataSource(desc, nil)
	_ = update.Init(&Request{OperationType: "update", SimpleCriteria: map[string]any{"id": 1}, Values: map[string]any{"name": "Belgique"}})
	if _, err := update.Execute(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	remove := NewGenericDataSource(desc, nil)
	_ = remove.Init(&Request{OperationType: "remove", SimpleCriteria: map[string]any{"id": 2}})
	if _, err := remove.Execute(context.Background()); err != nil {
		t.Fatalf("remove: %v", err)
	}

	removeAgain := NewGenericDataSource(desc, nil)
	_ = removeAgain.Init(&Request{OperationType: "remove", SimpleCriteria: map[string]any{"id": 2}})
	_, err = removeAgain.Execute(context.Background())
	if apperrors.KindOf(err) != apperrors.RowNotFound {
		t.Fatalf("expected RowNotFound on second remove, got %v", err)
	}
}
