package datasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

func writeGenericDescriptor(t *testing.T, dir, id string) {
	t.Helper()
	content := `{"ID":"` + id + `","serverType":"generic","fields":[{"name":"id","primaryKey":true},{"name":"name"}]}`
	if err := os.WriteFile(filepath.Join(dir, id+".ds.js"), []byte(content), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func TestPoolManager_AcquireReleaseReusesInstance(t *testing.T) {
	dir := t.TempDir()
	writeGenericDescriptor(t, dir, "widget")

	store := descriptor.NewStore(dir)
	pm := NewPoolManager(store, nil, dir, false, nil)

	ds1, err := pm.Acquire("widget")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pm.Release("widget", ds1); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ds2, err := pm.Acquire("widget")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if ds1 != ds2 {
		t.Fatalf("expected the released instance to be reused")
	}
}

func TestPoolManager_UnknownServerTypeRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weird.ds.js"), []byte(`{"ID":"weird","serverType":"cobol","fields":[]}`), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	store := descriptor.NewStore(dir)
	pm := NewPoolManager(store, nil, dir, false, nil)

	_, err := pm.Acquire("weird")
	if err == nil {
		t.Fatalf("expected error for unknown serverType")
	}
}
