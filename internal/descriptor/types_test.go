package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

func writeDescriptor(t *testing.T, dir, id, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".ds.js"), []byte(content), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func TestStore_LoadJSONCachesById(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "country", `{
		"ID": "country",
		"serverType": "sql",
		"fields": [
			{"name":"id","type":"integer","primaryKey":true},
			{"name":"name","type":"text"},
			{"name":"continent","type":"text"}
		]
	}`)

	s := NewStore(dir)
	d, err := s.Load("country")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Table() != "country" {
		t.Fatalf("expected table fallback to id, got %q", d.Table())
	}
	if len(d.PKFields()) != 1 || d.PKFields()[0].Name != "id" {
		t.Fatalf("expected single pk field id, got %v", d.PKFields())
	}
	if len(d.NonPKFields()) != 2 {
		t.Fatalf("expected 2 non-pk fields, got %v", d.NonPKFields())
	}

	d2, err := s.Load("country")
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if d != d2 {
		t.Fatalf("expected cached pointer identity on second Load")
	}
}

func TestStore_LoadMissingDescriptor(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load("ghost")
	if apperrors.KindOf(err) != apperrors.DescriptorNotFound {
		t.Fatalf("expected DescriptorNotFound, got %v", err)
	}
}

func TestStore_LoadIdMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "country", `{"ID":"other","fields":[]}`)

	s := NewStore(dir)
	_, err := s.Load("country")
	if apperrors.KindOf(err) != apperrors.TypeMismatch {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
}

func TestFieldDescriptor_ColumnFallsBackToName(t *testing.T) {
	f := FieldDescriptor{Name: "continent"}
	if f.Column() != "continent" {
		t.Fatalf("expected fallback to name, got %q", f.Column())
	}
	f.NativeName = "cont_code"
	if f.Column() != "cont_code" {
		t.Fatalf("expected nativeName, got %q", f.Column())
	}
}
