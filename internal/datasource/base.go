package datasource

import (
	"log/slog"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// Base holds the descriptor and field-projection helpers shared by every
// concrete DataSource.
type Base struct {
	Desc   *descriptor.DataSourceDescriptor
	Logger *slog.Logger
}

// Descriptor returns the bound descriptor.
func (b *Base) Descriptor() *descriptor.DataSourceDescriptor { return b.Desc }

// GetField resolves a field by name.
func (b *Base) GetField(name string) (descriptor.FieldDescriptor, bool) {
	return b.Desc.Field(name)
}

// PKFields returns the descriptor's primary-key fields.
func (b *Base) PKFields() []descriptor.FieldDescriptor { return b.Desc.PKFields() }

// NonPKFields returns the descriptor's non-primary-key fields.
func (b *Base) NonPKFields() []descriptor.FieldDescriptor { return b.Desc.NonPKFields() }

// GetPKValue projects obj onto the descriptor's PK fields, failing with
// MissingPrimaryKey if any PK field is absent from obj.
func (b *Base) GetPKValue(obj map[string]any) (map[string]any, error) {
	pk := make(map[string]any)
	for _, f := range b.PKFields() {
		v, ok := obj[f.Name]
		if !ok {
			return nil, apperrors.New(apperrors.MissingPrimaryKey, "missing primary key field "+f.Name, nil)
		}
		pk[f.Name] = v
	}
	return pk, nil
}

// GetNonPKValue projects obj onto the descriptor's non-PK fields,
// omitting any field absent from obj.
func (b *Base) GetNonPKValue(obj map[string]any) map[string]any {
	out := make(map[string]any)
	for _, f := range b.NonPKFields() {
		if v, ok := obj[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

// ToRecords projects objOrList (a map[string]any or []map[string]any)
// onto records containing exactly the descriptor's fields; values absent
// from the source are set to nil.
func (b *Base) ToRecords(objOrList any) []Record {
	switch v := objOrList.(type) {
	case nil:
		return nil
	case map[string]any:
		return []Record{b.toRecord(v)}
	case []map[string]any:
		out := make([]Record, 0, len(v))
		for _, o := range v {
			out = append(out, b.toRecord(o))
		}
		return out
	default:
		return nil
	}
}

func (b *Base) toRecord(obj map[string]any) Record {
	rec := make(Record, len(b.Desc.Fields))
	for _, f := range b.Desc.Fields {
		v, ok := obj[f.Name]
		if !ok {
			v = nil
		}
		rec[f.Name] = v
	}
	return rec
}
