// Package descriptor implements the DataSourceDescriptor / FieldDescriptor
// metadata model and the <id>.ds.xml / <id>.ds.js descriptor file
// loader: an externally authored schema read once per process and
// cached forever.
package descriptor

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

// FieldDescriptor is one field of a DataSourceDescriptor.
type FieldDescriptor struct {
	Name       string `json:"name" xml:"name,attr"`
	NativeName string `json:"nativeName,omitempty" xml:"nativeName,attr,omitempty"`
	Type       string `json:"type,omitempty" xml:"type,attr,omitempty"`
	PrimaryKey bool   `json:"primaryKey,omitempty" xml:"primaryKey,attr,omitempty"`
	// JSONSchema optionally validates incoming values for this field,
	// checked by Base.ValidateFields before add/update execute.
	JSONSchema string `json:"jsonSchema,omitempty" xml:"jsonSchema,attr,omitempty"`
}

// Column returns the field's SQL column expression: nativeName if set,
// else name.
func (f FieldDescriptor) Column() string {
	if f.NativeName != "" {
		return f.NativeName
	}
	return f.Name
}

// IsSequence reports whether the field is an auto-generated primary key.
func (f FieldDescriptor) IsSequence() bool {
	return f.Type == "sequence"
}

// DataSourceDescriptor is the immutable metadata for one logical record
// set.
type DataSourceDescriptor struct {
	ID                string            `json:"ID" xml:"ID"`
	ServerType        string            `json:"serverType,omitempty" xml:"serverType,omitempty"`
	ServerConstructor string            `json:"serverConstructor,omitempty" xml:"serverConstructor,omitempty"`
	TableName         string            `json:"tableName,omitempty" xml:"tableName,omitempty"`
	DBName            string            `json:"dbName,omitempty" xml:"dbName,omitempty"`
	FileName          string            `json:"fileName,omitempty" xml:"fileName,omitempty"`
	JSONPrefix        string            `json:"jsonPrefix,omitempty" xml:"jsonPrefix,omitempty"`
	JSONSuffix        string            `json:"jsonSuffix,omitempty" xml:"jsonSuffix,omitempty"`
	Fields            []FieldDescriptor `json:"fields" xml:"fields>field"`
}

// Table resolves tableName = descriptor attribute or id.
func (d *DataSourceDescriptor) Table() string {
	if d.TableName != "" {
		return d.TableName
	}
	return d.ID
}

// Field returns the named field descriptor, if any.
func (d *DataSourceDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// PKFields returns the descriptor's primary-key fields, in descriptor
// order.
func (d *DataSourceDescriptor) PKFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Fields {
		if f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// NonPKFields returns the descriptor's non-primary-key fields.
func (d *DataSourceDescriptor) NonPKFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Fields {
		if !f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// Column resolves a field name to its SQL column, implementing
// criteria.ColumnResolver.
func (d *DataSourceDescriptor) Column(fieldName string) (string, bool) {
	f, ok := d.Field(fieldName)
	if !ok {
		return "", false
	}
	return f.Column(), true
}

// Store loads and caches descriptor files under a root path
// (dataSource.path), matching DataSourcePool's write-once-per-id
// descriptor cache.
type Store struct {
	root string
	mu   sync.RWMutex
	byID map[string]*DataSourceDescriptor
}

// NewStore creates a descriptor Store rooted at dataSourcePath.
func NewStore(dataSourcePath string) *Store {
	return &Store{root: dataSourcePath, byID: make(map[string]*DataSourceDescriptor)}
}

// Load returns the cached descriptor for id, reading and parsing
// <id>.ds.xml (preferred) or <id>.ds.js (fallback) on first use.
func (s *Store) Load(id string) (*DataSourceDescriptor, error) {
	s.mu.RLock()
	if d, ok := s.byID[id]; ok {
		s.mu.RUnlock()
		return d, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.byID[id]; ok {
		return d, nil
	}

	d, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if d.ID != "" && d.ID != id {
		return nil, apperrors.New(apperrors.TypeMismatch, fmt.Sprintf("descriptor %q declares id %q", id, d.ID), nil)
	}
	d.ID = id
	s.byID[id] = d
	return d, nil
}

func (s *Store) read(id string) (*DataSourceDescriptor, error) {
	xmlPath := filepath.Join(s.root, id+".ds.xml")
	if data, err := os.ReadFile(xmlPath); err == nil {
		var d DataSourceDescriptor
		if err := xml.Unmarshal(data, &d); err != nil {
			return nil, apperrors.New(apperrors.DescriptorParseError, "parse "+xmlPath, err)
		}
		return &d, nil
	} else if !os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.DescriptorParseError, "read "+xmlPath, err)
	}

	jsPath := filepath.Join(s.root, id+".ds.js")
	data, err := os.ReadFile(jsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.DescriptorNotFound, fmt.Sprintf("%s / %s", xmlPath, jsPath), nil)
		}
		return nil, apperrors.New(apperrors.DescriptorParseError, "read "+jsPath, err)
	}
	var d DataSourceDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperrors.New(apperrors.DescriptorParseError, "parse "+jsPath, err)
	}
	return &d, nil
}
