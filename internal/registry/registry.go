// Package registry implements the RPC className -> constructor lookup
// that stands in for dynamic class loading, and the dataSourceLoader
// payload builder: both map a fixed set of registered names rather than
// loading code at runtime.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
	"github.com/kartikbazzad/bunbase/opbridge/internal/operation"
)

// RPC is a process-wide className -> constructor registry satisfying
// operation.RPCRegistry.
type RPC struct {
	mu         sync.RWMutex
	ctorByName map[string]operation.RPCConstructor
}

// NewRPC creates an empty RPC registry.
func NewRPC() *RPC {
	return &RPC{ctorByName: make(map[string]operation.RPCConstructor)}
}

// Register binds className to a constructor. Registering the same
// className twice replaces the earlier binding.
func (r *RPC) Register(className string, ctor operation.RPCConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctorByName[className] = ctor
}

// Lookup implements operation.RPCRegistry.
func (r *RPC) Lookup(className string) (operation.RPCConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctorByName[className]
	return ctor, ok
}

// systemSchemaID is the reserved descriptor id dataSourceLoader never
// emits a definition for.
const systemSchemaID = "$systemSchema"

// BuildDataSourceLoaderPayload renders the JavaScript payload for the
// dataSourceLoader endpoint: one isc.DataSource.create({...})
// call per requested id, skipping the reserved $systemSchema id and
// de-duplicating repeated ids while preserving first-occurrence order.
func BuildDataSourceLoaderPayload(store *descriptor.Store, ids []string) (string, error) {
	seen := make(map[string]bool, len(ids))
	var buf strings.Builder
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == systemSchemaID || seen[id] {
			continue
		}
		seen[id] = true

		desc, err := store.Load(id)
		if err != nil {
			return "", err
		}
		buf.WriteString("isc.DataSource.create(")
		buf.WriteString(dataSourceDescriptorJS(desc))
		buf.WriteString(");\n")
	}
	return buf.String(), nil
}

// dataSourceDescriptorJS renders a descriptor as a JS object literal
// in the shape the ISC client's isc.DataSource.create expects:
// {ID:"...", fields:[{name:"...", type:"...", primaryKey:true}, ...]}.
func dataSourceDescriptorJS(d *descriptor.DataSourceDescriptor) string {
	var buf strings.Builder
	buf.WriteString("{ID:")
	buf.WriteString(jsString(d.ID))
	if d.ServerType != "" {
		buf.WriteString(", serverType:")
		buf.WriteString(jsString(d.ServerType))
	}
	buf.WriteString(", fields:[")

	for i, f := range d.Fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("{name:")
		buf.WriteString(jsString(f.Name))
		if f.Type != "" {
			buf.WriteString(", type:")
			buf.WriteString(jsString(f.Type))
		}
		if f.PrimaryKey {
			buf.WriteString(", primaryKey:true")
		}
		buf.WriteString("}")
	}
	buf.WriteString("]}")
	return buf.String()
}

func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}
