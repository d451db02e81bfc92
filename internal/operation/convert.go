package operation

import (
	"encoding/json"

	"github.com/kartikbazzad/bunbase/opbridge/internal/criteria"
	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
)

// buildRequest converts a parsed envelope operation into the
// datasource.Request its DataSource executes, applying the REST
// URL-path PK overlay of ("On REST operations, apply
// URL-path overlays ... overlay PK into criteria/values").
func buildRequest(op *envelope.Operation, desc *descriptor.DataSourceDescriptor) *datasource.Request {
	req := &datasource.Request{
		OperationType:  op.OperationType,
		Data:           asMap(op.Data),
		Values:         op.Values,
		OldValues:      op.OldValues,
		SortBy:         op.SortBy,
		StartRow:       op.StartRow,
		EndRow:         op.EndRow,
		TextMatchStyle: op.TextMatchStyle,
	}

	if isAdvancedCriteria(op.Criteria) {
		req.AdvancedCriteria = toAdvancedCriteria(op.Criteria)
	} else {
		req.SimpleCriteria = op.Criteria
	}

	if op.RawPK != "" {
		overlayRawPK(req, desc, op.RawPK)
	}

	return req
}

// isAdvancedCriteria reports whether crit is an AdvancedCriteria tree
// (it carries an "operator" key) rather than a plain field/value map.
func isAdvancedCriteria(crit map[string]any) bool {
	_, ok := crit["operator"]
	return ok
}

func toAdvancedCriteria(crit map[string]any) *criteria.Criterion {
	data, err := json.Marshal(crit)
	if err != nil {
		return nil
	}
	var node criteria.Criterion
	if err := json.Unmarshal(data, &node); err != nil {
		return nil
	}
	return &node
}

// overlayRawPK assigns a REST path PK segment onto the request's
// criteria (fetch/update/remove) and, for add, leaves values untouched
// (the PK there comes from the body). Composite (multi-column) primary
// keys cannot be expressed as a single path segment, so the overlay
// only applies when the descriptor has exactly one PK field.
func overlayRawPK(req *datasource.Request, desc *descriptor.DataSourceDescriptor, rawPK string) {
	pkFields := desc.PKFields()
	if len(pkFields) != 1 {
		return
	}
	name := pkFields[0].Name

	switch req.OperationType {
	case "update", "remove", "fetch":
		if req.SimpleCriteria == nil {
			req.SimpleCriteria = map[string]any{}
		}
		req.SimpleCriteria[name] = rawPK
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
