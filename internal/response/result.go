// Package response implements the response formatter: serialising a
// transaction's results to JSON or XML (FormatCustom is encoded as
// JSON, not as a per-result text form), and framing the
// body for the IDA or hidden-iframe transport in addition to plain
// REST.
package response

import "github.com/kartikbazzad/bunbase/opbridge/internal/operation"

// toWire projects a Result onto its wire response shape.
func toWire(r *operation.Result) map[string]any {
	m := map[string]any{
		"status": r.Status,
		"data":   r.Data,
	}
	if r.IsDSResponse {
		m["isDSResponse"] = true
		m["startRow"] = r.StartRow
		m["endRow"] = r.EndRow
		m["totalRows"] = r.TotalRows
		m["affectedRows"] = r.AffectedRows
		m["invalidateCache"] = r.InvalidateCache
		if len(r.Errors) > 0 {
			m["errors"] = r.Errors
		}
	}
	if r.Stacktrace != "" {
		m["stacktrace"] = r.Stacktrace
	}
	return m
}

func toWireList(results []*operation.Result) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, toWire(r))
	}
	return out
}
