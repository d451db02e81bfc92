package datasource

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

// compileSimpleCriteria implements "Otherwise" fetch
// path: each top-level key of a non-advanced criteria map is a field
// predicate. Scalars get a textMatchStyle filter, arrays OR over their
// elements, and null/missing match IS NULL.
func compileSimpleCriteria(crit map[string]any, textMatchStyle string, resolveColumn func(string) (string, bool)) (string, []any, error) {
	var clauses []string
	var params []any

	for field, value := range crit {
		col, ok := resolveColumn(field)
		if !ok {
			continue // unknown field: ignored, matching the criteria compiler's "unknown field" leniency
		}
		clause, p, err := simplePredicate(col, value, textMatchStyle)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		params = append(params, p...)
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return strings.Join(clauses, " AND "), params, nil
}

func simplePredicate(col string, value any, textMatchStyle string) (string, []any, error) {
	if value == nil {
		return col + " IS NULL", nil, nil
	}

	if values, ok := value.([]any); ok {
		var parts []string
		var params []any
		for _, v := range values {
			clause, p, err := simplePredicate(col, v, textMatchStyle)
			if err != nil {
				return "", nil, err
			}
			if clause == "" {
				continue
			}
			parts = append(parts, clause)
			params = append(params, p...)
		}
		if len(parts) == 0 {
			return "", nil, nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", params, nil
	}

	switch textMatchStyle {
	case "", "exact":
		return col + " = ?", []any{value}, nil
	case "substring":
		return fmt.Sprintf("upper('' || %s) like upper(?) escape '~'", col), []any{"%" + escapeLikeLocal(value) + "%"}, nil
	case "startsWith":
		return fmt.Sprintf("upper('' || %s) like upper(?) escape '~'", col), []any{escapeLikeLocal(value) + "%"}, nil
	default:
		return "", nil, apperrors.New(apperrors.ParseError, "unknown textMatchStyle "+textMatchStyle, nil)
	}
}

func escapeLikeLocal(value any) string {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	r := strings.NewReplacer("~", "~~", "_", "~_", "%", "~%")
	return r.Replace(s)
}
