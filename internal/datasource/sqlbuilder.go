package datasource

import (
	"fmt"
	"strconv"
	"strings"
)

// rewritePlaceholders rewrites the compiler's uniform "?" markers into the
// placeholder syntax the resolved SQL dialect expects. Postgres and its pgx driver require
// ordinal $1, $2, ... placeholders; every other configured dialect is
// assumed to accept "?" directly.
func rewritePlaceholders(sql string, dialect string) string {
	if dialect != "postgresql" && dialect != "postgres" {
		return sql
	}
	var b strings.Builder
	n := 0
	for _, ch := range sql {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// columnList builds "col AS fieldName, ..." for a SELECT clause.
func columnList(cols map[string]string, order []string) string {
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%s AS %s", cols[name], name))
	}
	return strings.Join(parts, ", ")
}

// sortClause translates sortBy (a "-" prefix means descending) into an
// ORDER BY clause, resolving each entry through resolveColumn.
func sortClause(sortBy []string, resolveColumn func(string) (string, bool)) string {
	if len(sortBy) == 0 {
		return ""
	}
	var parts []string
	for _, s := range sortBy {
		desc := strings.HasPrefix(s, "-")
		field := strings.TrimPrefix(s, "-")
		col, ok := resolveColumn(field)
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
