package criteria

import (
	"fmt"
	"log/slog"
	"strings"
)

// ColumnResolver maps a descriptor field name to its SQL column
// expression.
type ColumnResolver func(fieldName string) (column string, ok bool)

// Compiler compiles a Criterion tree into a parameterised SQL fragment.
// Strict selects two "global flavour rules": Strict mode
// emits three-valued SQL logic verbatim; lenient mode (default) adds the
// null-handling documented per operator below.
type Compiler struct {
	Columns ColumnResolver
	Strict  bool
	Logger  *slog.Logger
}

// New creates a Compiler. A nil logger falls back to slog.Default().
func New(columns ColumnResolver, strict bool, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{Columns: columns, Strict: strict, Logger: logger}
}

// Compile translates node into a SQL fragment using "?" as the
// placeholder marker for every bound parameter (the caller's query
// builder rewrites "?" to the target dialect's placeholder syntax).
// An empty, nil-params return means the node compiled to "no predicate"
// (e.g. an empty logical node) and should be omitted from the WHERE
// clause entirely, not wrapped in parens.
func (c *Compiler) Compile(node *Criterion) (string, []any, error) {
	if node == nil {
		return "", nil, nil
	}
	if node.IsLogical() {
		return c.compileLogical(node)
	}
	return c.compileField(node)
}

func (c *Compiler) compileLogical(node *Criterion) (string, []any, error) {
	if node.Operator == OpNot {
		inner := &Criterion{Operator: OpOr, Criteria: node.Criteria}
		sql, params, err := c.compileLogical(inner)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			return "", nil, nil
		}
		return "NOT (" + sql + ")", params, nil
	}

	if node.Criteria == nil {
		c.Logger.Warn("criteria: logical node missing child list", "operator", node.Operator)
		return "", nil, nil
	}

	joiner := " AND "
	if node.Operator == OpOr {
		joiner = " OR "
	}

	var parts []string
	var params []any
	for _, child := range node.Criteria {
		sql, p, err := c.Compile(child)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue // empty children are skipped
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return strings.Join(parts, joiner), params, nil
}

func (c *Compiler) compileField(n *Criterion) (string, []any, error) {
	col, ok := c.Columns(n.FieldName)
	if !ok {
		c.Logger.Warn("criteria: unknown field", "field", n.FieldName)
		return "1=1", nil, nil
	}

	switch n.Operator {
	case OpEquals, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return c.compareScalar(col, n.Operator, n.Value, false)
	case OpIEquals:
		return c.compareScalar(wrapUpper(col), OpEquals, upperValue(n.Value), false)
	case OpINotEqual:
		return c.compareScalar(wrapUpper(col), OpNotEqual, upperValue(n.Value), false)

	case OpBetween, OpBetweenInclusive:
		return c.compareBetween(col, n.Start, n.End, n.Operator == OpBetweenInclusive, false)
	case OpIBetween, OpIBetweenInclusive:
		return c.compareBetween(wrapUpper(col), upperValue(n.Start), upperValue(n.End), n.Operator == OpIBetweenInclusive, false)

	case OpContains:
		return c.substring(col, n.Value, "%%%s%%", false, false)
	case OpStartsWith:
		return c.substring(col, n.Value, "%s%%", false, false)
	case OpEndsWith:
		return c.substring(col, n.Value, "%%%s", false, false)
	case OpIContains:
		return c.substring(col, n.Value, "%%%s%%", true, false)
	case OpIStartsWith:
		return c.substring(col, n.Value, "%s%%", true, false)
	case OpIEndsWith:
		return c.substring(col, n.Value, "%%%s", true, false)
	case OpNotContains:
		return c.substring(col, n.Value, "%%%s%%", false, true)
	case OpNotStartsWith:
		return c.substring(col, n.Value, "%s%%", false, true)
	case OpNotEndsWith:
		return c.substring(col, n.Value, "%%%s", false, true)
	case OpINotContains:
		return c.substring(col, n.Value, "%%%s%%", true, true)
	case OpINotStartsWith:
		return c.substring(col, n.Value, "%s%%", true, true)
	case OpINotEndsWith:
		return c.substring(col, n.Value, "%%%s", true, true)

	case OpMatchesPattern:
		return c.pattern(col, n.Value, "%s", false, false)
	case OpIMatchesPattern:
		return c.pattern(col, n.Value, "%s", true, false)
	case OpContainsPattern:
		return c.pattern(col, n.Value, "%%%s%%", false, false)
	case OpStartsWithPattern:
		return c.pattern(col, n.Value, "%s%%", false, false)
	case OpEndsWithPattern:
		return c.pattern(col, n.Value, "%%%s", false, false)
	case OpIContainsPattern:
		return c.pattern(col, n.Value, "%%%s%%", true, false)
	case OpIStartsWithPattern:
		return c.pattern(col, n.Value, "%s%%", true, false)
	case OpIEndsWithPattern:
		return c.pattern(col, n.Value, "%%%s", true, false)
	case OpNotContainsPattern:
		return c.pattern(col, n.Value, "%%%s%%", false, true)
	case OpNotStartsWithPattern:
		return c.pattern(col, n.Value, "%s%%", false, true)
	case OpNotEndsWithPattern:
		return c.pattern(col, n.Value, "%%%s", false, true)
	case OpINotContainsPattern:
		return c.pattern(col, n.Value, "%%%s%%", true, true)
	case OpINotStartsWithPattern:
		return c.pattern(col, n.Value, "%s%%", true, true)
	case OpINotEndsWithPattern:
		return c.pattern(col, n.Value, "%%%s", true, true)

	case OpIsBlank:
		return fmt.Sprintf("(%s IS NULL OR %s = '')", col, col), nil, nil
	case OpNotBlank:
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", col, col), nil, nil
	case OpIsNull:
		return col + " IS NULL", nil, nil
	case OpNotNull:
		return col + " IS NOT NULL", nil, nil

	case OpInSet:
		return c.inSet(col, n.Value, false)
	case OpNotInSet:
		sql, params, err := c.inSet(col, n.Value, false)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			return "", nil, nil
		}
		return "NOT (" + sql + ")", params, nil

	case OpEqualsField, OpNotEqualField, OpGreaterThanField, OpLessThanField, OpGreaterOrEqualField, OpLessOrEqualField:
		return c.compareField(col, n.Operator, n.FieldName, n.Value)
	case OpIEqualsField:
		return c.compareFieldCI(col, OpEquals, n.Value)
	case OpINotEqualField:
		return c.compareFieldCI(col, OpNotEqual, n.Value)
	case OpContainsField, OpStartsWithField, OpEndsWithField, OpIContainsField, OpIStartsWithField, OpIEndsWithField,
		OpNotContainsField, OpNotStartsWithField, OpNotEndsWithField, OpINotContainsField, OpINotStartsWithField, OpINotEndsWithField:
		return c.substringField(col, n.Operator, n.Value)

	case OpRegexp, OpIRegexp:
		c.Logger.Warn("criteria: unsupported operator", "operator", n.Operator)
		return "", nil, nil

	default:
		c.Logger.Warn("criteria: unknown operator", "operator", n.Operator)
		return "", nil, nil
	}
}

// compareScalar implements equals/notEqual/greaterThan/.../lessOrEqual,
// including lenient null rules.
func (c *Compiler) compareScalar(col string, op Operator, value any, valueAlreadySQL bool) (string, []any, error) {
	sqlOp, ok := scalarSQLOp[op]
	if !ok {
		return "", nil, fmt.Errorf("criteria: operator %s is not a scalar comparison", op)
	}

	if c.Strict {
		if value == nil {
			return col + " " + strictNullOp(op) + " NULL", nil, nil
		}
		return fmt.Sprintf("%s %s ?", col, sqlOp), []any{value}, nil
	}

	switch op {
	case OpEquals:
		if value == nil {
			return col + " IS NULL", nil, nil
		}
		return fmt.Sprintf("(%s = ? AND %s IS NOT NULL)", col, col), []any{value}, nil
	case OpNotEqual:
		if value == nil {
			return col + " IS NOT NULL", nil, nil
		}
		return fmt.Sprintf("(%s <> ? OR %s IS NULL)", col, col), []any{value}, nil
	default: // open-ended comparisons
		if value == nil {
			return "1=1", nil, nil
		}
		return fmt.Sprintf("%s %s ?", col, sqlOp), []any{value}, nil
	}
}

var scalarSQLOp = map[Operator]string{
	OpEquals:         "=",
	OpNotEqual:       "<>",
	OpGreaterThan:    ">",
	OpLessThan:       "<",
	OpGreaterOrEqual: ">=",
	OpLessOrEqual:    "<=",
}

func strictNullOp(op Operator) string {
	if op == OpEquals {
		return "IS"
	}
	return "IS NOT"
}

// compareBetween implements between/betweenInclusive as a conjunction of
// the two open-ended forms.
func (c *Compiler) compareBetween(col string, start, end any, inclusive, _ bool) (string, []any, error) {
	gtOp, ltOp := OpGreaterThan, OpLessThan
	if inclusive {
		gtOp, ltOp = OpGreaterOrEqual, OpLessOrEqual
	}
	if start == nil && end == nil {
		return "1=1", nil, nil
	}
	var parts []string
	var params []any
	if start != nil {
		sql, p, err := c.compareScalar(col, gtOp, start, false)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if end != nil {
		sql, p, err := c.compareScalar(col, ltOp, end, false)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// substring implements contains/startsWith/endsWith and their
// case-insensitive and negated variants.
func (c *Compiler) substring(col string, value any, wildcardFmt string, caseInsensitive, negate bool) (string, []any, error) {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	pattern := fmt.Sprintf(wildcardFmt, escapeLike(s))
	return c.likeClause(col, pattern, caseInsensitive, negate)
}

// pattern implements the matchesPattern/containsPattern/... family:
// translate the user glob first, then apply the like-style form.
func (c *Compiler) pattern(col string, value any, wildcardFmt string, caseInsensitive, negate bool) (string, []any, error) {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	translated := translatePattern(s)
	pattern := fmt.Sprintf(wildcardFmt, translated)
	return c.likeClause(col, pattern, caseInsensitive, negate)
}

func (c *Compiler) likeClause(col, pattern string, caseInsensitive, negate bool) (string, []any, error) {
	lhs, rhs := col, "?"
	if caseInsensitive {
		lhs = wrapUpper(col)
		rhs = "upper(?)"
	}
	like := "like"
	if negate {
		like = "not like"
	}
	sql := fmt.Sprintf("%s %s %s escape '%s'", lhs, like, rhs, likeEscapeChar)
	if negate && !c.Strict {
		// Lenient negation must not silently include NULL rows.
		sql = fmt.Sprintf("(%s AND %s IS NOT NULL)", sql, col)
	}
	return sql, []any{pattern}, nil
}

// inSet implements inSet (notInSet is "NOT inSet", composed by the caller).
func (c *Compiler) inSet(col string, value any, _ bool) (string, []any, error) {
	values, ok := value.([]any)
	if !ok {
		values = []any{value}
	}
	if len(values) == 0 {
		return "1=2", nil, nil
	}

	var nonNull []any
	hasNull := false
	for _, v := range values {
		if v == nil {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, v)
	}

	if len(nonNull) == 0 {
		return col + " IS NULL", nil, nil
	}

	placeholders := strings.Repeat("?,", len(nonNull))
	placeholders = strings.TrimSuffix(placeholders, ",")
	sql := fmt.Sprintf("%s IN (%s)", col, placeholders)
	if hasNull {
		sql = fmt.Sprintf("(%s OR %s IS NULL)", sql, col)
	}
	return sql, nonNull, nil
}

// compareField and substringField implement the cross-field operators:
// resolve the comparison value as another descriptor field rather than
// a literal.
func (c *Compiler) compareField(col string, op Operator, _ string, otherField any) (string, []any, error) {
	otherName, ok := otherField.(string)
	if !ok {
		c.Logger.Warn("criteria: cross-field operator value is not a field name", "operator", op)
		return "1=1", nil, nil
	}
	otherCol, ok := c.Columns(otherName)
	if !ok {
		c.Logger.Warn("criteria: unknown cross-field reference", "field", otherName)
		return "1=1", nil, nil
	}
	base := map[Operator]Operator{
		OpEqualsField: OpEquals, OpNotEqualField: OpNotEqual,
		OpGreaterThanField: OpGreaterThan, OpLessThanField: OpLessThan,
		OpGreaterOrEqualField: OpGreaterOrEqual, OpLessOrEqualField: OpLessOrEqual,
	}[op]
	sqlOp := scalarSQLOp[base]
	return fmt.Sprintf("%s %s %s", col, sqlOp, otherCol), nil, nil
}

func (c *Compiler) compareFieldCI(col string, base Operator, otherField any) (string, []any, error) {
	otherName, ok := otherField.(string)
	if !ok {
		return "1=1", nil, nil
	}
	otherCol, ok := c.Columns(otherName)
	if !ok {
		c.Logger.Warn("criteria: unknown cross-field reference", "field", otherName)
		return "1=1", nil, nil
	}
	sqlOp := scalarSQLOp[base]
	return fmt.Sprintf("%s %s %s", wrapUpper(col), sqlOp, wrapUpper(otherCol)), nil, nil
}

var substringFieldBase = map[Operator]struct {
	wildcard string
	ci       bool
	negate   bool
}{
	OpContainsField:       {"%%%s%%", false, false},
	OpStartsWithField:     {"%s%%", false, false},
	OpEndsWithField:       {"%%%s", false, false},
	OpIContainsField:      {"%%%s%%", true, false},
	OpIStartsWithField:    {"%s%%", true, false},
	OpIEndsWithField:      {"%%%s", true, false},
	OpNotContainsField:    {"%%%s%%", false, true},
	OpNotStartsWithField:  {"%s%%", false, true},
	OpNotEndsWithField:    {"%%%s", false, true},
	OpINotContainsField:   {"%%%s%%", true, true},
	OpINotStartsWithField: {"%s%%", true, true},
	OpINotEndsWithField:   {"%%%s", true, true},
}

func (c *Compiler) substringField(col string, op Operator, otherField any) (string, []any, error) {
	spec, ok := substringFieldBase[op]
	if !ok {
		return "", nil, fmt.Errorf("criteria: unhandled cross-field substring operator %s", op)
	}
	otherName, ok := otherField.(string)
	if !ok {
		return "1=1", nil, nil
	}
	otherCol, ok := c.Columns(otherName)
	if !ok {
		c.Logger.Warn("criteria: unknown cross-field reference", "field", otherName)
		return "1=1", nil, nil
	}
	// Cross-field substring concatenates the wildcard around the other
	// column's value at query time rather than a bound literal.
	concatParts := strings.Split(spec.wildcard, "%s")
	var expr strings.Builder
	expr.WriteString("(")
	if concatParts[0] != "" {
		expr.WriteString("'" + concatParts[0] + "' || ")
	}
	expr.WriteString(otherCol)
	if len(concatParts) > 1 && concatParts[1] != "" {
		expr.WriteString(" || '" + concatParts[1] + "'")
	}
	expr.WriteString(")")

	lhs, rhs := col, expr.String()
	if spec.ci {
		lhs = wrapUpper(col)
		rhs = "upper(" + rhs + ")"
	}
	like := "like"
	if spec.negate {
		like = "not like"
	}
	sql := fmt.Sprintf("%s %s %s", lhs, like, rhs)
	if spec.negate && !c.Strict {
		sql = fmt.Sprintf("(%s AND %s IS NOT NULL)", sql, col)
	}
	return sql, nil, nil
}

func wrapUpper(colExpr string) string {
	return fmt.Sprintf("upper('' || %s)", colExpr)
}

// upperValue uppercases a string value for the iEquals/iNotEqual family;
// non-string values pass through unchanged (case-folding a number is a
// no-op at the SQL layer once bound as a parameter).
func upperValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}
