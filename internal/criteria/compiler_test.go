package criteria

import (
	"strings"
	"testing"
)

func columns(m map[string]string) ColumnResolver {
	return func(field string) (string, bool) {
		c, ok := m[field]
		return c, ok
	}
}

func TestCompile_SimpleContainsLenient(t *testing.T) {
	c := New(columns(map[string]string{"continent": "continent"}), false, nil)
	node := &Criterion{Operator: OpIContains, FieldName: "continent", Value: "Europe"}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, "upper('' || continent)") || !strings.Contains(sql, "upper(?)") {
		t.Fatalf("expected case-insensitive upper() wrapping, got %q", sql)
	}
	if !strings.HasSuffix(sql, "escape '~'") {
		t.Fatalf("expected escape clause, got %q", sql)
	}
	if len(params) != 1 || params[0] != "%Europe%" {
		t.Fatalf("expected params [%%Europe%%], got %v", params)
	}
}

func TestCompile_AndOrNegationWithNull(t *testing.T) {
	c := New(columns(map[string]string{"age": "age", "name": "name"}), false, nil)

	node := &Criterion{
		Operator: OpNot,
		Criteria: []*Criterion{
			{Operator: OpEquals, FieldName: "age", Value: nil},
			{Operator: OpEquals, FieldName: "name", Value: "bob"},
		},
	}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(sql, "NOT (") {
		t.Fatalf("expected NOT(...) wrapper, got %q", sql)
	}
	if !strings.Contains(sql, "age IS NULL") {
		t.Fatalf("expected age IS NULL inside negation, got %q", sql)
	}
	if !strings.Contains(sql, "name = ?") {
		t.Fatalf("expected name = ? inside negation, got %q", sql)
	}
	if len(params) != 1 || params[0] != "bob" {
		t.Fatalf("expected params [bob], got %v", params)
	}
}

func TestCompile_EmptyLogicalNodeOmitted(t *testing.T) {
	c := New(columns(nil), false, nil)
	node := &Criterion{Operator: OpAnd, Criteria: nil}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "" || params != nil {
		t.Fatalf("expected omitted fragment, got sql=%q params=%v", sql, params)
	}
}

func TestCompile_InSetWithNullsSplits(t *testing.T) {
	c := New(columns(map[string]string{"status": "status"}), false, nil)
	node := &Criterion{Operator: OpInSet, FieldName: "status", Value: []any{"open", "closed", nil}}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(sql, "status IN (?,?)") || !strings.Contains(sql, "status IS NULL") {
		t.Fatalf("expected split IN/IS NULL clause, got %q", sql)
	}
	if len(params) != 2 {
		t.Fatalf("expected 2 bound params, got %v", params)
	}
}

func TestCompile_StrictModeSkipsNullHandling(t *testing.T) {
	c := New(columns(map[string]string{"age": "age"}), true, nil)
	node := &Criterion{Operator: OpEquals, FieldName: "age", Value: 10}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "age = ?" {
		t.Fatalf("expected bare strict comparison, got %q", sql)
	}
	if len(params) != 1 || params[0] != 10 {
		t.Fatalf("expected params [10], got %v", params)
	}
}

func TestCompile_BetweenOpenEndedNull(t *testing.T) {
	c := New(columns(map[string]string{"age": "age"}), false, nil)
	node := &Criterion{Operator: OpBetweenInclusive, FieldName: "age", Start: nil, End: nil}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "1=1" {
		t.Fatalf("expected constant true, got %q", sql)
	}
	if params != nil {
		t.Fatalf("expected no params, got %v", params)
	}
}

func TestCompile_UnsupportedOperatorOmitted(t *testing.T) {
	c := New(columns(map[string]string{"name": "name"}), false, nil)
	node := &Criterion{Operator: OpRegexp, FieldName: "name", Value: "^a"}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "" || params != nil {
		t.Fatalf("expected omitted fragment for regexp, got sql=%q params=%v", sql, params)
	}
}

func TestCompile_UnknownFieldFallsBackToTrue(t *testing.T) {
	c := New(columns(nil), false, nil)
	node := &Criterion{Operator: OpEquals, FieldName: "ghost", Value: "x"}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "1=1" || params != nil {
		t.Fatalf("expected constant true for unknown field, got sql=%q params=%v", sql, params)
	}
}

func TestCompile_PatternTranslatesGlob(t *testing.T) {
	c := New(columns(map[string]string{"name": "name"}), false, nil)
	node := &Criterion{Operator: OpMatchesPattern, FieldName: "name", Value: "A*_B?"}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "name like ? escape '~'" {
		t.Fatalf("unexpected sql %q", sql)
	}
	if len(params) != 1 || params[0] != "A%~_B_" {
		t.Fatalf("expected translated pattern A%%~_B_, got %v", params)
	}
}

func TestCompile_CrossFieldComparison(t *testing.T) {
	c := New(columns(map[string]string{"startDate": "start_date", "endDate": "end_date"}), false, nil)
	node := &Criterion{Operator: OpLessThanField, FieldName: "startDate", Value: "endDate"}

	sql, params, err := c.Compile(node)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if sql != "start_date < end_date" {
		t.Fatalf("unexpected sql %q", sql)
	}
	if params != nil {
		t.Fatalf("expected no bound params, got %v", params)
	}
}
