package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/connpool"
	"github.com/kartikbazzad/bunbase/opbridge/internal/criteria"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// SQLDataSource is the SQL-backed DataSource: a relational back end
// accessed through a pooled connection, with criteria compiled to
// parameterised SQL and every user value bound, never concatenated.
type SQLDataSource struct {
	Base

	pool    *connpool.Manager
	dbName  string
	strict  bool

	conn    *connpool.Connection
	connTag string
	dialect string
	tx      pgx.Tx

	req *Request
}

// NewSQLDataSource constructs a SQLDataSource bound to desc, acquiring
// connections through pool under desc.DBName (or the configured default
// database).
func NewSQLDataSource(desc *descriptor.DataSourceDescriptor, pool *connpool.Manager, strictSQLFiltering bool, logger *slog.Logger) *SQLDataSource {
	return &SQLDataSource{
		Base:   Base{Desc: desc, Logger: logger},
		pool:   pool,
		dbName: desc.DBName,
		strict: strictSQLFiltering,
	}
}

func (s *SQLDataSource) Init(req *Request) error {
	s.req = req
	conn, resolvedName, err := s.pool.Acquire(s.dbName)
	if err != nil {
		return apperrors.Wrap(apperrors.ResourceAcquisitionFailed, err)
	}
	dialect, err := s.pool.GetDBType(resolvedName)
	if err != nil {
		_ = s.pool.Release(resolvedName, conn)
		return apperrors.Wrap(apperrors.ResourceAcquisitionFailed, err)
	}
	s.conn = conn
	s.connTag = resolvedName
	s.dialect = dialect
	return nil
}

func (s *SQLDataSource) StartTransaction(ctx context.Context) error {
	pc, ok := s.conn.Raw.(*pgx.Conn)
	if !ok {
		return apperrors.New(apperrors.BackendError, "connection is not a *pgx.Conn", nil)
	}
	tx, err := pc.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.BackendError, err)
	}
	s.tx = tx
	return nil
}

func (s *SQLDataSource) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return apperrors.Wrap(apperrors.BackendError, err)
	}
	return nil
}

func (s *SQLDataSource) Rollback(ctx context.Context) error {
	if err := s.tx.Rollback(ctx); err != nil {
		s.Logger.Warn("sql datasource: rollback failed", "error", err)
	}
	return nil
}

func (s *SQLDataSource) FreeResources() error {
	if s.conn == nil {
		return nil
	}
	if err := s.pool.Release(s.connTag, s.conn); err != nil {
		s.Logger.Warn("sql datasource: release failed", "error", err)
	}
	return nil
}

func (s *SQLDataSource) Execute(ctx context.Context) (*Response, error) {
	switch s.req.OperationType {
	case "fetch":
		return s.executeFetch(ctx)
	case "add":
		return s.executeAdd(ctx)
	case "update":
		return s.executeUpdate(ctx)
	case "remove":
		return s.executeRemove(ctx)
	default:
		return nil, apperrors.New(apperrors.Unimplemented, "operationType "+s.req.OperationType+" not implemented", nil)
	}
}

func (s *SQLDataSource) resolveColumn(field string) (string, bool) {
	return s.Desc.Column(field)
}

func (s *SQLDataSource) selectColumns() (string, []string) {
	order := make([]string, 0, len(s.Desc.Fields))
	cols := make(map[string]string, len(s.Desc.Fields))
	for _, f := range s.Desc.Fields {
		order = append(order, f.Name)
		cols[f.Name] = f.Column()
	}
	return columnList(cols, order), order
}

func (s *SQLDataSource) executeFetch(ctx context.Context) (*Response, error) {
	cols, order := s.selectColumns()
	query := fmt.Sprintf("SELECT %s FROM %s", cols, s.Desc.Table())

	var params []any
	where, p, err := s.compileCriteria()
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " WHERE " + where
		params = append(params, p...)
	}

	query += sortClause(s.req.SortBy, s.resolveColumn)

	startRow := 0
	if s.req.StartRow != nil {
		startRow = *s.req.StartRow
	}
	if s.req.EndRow != nil {
		limit := *s.req.EndRow - startRow
		if limit < 0 {
			limit = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, startRow)
	} else if startRow > 0 {
		query += fmt.Sprintf(" OFFSET %d", startRow)
	}

	query = rewritePlaceholders(query, s.dialect)

	rows, err := s.tx.Query(ctx, query, params...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.BackendError, err)
		}
		rec := make(Record, len(order))
		for i, name := range order {
			if i < len(vals) {
				rec[name] = vals[i]
			} else {
				rec[name] = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}

	return &Response{
		Status:    0,
		Data:      records,
		StartRow:  startRow,
		EndRow:    startRow + len(records),
		TotalRows: len(records), // windowed count, — no separate count query
	}, nil
}

// compileCriteria dispatches to the advanced-criteria compiler or the
// simple field/value predicate builder, matching // "If criteria are advanced ... Otherwise treat each top-level key...".
func (s *SQLDataSource) compileCriteria() (string, []any, error) {
	if s.req.AdvancedCriteria != nil {
		c := criteria.New(s.resolveColumn, s.strict, s.Logger)
		return c.Compile(s.req.AdvancedCriteria)
	}
	if len(s.req.SimpleCriteria) == 0 {
		return "", nil, nil
	}
	style := s.req.TextMatchStyle
	if style == "" {
		style = "substring" // fetch default, point 4
	}
	return compileSimpleCriteria(s.req.SimpleCriteria, style, s.resolveColumn)
}

func (s *SQLDataSource) executeAdd(ctx context.Context) (*Response, error) {
	values := s.req.Values
	if values == nil {
		values = map[string]any{}
	}
	if err := s.ValidateFields(values); err != nil {
		return validationResponse(err), nil
	}

	var names []string
	var placeholders []string
	var params []any
	for _, f := range s.Desc.Fields {
		v, ok := values[f.Name]
		if !ok || f.IsSequence() {
			continue
		}
		names = append(names, f.Column())
		placeholders = append(placeholders, "?")
		params = append(params, v)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Desc.Table(), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	seqFields := sequenceFields(s.Desc)
	if len(seqFields) > 0 {
		returningCols := make([]string, 0, len(seqFields))
		for _, f := range seqFields {
			returningCols = append(returningCols, f.Column())
		}
		query += " RETURNING " + strings.Join(returningCols, ", ")
		query = rewritePlaceholders(query, s.dialect)

		row := s.tx.QueryRow(ctx, query, params...)
		scanDests := make([]any, len(seqFields))
		scanVals := make([]any, len(seqFields))
		for i := range scanVals {
			scanDests[i] = &scanVals[i]
		}
		if err := row.Scan(scanDests...); err != nil {
			return nil, apperrors.Wrap(apperrors.BackendError, err)
		}
		for i, f := range seqFields {
			values[f.Name] = scanVals[i]
		}
	} else {
		query = rewritePlaceholders(query, s.dialect)
		if _, err := s.tx.Exec(ctx, query, params...); err != nil {
			return nil, apperrors.Wrap(apperrors.BackendError, err)
		}
	}

	pk, err := s.GetPKValue(values)
	if err != nil {
		return nil, err
	}
	row, err := s.fetchByPK(ctx, pk)
	if err != nil {
		return nil, err
	}
	return &Response{Status: 0, Data: row, AffectedRows: 1, InvalidateCache: true}, nil
}

func (s *SQLDataSource) executeUpdate(ctx context.Context) (*Response, error) {
	if err := s.ValidateFields(s.req.Values); err != nil {
		return validationResponse(err), nil
	}
	pk, err := s.GetPKValue(s.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}
	nonPK := s.GetNonPKValue(s.req.Values)

	var sets []string
	var params []any
	for _, f := range s.NonPKFields() {
		v, ok := nonPK[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, f.Column()+" = ?")
		params = append(params, v)
	}
	if len(sets) == 0 {
		return &Response{Status: 0, Data: s.req.Values, AffectedRows: 0}, nil
	}

	whereSQL, whereParams := pkWhere(s.Desc, pk)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.Desc.Table(), strings.Join(sets, ", "), whereSQL)
	params = append(params, whereParams...)
	query = rewritePlaceholders(query, s.dialect)

	tag, err := s.tx.Exec(ctx, query, params...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	if tag.RowsAffected() < 1 {
		return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
	}

	row, err := s.fetchByPK(ctx, pk)
	if err != nil {
		return nil, err
	}
	return &Response{Status: 0, Data: row, AffectedRows: int(tag.RowsAffected()), InvalidateCache: true}, nil
}

func (s *SQLDataSource) executeRemove(ctx context.Context) (*Response, error) {
	pk, err := s.GetPKValue(s.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}

	whereSQL, params := pkWhere(s.Desc, pk)
	query := rewritePlaceholders(fmt.Sprintf("DELETE FROM %s WHERE %s", s.Desc.Table(), whereSQL), s.dialect)

	tag, err := s.tx.Exec(ctx, query, params...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	if tag.RowsAffected() < 1 {
		return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
	}

	return &Response{Status: 0, Data: pk, AffectedRows: int(tag.RowsAffected()), InvalidateCache: true}, nil
}

func (s *SQLDataSource) fetchByPK(ctx context.Context, pk map[string]any) (Record, error) {
	cols, order := s.selectColumns()
	whereSQL, params := pkWhere(s.Desc, pk)
	query := rewritePlaceholders(fmt.Sprintf("SELECT %s FROM %s WHERE %s", cols, s.Desc.Table(), whereSQL), s.dialect)

	row := s.tx.QueryRow(ctx, query, params...)
	vals := make([]any, len(order))
	dests := make([]any, len(order))
	for i := range vals {
		dests[i] = &vals[i]
	}
	if err := row.Scan(dests...); err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	rec := make(Record, len(order))
	for i, name := range order {
		rec[name] = vals[i]
	}
	return rec, nil
}

func pkWhere(desc *descriptor.DataSourceDescriptor, pk map[string]any) (string, []any) {
	var clauses []string
	var params []any
	for _, f := range desc.PKFields() {
		clauses = append(clauses, f.Column()+" = ?")
		params = append(params, pk[f.Name])
	}
	return strings.Join(clauses, " AND "), params
}

func sequenceFields(desc *descriptor.DataSourceDescriptor) []descriptor.FieldDescriptor {
	var out []descriptor.FieldDescriptor
	for _, f := range desc.Fields {
		if f.IsSequence() {
			out = append(out, f)
		}
	}
	return out
}
