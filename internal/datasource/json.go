package datasource

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
)

// fileLocks serialises concurrent writers to the same JSON file across
// JSONDataSource instances (the descriptor is pooled ,
// but two concurrent operations against the same id can still race on
// the underlying file without this).
var fileLocks sync.Map // path -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	m, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// JSONDataSource is the JSON-file-backed DataSource: a JSON-file-backed
// record set with whole-file fetch and linear-scan PK matching for writes.
type JSONDataSource struct {
	Base
	path string

	req  *Request
	lock *sync.Mutex
}

// NewJSONDataSource constructs a JSONDataSource reading/writing
// <dataSourcePath>/<fileName>.
func NewJSONDataSource(desc *descriptor.DataSourceDescriptor, dataSourcePath string, logger *slog.Logger) *JSONDataSource {
	fileName := desc.FileName
	if fileName == "" {
		fileName = desc.ID + ".json"
	}
	return &JSONDataSource{
		Base: Base{Desc: desc, Logger: logger},
		path: filepath.Join(dataSourcePath, fileName),
	}
}

func (j *JSONDataSource) Init(req *Request) error {
	j.req = req
	j.lock = lockFor(j.path)
	return nil
}

func (j *JSONDataSource) StartTransaction(ctx context.Context) error { return nil }
func (j *JSONDataSource) Commit(ctx context.Context) error           { return nil }
func (j *JSONDataSource) Rollback(ctx context.Context) error         { return nil }
func (j *JSONDataSource) FreeResources() error                       { return nil }

func (j *JSONDataSource) Execute(ctx context.Context) (*Response, error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	switch j.req.OperationType {
	case "fetch":
		return j.executeFetch()
	case "add":
		return j.executeAdd()
	case "update":
		return j.executeUpdate()
	case "remove":
		return j.executeRemove()
	default:
		return nil, apperrors.New(apperrors.Unimplemented, "operationType "+j.req.OperationType+" not implemented", nil)
	}
}

// readAll loads the whole file; a missing file is an empty list.
func (j *JSONDataSource) readAll() ([]map[string]any, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, apperrors.Wrap(apperrors.BackendError, err)
	}
	return rows, nil
}

func (j *JSONDataSource) writeAll(rows []map[string]any) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.BackendError, err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.BackendError, err)
	}
	return nil
}

func (j *JSONDataSource) executeFetch() (*Response, error) {
	rows, err := j.readAll()
	if err != nil {
		return nil, err
	}
	records := j.ToRecords(rows)
	return &Response{
		Status:    0,
		Data:      records,
		StartRow:  0,
		EndRow:    len(records),
		TotalRows: len(records),
	}, nil
}

func (j *JSONDataSource) executeAdd() (*Response, error) {
	rows, err := j.readAll()
	if err != nil {
		return nil, err
	}
	values := j.req.Values
	if values == nil {
		values = map[string]any{}
	}
	if err := j.ValidateFields(values); err != nil {
		return validationResponse(err), nil
	}
	rows = append(rows, values)
	if err := j.writeAll(rows); err != nil {
		return nil, err
	}
	if _, err := j.GetPKValue(values); err != nil {
		return nil, err
	}
	return &Response{Status: 0, Data: j.toRecord(values), AffectedRows: 1, InvalidateCache: true, StartRow: 0, EndRow: 1, TotalRows: len(rows)}, nil
}

func (j *JSONDataSource) executeUpdate() (*Response, error) {
	if err := j.ValidateFields(j.req.Values); err != nil {
		return validationResponse(err), nil
	}
	rows, err := j.readAll()
	if err != nil {
		return nil, err
	}
	pk, err := j.GetPKValue(j.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowPK, err := j.GetPKValue(row)
		if err != nil {
			continue
		}
		if !reflect.DeepEqual(rowPK, pk) {
			continue
		}
		for k, v := range j.req.Values {
			rows[i][k] = v
		}
		if err := j.writeAll(rows); err != nil {
			return nil, err
		}
		return &Response{Status: 0, Data: j.toRecord(rows[i]), AffectedRows: 1, InvalidateCache: true}, nil
	}
	return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
}

func (j *JSONDataSource) executeRemove() (*Response, error) {
	rows, err := j.readAll()
	if err != nil {
		return nil, err
	}
	pk, err := j.GetPKValue(j.req.SimpleCriteria)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		rowPK, err := j.GetPKValue(row)
		if err != nil {
			continue
		}
		if !reflect.DeepEqual(rowPK, pk) {
			continue
		}
		rows = append(rows[:i], rows[i+1:]...)
		if err := j.writeAll(rows); err != nil {
			return nil, err
		}
		return &Response{Status: 0, Data: pk, AffectedRows: 1, InvalidateCache: true}, nil
	}
	return nil, apperrors.New(apperrors.RowNotFound, "row does not exist", nil)
}
