package envelope

import (
	"encoding/json"
	"strings"
)

// ParseREST parses the REST front-end envelope: the
// same body parsing as IDA, plus a URL-path overlay and query/body
// param merging.
func ParseREST(in Input) (*Transaction, error) {
	txn, err := restTransactionFromBody(in)
	if err != nil {
		return nil, err
	}

	if dsName, opType, rawPK, ok := parseDSPath(in.Path); ok {
		for _, op := range txn.Operations {
			op.Kind = KindDS
			if dsName != "" {
				op.DataSourceName = dsName
			}
			effectiveOpType := opType
			if effectiveOpType == "" {
				effectiveOpType = defaultOperationTypeForMethod(in.Method)
			}
			if op.OperationType == "" {
				op.OperationType = effectiveOpType
			}
			op.RawPK = rawPK
		}
	}

	applyParamOverlay(txn, in.Params, in.MetaDataPrefix)
	return txn, nil
}

// restTransactionFromBody implements "same body parsing" plus the rule
// "If _transaction is absent but the body is a parsed JSON/XML
// document, treat that document as the transaction."
func restTransactionFromBody(in Input) (*Transaction, error) {
	if raw := in.Params["_transaction"]; raw != "" {
		m, err := DecodeBody([]byte(raw))
		if err != nil {
			return nil, err
		}
		return ParseTransaction(m)
	}

	if len(in.RawBody) == 0 {
		return &Transaction{Operations: []*Operation{{Kind: KindDS}}}, nil
	}

	m, err := DecodeBody(in.RawBody)
	if err != nil {
		return nil, err
	}
	if _, hasOps := m["operations"]; hasOps {
		return ParseTransaction(m)
	}
	// The posted body is the operation's own criteria/values document,
	// not an {operations:[...]} envelope — the common REST shape for a
	// single-operation call against /ds/<name>[/...].
	return &Transaction{Operations: []*Operation{{
		Kind:     KindDS,
		Data:     m,
		Criteria: m,
		Values:   m,
	}}}, nil
}

// parseDSPath matches /ds/<dsName>[/<opType>][/<pk>]. Per the "intended
// normalisation" of stripping any query string and filtering empty
// segments before inspecting the path.
func parseDSPath(path string) (dsName, opType, rawPK string, ok bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	dsIdx := -1
	for i, s := range segs {
		if s == "ds" {
			dsIdx = i
			break
		}
	}
	if dsIdx < 0 || dsIdx+1 >= len(segs) {
		return "", "", "", false
	}

	dsName = segs[dsIdx+1]
	rest := segs[dsIdx+2:]
	switch len(rest) {
	case 0:
		return dsName, "", "", true
	case 1:
		if isKnownOperationType(rest[0]) {
			return dsName, rest[0], "", true
		}
		return dsName, "", rest[0], true
	default:
		return dsName, rest[0], rest[1], true
	}
}

func isKnownOperationType(s string) bool {
	for _, t := range knownOperationTypes {
		if s == t {
			return true
		}
	}
	return false
}

func defaultOperationTypeForMethod(method string) string {
	switch strings.ToUpper(method) {
	case "GET":
		return "fetch"
	case "POST":
		return "add"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "remove"
	default:
		return ""
	}
}

// applyParamOverlay merges HTTP query/body params into each operation's
// data, third REST rule.
func applyParamOverlay(txn *Transaction, params map[string]string, metaPrefix string) {
	if metaPrefix == "" {
		metaPrefix = "_"
	}
	for _, op := range txn.Operations {
		dataMap, ok := op.Data.(map[string]any)
		if !ok {
			dataMap = map[string]any{}
			op.Data = dataMap
		}
		for k, v := range params {
			if k == "isc_dataFormat" || k == metaPrefix {
				continue
			}
			if strings.HasPrefix(k, metaPrefix) {
				applyMetaParam(op, strings.TrimPrefix(k, metaPrefix), v)
				continue
			}
			dataMap[k] = v
		}
	}
}

// applyMetaParam decodes a meta-data-prefixed param (attempting
// json.Unmarshal, falling back to the raw string) and applies it onto
// the operation's matching field when recognised.
func applyMetaParam(op *Operation, name, raw string) {
	var decoded any = raw
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err == nil {
		decoded = tmp
	}

	switch name {
	case "operationType":
		if s, ok := decoded.(string); ok {
			op.OperationType = s
		}
	case "dataSource":
		if s, ok := decoded.(string); ok {
			op.DataSourceName = s
		}
	case "textMatchStyle":
		if s, ok := decoded.(string); ok {
			op.TextMatchStyle = s
		}
	case "startRow":
		op.StartRow = asIntPtr(decoded)
	case "endRow":
		op.EndRow = asIntPtr(decoded)
	case "sortBy":
		op.SortBy = asStringList(decoded)
	case "componentId":
		if s, ok := decoded.(string); ok {
			op.ComponentID = s
		}
	}
}
