package envelope

import (
	"encoding/json"
	"fmt"
)

// DecodeBody parses a transaction body, trying JSON first and falling
// back to XML.
func DecodeBody(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}
	m, err := decodeXMLToMap(raw)
	if err != nil {
		return nil, fmt.Errorf("envelope: body is neither valid JSON nor XML: %w", err)
	}
	return m, nil
}

// ParseTransaction builds a Transaction from a decoded envelope map.
func ParseTransaction(m map[string]any) (*Transaction, error) {
	t := &Transaction{}
	if v, ok := m["transactionNum"].(string); ok {
		t.TransactionNum = v
	}
	if v, ok := m["jscallback"].(string); ok {
		t.JSCallback = v
	}

	for _, item := range asList(m["operations"]) {
		op, err := parseOperationElement(item)
		if err != nil {
			return nil, err
		}
		t.Operations = append(t.Operations, op)
	}
	return t, nil
}

// parseOperationElement classifies one operations[] element: the sentinel strings, a DS-operation object (appID + operation
// or operationConfig), or anything else as an RPC operation.
func parseOperationElement(item any) (*Operation, error) {
	if s, ok := item.(string); ok {
		if val, isSentinel := decodeSentinel(s); isSentinel {
			return &Operation{Kind: KindRPC, Data: val}, nil
		}
		return &Operation{Kind: KindRPC, Data: s}, nil
	}

	m, ok := item.(map[string]any)
	if !ok {
		return &Operation{Kind: KindRPC, Data: item}, nil
	}

	_, hasAppID := m["appID"]
	_, hasOperation := m["operation"]
	_, hasOpConfig := m["operationConfig"]
	if hasAppID && (hasOperation || hasOpConfig) {
		return parseDSOperation(m), nil
	}
	return parseRPCOperation(m), nil
}

func parseDSOperation(m map[string]any) *Operation {
	op := &Operation{Kind: KindDS}
	if v, ok := m["appID"].(string); ok {
		op.AppID = v
	}

	if raw, ok := m["operation"].(string); ok {
		op.DataSourceName, op.OperationType = splitOperationString(raw)
	}
	if cfg, ok := m["operationConfig"].(map[string]any); ok {
		if v, ok := cfg["dataSource"].(string); ok {
			op.DataSourceName = v
		}
		if v, ok := cfg["operationType"].(string); ok {
			op.OperationType = v
		}
		if v, ok := cfg["textMatchStyle"].(string); ok {
			op.TextMatchStyle = v
		}
	}

	op.Data = m["data"]
	op.Criteria = asMap(m["criteria"])
	op.Values = asMap(m["values"])
	op.OldValues = asMap(m["oldValues"])
	op.SortBy = asStringList(m["sortBy"])
	op.StartRow = asIntPtr(m["startRow"])
	op.EndRow = asIntPtr(m["endRow"])
	if v, ok := m["componentId"].(string); ok {
		op.ComponentID = v
	}
	return op
}

func parseRPCOperation(m map[string]any) *Operation {
	op := &Operation{Kind: KindRPC, Data: m["data"]}
	if v, ok := m["className"].(string); ok {
		op.ClassName = v
	}
	if v, ok := m["methodName"].(string); ok {
		op.MethodName = v
	}
	return op
}

// knownOperationTypes enumerates Glossary "Operation type".
var knownOperationTypes = []string{"fetch", "add", "update", "remove", "custom"}

// splitOperationString splits an "<dsName>_<opType>" string on the
// trailing "_<opType>" for a known operation type, since dsName itself
// may legally contain underscores.
func splitOperationString(raw string) (dsName, opType string) {
	for _, t := range knownOperationTypes {
		suffix := "_" + t
		if len(raw) > len(suffix) && raw[len(raw)-len(suffix):] == suffix {
			return raw[:len(raw)-len(suffix)], t
		}
	}
	return raw, ""
}
