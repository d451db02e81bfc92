package envelope

import "testing"

func TestParseIDA_ResubmitWhenTransactionEmpty(t *testing.T) {
	in := Input{Params: map[string]string{"isc_rpc": "1"}}
	_, resubmit, err := ParseIDA(in)
	if err != nil {
		t.Fatalf("ParseIDA: %v", err)
	}
	if !resubmit {
		t.Fatalf("expected resubmit signal for empty _transaction")
	}
}

func TestParseIDA_ParsesDSAndRPCAndSentinels(t *testing.T) {
	body := `{
		"transactionNum": 7,
		"operations": [
			{"appID":"builtin","operation":"country_fetch","criteria":{"continent":"Europe"},"startRow":0,"endRow":2},
			"__ISC_NULL__",
			"__ISC_EMPTY_STRING__",
			{"className":"Widgets","methodName":"ping","data":{"x":1}}
		]
	}`
	in := Input{Params: map[string]string{"isc_rpc": "1", "_transaction": body, "isc_tnum": "5"}}
	txn, resubmit, err := ParseIDA(in)
	if err != nil {
		t.Fatalf("ParseIDA: %v", err)
	}
	if resubmit {
		t.Fatalf("did not expect resubmit")
	}
	if len(txn.Operations) != 4 {
		t.Fatalf("expected 4 operations, got %d", len(txn.Operations))
	}

	ds := txn.Operations[0]
	if ds.Kind != KindDS || ds.DataSourceName != "country" || ds.OperationType != "fetch" {
		t.Fatalf("unexpected DS operation: %+v", ds)
	}
	if ds.Criteria["continent"] != "Europe" {
		t.Fatalf("expected criteria.continent=Europe, got %v", ds.Criteria)
	}
	if ds.StartRow == nil || *ds.StartRow != 0 || ds.EndRow == nil || *ds.EndRow != 2 {
		t.Fatalf("unexpected start/end row: %+v", ds)
	}

	if txn.Operations[1].Kind != KindRPC || txn.Operations[1].Data != nil {
		t.Fatalf("expected RPC-with-null, got %+v", txn.Operations[1])
	}
	if txn.Operations[2].Data != "" {
		t.Fatalf("expected RPC-with-empty-string, got %+v", txn.Operations[2])
	}

	rpc := txn.Operations[3]
	if rpc.Kind != KindRPC || rpc.ClassName != "Widgets" || rpc.MethodName != "ping" {
		t.Fatalf("unexpected RPC operation: %+v", rpc)
	}
}

func TestParseREST_PathOverlayAndParamMerge(t *testing.T) {
	in := Input{
		Method:  "PUT",
		Path:    "/api/ds/country/42",
		RawBody: []byte(`{"name":"Belgique"}`),
		Params:  map[string]string{"_operationType": "update", "locale": "en"},
	}
	txn, err := ParseREST(in)
	if err != nil {
		t.Fatalf("ParseREST: %v", err)
	}
	if len(txn.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(txn.Operations))
	}
	op := txn.Operations[0]
	if op.DataSourceName != "country" {
		t.Fatalf("expected dataSource country, got %q", op.DataSourceName)
	}
	if op.RawPK != "42" {
		t.Fatalf("expected rawPK 42, got %q", op.RawPK)
	}
	if op.OperationType != "update" {
		t.Fatalf("expected meta-overlay operationType=update, got %q", op.OperationType)
	}
	data, _ := op.Data.(map[string]any)
	if data["locale"] != "en" {
		t.Fatalf("expected locale merged into data, got %v", data)
	}
}

func TestParseREST_DefaultsOperationTypeFromMethod(t *testing.T) {
	in := Input{Method: "GET", Path: "/ds/country", Params: map[string]string{}}
	txn, err := ParseREST(in)
	if err != nil {
		t.Fatalf("ParseREST: %v", err)
	}
	if txn.Operations[0].OperationType != "fetch" {
		t.Fatalf("expected default fetch, got %q", txn.Operations[0].OperationType)
	}
}

func TestParseDSPath_AmbiguousSingleSegment(t *testing.T) {
	dsName, opType, rawPK, ok := parseDSPath("/ds/country/fetch")
	if !ok || dsName != "country" || opType != "fetch" || rawPK != "" {
		t.Fatalf("expected opType classification, got %q %q %q %v", dsName, opType, rawPK, ok)
	}

	dsName, opType, rawPK, ok = parseDSPath("/ds/country/42")
	if !ok || dsName != "country" || opType != "" || rawPK != "42" {
		t.Fatalf("expected pk classification, got %q %q %q %v", dsName, opType, rawPK, ok)
	}
}

func TestDecodeBody_FallsBackToXML(t *testing.T) {
	xmlBody := `<transaction><transactionNum>3</transactionNum></transaction>`
	m, err := DecodeBody([]byte(xmlBody))
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if m["transactionNum"] != "3" {
		t.Fatalf("expected transactionNum 3, got %v", m["transactionNum"])
	}
}
