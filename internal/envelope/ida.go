package envelope

// Input is the transport-neutral request data the IDA and REST front-
// ends parse. Params merges query-string and body-form
// parameters (the IDA/REST protocol does not distinguish the two for
// most keys); RawBody is the request body, used directly by the REST
// front-end when no _transaction param is present.
type Input struct {
	Method         string
	Path           string
	Params         map[string]string
	RawBody        []byte
	MetaDataPrefix string // isc_metaDataPrefix, default "_"
}

// IsRPCRequest reports IDA guard: "Requires isc_rpc=1 or
// is_isc_rpc=true."
func (in Input) IsRPCRequest() bool {
	if in.Params["isc_rpc"] == "1" {
		return true
	}
	if in.Params["is_isc_rpc"] == "true" {
		return true
	}
	return false
}

// ParseIDA parses the IDA front-end envelope. resubmit is true when
// _transaction was absent or empty, signalling the caller to emit the
// browser-retry trampoline.
func ParseIDA(in Input) (txn *Transaction, resubmit bool, err error) {
	raw := in.Params["_transaction"]
	if raw == "" {
		return nil, true, nil
	}

	m, err := DecodeBody([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	t, err := ParseTransaction(m)
	if err != nil {
		return nil, false, err
	}
	if t.TransactionNum == "" {
		t.TransactionNum = in.Params["isc_tnum"]
	}
	return t, false, nil
}
