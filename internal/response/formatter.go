package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/opbridge/internal/operation"
)

// Format names the wire encoding of a transaction's results.
type Format string

const (
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatCustom Format = "custom"
)

// Transport names the three external interfaces, each of which frames
// the serialised body differently.
type Transport int

const (
	TransportREST Transport = iota
	TransportIDA
	TransportHiddenFrame
)

// Options carries everything the formatter needs beyond the results
// themselves: the wire format, the transport framing, the jscallback
// selector for the hidden-iframe trampoline, and an optional
// security prefix/suffix. The app fills the prefix/suffix from
// rest.jsonPrefix/rest.jsonSuffix only; a descriptor's
// jsonPrefix/jsonSuffix are not consulted.
type Options struct {
	Format         Format
	Transport      Transport
	TransactionNum string
	JSCallback     string
	SecurityPrefix string
	SecuritySuffix string
}

const (
	idaStartMarker = "//isc_RPCResponseStart-->"
	idaEndMarker   = "//isc_RPCResponseEnd"
)

// Render serialises a transaction's results: JSON or XML encoding,
// REST single/multiple wrapping, IDA marker framing, a hidden-iframe
// HTML trampoline, and a JSON-hijacking security prefix/suffix that
// forces the response Content-Type to text/plain.
func Render(results []*operation.Result, opts Options) (body []byte, contentType string, headers map[string]string, err error) {
	encoded, contentType, err := encode(results, opts)
	if err != nil {
		return nil, "", nil, err
	}

	if opts.SecurityPrefix != "" || opts.SecuritySuffix != "" {
		var buf bytes.Buffer
		buf.WriteString(opts.SecurityPrefix)
		buf.Write(encoded)
		buf.WriteString(opts.SecuritySuffix)
		encoded = buf.Bytes()
		contentType = "text/plain"
	}

	switch opts.Transport {
	case TransportIDA:
		encoded = frameIDA(encoded)
	case TransportHiddenFrame:
		encoded = frameHiddenFrame(encoded, opts)
		contentType = "text/html"
	}

	headers = map[string]string{
		"Cache-Control": "no-cache",
		"Pragma":        "no-cache",
		"Expires":       "Thu, 01 Jan 1970 00:00:00 GMT",
	}
	return encoded, contentType, headers, nil
}

func encode(results []*operation.Result, opts Options) ([]byte, string, error) {
	switch opts.Format {
	case FormatXML:
		return encodeXML(results), "text/xml", nil
	case FormatJSON, FormatCustom, "":
		return encodeJSON(results), "application/json", nil
	default:
		return nil, "", fmt.Errorf("response: unknown format %q", opts.Format)
	}
}

// encodeJSON wraps the wire-shaped results REST rule:
// a single result is wrapped in {"response": ...}, multiple in
// {"responses": [...]}.
func encodeJSON(results []*operation.Result) []byte {
	var payload any
	if len(results) == 1 {
		payload = map[string]any{"response": toWire(results[0])}
	} else {
		payload = map[string]any{"responses": toWireList(results)}
	}
	encoded, _ := json.Marshal(payload)
	return encoded
}

// encodeXML mirrors encodeJSON's single-vs-multiple wrapping with
// <response> elements, multiple enclosed in <responses>.
func encodeXML(results []*operation.Result) []byte {
	var buf bytes.Buffer
	if len(results) == 1 {
		buf.WriteString(encodeXMLElement("response", toWire(results[0])))
		return buf.Bytes()
	}
	buf.WriteString("<responses>")
	for _, r := range results {
		buf.WriteString(encodeXMLElement("response", toWire(r)))
	}
	buf.WriteString("</responses>")
	return buf.Bytes()
}

func frameIDA(body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(idaStartMarker)
	buf.Write(body)
	buf.WriteString(idaEndMarker)
	return buf.Bytes()
}

// frameHiddenFrame embeds the IDA-framed body in a fixed HTML trampoline
// that sets document.domain and invokes the callback form selected by
// jscallback: "iframeNewWindow" targets window.opener, plain
// "iframe" recurses up through parent frames until it finds the ISC
// runtime, and anything else is treated as a literal JS expression to
// evaluate with the response text available as the variable `result`.
func frameHiddenFrame(body []byte, opts Options) []byte {
	framed := frameIDA(body)
	escaped := jsStringLiteral(string(framed))

	var callback string
	switch opts.JSCallback {
	case "", "iframe":
		callback = `(function(w){
  while (w && !w.isc) { w = (w.parent === w) ? null : w.parent; }
  if (w && w.isc) { w.isc.Comm.hiddenFrameReply(transactionNum, result); }
})(window.parent);`
	case "iframeNewWindow":
		callback = `if (window.opener && window.opener.isc) {
  window.opener.isc.Comm.hiddenFrameReply(transactionNum, result);
}`
	default:
		callback = opts.JSCallback
	}

	html := strings.Join([]string{
		"<html><head><script>",
		"try { document.domain = document.domain; } catch (e) {}",
		fmt.Sprintf("var transactionNum = %s;", jsStringLiteral(opts.TransactionNum)),
		fmt.Sprintf("var result = %s;", escaped),
		callback,
		"</script></head><body></body></html>",
	}, "\n")
	return []byte(html)
}

func jsStringLiteral(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
