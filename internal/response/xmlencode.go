package response

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
)

// encodeXMLElement renders value as an XML element named name, mirroring
// the inverse of envelope's decodeXMLElement: maps become nested
// elements (keys sorted for deterministic output), slices repeat the
// element name once per item, and scalars become escaped text content.
func encodeXMLElement(name string, value any) string {
	var buf bytes.Buffer
	writeXMLElement(&buf, name, value)
	return buf.String()
}

func writeXMLMap(buf *bytes.Buffer, name string, v map[string]any) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(buf, "<%s>", name)
	for _, k := range keys {
		writeXMLElement(buf, k, v[k])
	}
	fmt.Fprintf(buf, "</%s>", name)
}

func writeXMLElement(buf *bytes.Buffer, name string, value any) {
	switch v := value.(type) {
	case nil:
		fmt.Fprintf(buf, "<%s/>", name)
	case map[string]any:
		writeXMLMap(buf, name, v)
	case datasource.Record:
		writeXMLMap(buf, name, map[string]any(v))
	case []any:
		for _, item := range v {
			writeXMLElement(buf, name, item)
		}
	case []map[string]any:
		for _, item := range v {
			writeXMLElement(buf, name, item)
		}
	case []datasource.Record:
		for _, item := range v {
			writeXMLMap(buf, name, map[string]any(item))
		}
	default:
		fmt.Fprintf(buf, "<%s>", name)
		xml.EscapeText(buf, []byte(fmt.Sprintf("%v", v)))
		fmt.Fprintf(buf, "</%s>", name)
	}
}
