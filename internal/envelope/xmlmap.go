package envelope

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// decodeXMLToMap parses an XML document into the same map[string]any /
// []any / string shape encoding/json would produce, so the rest of the
// parser can treat a JSON or XML transaction envelope identically
//. There is no generic XML-to-map library in the example corpus
// to ground this on, so it is hand-rolled on top of encoding/xml's
// streaming decoder — see DESIGN.md.
func decodeXMLToMap(data []byte) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("envelope: xml: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := decodeXMLElement(dec, start)
			if err != nil {
				return nil, err
			}
			if m, ok := value.(map[string]any); ok {
				return m, nil
			}
			return map[string]any{}, nil
		}
	}
}

func decodeXMLElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := map[string]any{}
	var text strings.Builder
	hasChildren := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("envelope: xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			hasChildren = true
			value, err := decodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			if existing, ok := children[name]; ok {
				if list, ok := existing.([]any); ok {
					children[name] = append(list, value)
				} else {
					children[name] = []any{existing, value}
				}
			} else {
				children[name] = value
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				if hasChildren {
					return children, nil
				}
				return strings.TrimSpace(text.String()), nil
			}
		}
	}
}
