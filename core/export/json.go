package export

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/pretty"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// JSON renders the bundle itself.
type JSON struct {
	Pretty       bool
	StripIndexes bool
}

// Export implements Exporter.
func (e *JSON) Export(b *bundle.Bundle) ([]byte, error) {
	if e.StripIndexes {
		b = b.WithoutIndexes()
	}
	return encodeJSON(b, e.Pretty)
}

// encodeJSON marshals v without HTML escaping, so note texts keep their
// angle brackets and ampersands readable.
func encodeJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if indent {
		return pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "}), nil
	}
	return data, nil
}

// payload wraps a consumer payload builder as a JSON exporter.
func payload[T any](o Options, build func(*bundle.Bundle) T) Exporter {
	return ExporterFunc(func(b *bundle.Bundle) ([]byte, error) {
		return encodeJSON(build(b), o.Pretty)
	})
}
