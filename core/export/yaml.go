package export

import (
	"github.com/goccy/go-yaml"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// YAML renders the bundle in the same shape as JSON.
type YAML struct {
	StripIndexes bool
}

// Export implements Exporter. The bundle goes through its JSON form so
// that key names and omitted fields match the JSON exporter exactly.
func (e *YAML) Export(b *bundle.Bundle) ([]byte, error) {
	if e.StripIndexes {
		b = b.WithoutIndexes()
	}
	data, err := encodeJSON(b, false)
	if err != nil {
		return nil, err
	}
	return yaml.JSONToYAML(data)
}
