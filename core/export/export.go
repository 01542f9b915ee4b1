// Package export renders bundles into output formats.
//
// Exporters are looked up by name in a Registry. Each one is a pure
// function of the bundle: it never modifies its input and, for any bundle
// the transform can produce, never fails.
package export

import (
	"slices"
	"strings"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// Exporter renders a bundle.
type Exporter interface {
	Export(b *bundle.Bundle) ([]byte, error)
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc func(b *bundle.Bundle) ([]byte, error)

// Export calls f(b).
func (f ExporterFunc) Export(b *bundle.Bundle) ([]byte, error) {
	return f(b)
}

// Options tunes the exporters that support it.
type Options struct {
	// Pretty indents structured output.
	Pretty bool
	// StripIndexes drops derived indexes from bundle-shaped output.
	StripIndexes bool
}

// Factory builds an exporter for the given options.
type Factory func(opts Options) Exporter

// Registry maps exporter names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in exporters.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("json", func(o Options) Exporter { return &JSON{Pretty: o.Pretty, StripIndexes: o.StripIndexes} })
	r.Register("yaml", func(o Options) Exporter { return &YAML{StripIndexes: o.StripIndexes} })
	r.Register("xml", func(o Options) Exporter { return &XML{Pretty: o.Pretty} })
	r.Register("people", func(o Options) Exporter { return payload(o, People) })
	r.Register("graph", func(o Options) Exporter { return payload(o, Graph) })
	r.Register("timeline", func(o Options) Exporter { return payload(o, Timeline) })
	r.Register("gedcom", func(Options) Exporter { return ExporterFunc(GEDCOM) })
	return r
}

// Register adds or replaces a named exporter.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Lookup returns the exporter registered under name, configured with opts.
// Unknown names fail with an *errors.UnsupportedError.
func (r *Registry) Lookup(name string, opts Options) (Exporter, error) {
	f, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, apperrors.NewUnsupported("export format", name)
	}
	return f(opts), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns a built-in exporter by name.
func Lookup(name string, opts Options) (Exporter, error) {
	return NewRegistry().Lookup(name, opts)
}

// Names returns the names of the built-in exporters.
func Names() []string {
	return NewRegistry().Names()
}
