// Package transform assembles a canonical bundle from a parsed forest.
//
// Records of the entity categories (individuals, unions, media, sources and
// notes) become typed entities. The header feeds the bundle meta, the
// trailer is dropped and every other record passes through untouched.
// Inside an entity, recognized children populate the model and anything
// else is kept as an extension on the nearest owner, so re-emitting a
// bundle loses nothing.
package transform

import (
	"time"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/lexer"
	"github.com/FocuswithJustin/Lineage/core/normalize"
	"github.com/FocuswithJustin/Lineage/core/parser"
)

// Options configures Build.
type Options struct {
	// Dangling is the severity of dangling-pointer issues. The zero value
	// (info) is replaced by warning; use WithDefaults to see the result.
	Dangling issue.Severity
	// PlaceSeparator splits place jurisdictions; empty means ",".
	PlaceSeparator string
	// SourceHash and GeneratedAt are copied into the bundle meta.
	SourceHash  string
	GeneratedAt time.Time
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Dangling:       issue.SeverityWarning,
		PlaceSeparator: normalize.DefaultPlaceSeparator,
	}
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Dangling == issue.SeverityInfo {
		o.Dangling = d.Dangling
	}
	if o.PlaceSeparator == "" {
		o.PlaceSeparator = d.PlaceSeparator
	}
	return o
}

type builder struct {
	opts   Options
	index  *parser.XRefIndex
	issues issue.List
}

// Build converts a forest into a bundle. It never fails: every problem it
// finds is returned as an issue and the bundle is built best-effort.
func Build(f *parser.Forest, opts Options) (*bundle.Bundle, issue.List) {
	b := &builder{opts: opts.WithDefaults(), index: f.Index}

	out := &bundle.Bundle{
		Meta: bundle.Meta{
			SchemaVersion: bundle.SchemaVersion,
			SourceFormat:  bundle.SourceFormat,
			SourceHash:    b.opts.SourceHash,
			GeneratedAt:   b.opts.GeneratedAt,
		},
	}

	for _, root := range f.Roots {
		switch {
		case root.Level == 0 && root.Tag == "HEAD" && out.Meta.Header == nil:
			b.header(&out.Meta, root)
		case root.Level == 0 && root.Tag == "TRLR" && len(root.Children) == 0:
		default:
			b.record(out, root)
		}
	}

	out.Entities.Sort()
	deriveCitations(out)
	return out, b.issues
}

func (b *builder) header(meta *bundle.Meta, head *parser.Node) {
	raw := toRaw(head)
	meta.Header = &raw
	if gedc := head.Child("GEDC"); gedc != nil {
		meta.SourceVersion = gedc.ChildValue("VERS")
	}
	meta.SourceCharset = head.ChildValue("CHAR")
}

// record dispatches a top-level node to its entity builder, or keeps it as a
// pass-through record.
func (b *builder) record(out *bundle.Bundle, root *parser.Node) {
	cat := parser.CategoryOf(root.Tag)
	if root.Level != 0 || !entityCategory(cat) {
		out.Records = append(out.Records, toRaw(root))
		return
	}

	if root.XRef == "" {
		b.issues.Add(issue.KindMissingXRef, issue.SeverityWarning, "", root.Line,
			"%s record has no cross-reference; kept as a pass-through record", root.Tag)
		out.Records = append(out.Records, toRaw(root))
		return
	}
	id, ok := lexer.PointerID(root.XRef)
	if !ok {
		out.Records = append(out.Records, toRaw(root))
		return
	}
	if defined, _, found := b.index.Lookup(id); !found || defined != root {
		// Later duplicates of an id were reported by the parser.
		out.Records = append(out.Records, toRaw(root))
		return
	}

	e := &out.Entities
	switch cat {
	case parser.CategoryIndividual:
		e.Individuals = append(e.Individuals, b.individual(id, root))
	case parser.CategoryUnion:
		e.Unions = append(e.Unions, b.union(id, root))
	case parser.CategoryMedia:
		e.Media = append(e.Media, b.media(id, root))
	case parser.CategorySource:
		e.Sources = append(e.Sources, b.source(id, root))
	case parser.CategoryNote:
		e.Notes = append(e.Notes, b.note(id, root))
	}
}

func entityCategory(c parser.Category) bool {
	switch c {
	case parser.CategoryIndividual, parser.CategoryUnion, parser.CategoryMedia,
		parser.CategorySource, parser.CategoryNote:
		return true
	}
	return false
}

// pointer resolves a pointer-valued child. It returns ok=false when the node
// must be kept as an extension instead: the value is not a pointer, or it
// names a record of another category. A dangling pointer keeps its id.
func (b *builder) pointer(n *parser.Node, want parser.Category, owner string) (string, bool) {
	id, ok := n.Pointer()
	if !ok {
		b.issues.Add(issue.KindInvalidPointer, issue.SeverityWarning, owner, n.Line,
			"%s value %q is not a pointer; kept as extension", n.Tag, n.Value)
		return "", false
	}
	_, cat, found := b.index.Lookup(id)
	if !found {
		b.issues.Add(issue.KindDanglingPointer, b.opts.Dangling, owner, n.Line,
			"%s %s does not resolve to any record", n.Tag, n.Value)
		return id, true
	}
	if cat != want {
		b.issues.Add(issue.KindPointerMismatch, issue.SeverityWarning, owner, n.Line,
			"%s %s names a %s record, want %s; kept as extension", n.Tag, n.Value, cat, want)
		return "", false
	}
	return id, true
}

// deriveCitations fills Source.Citations from every citation in the bundle.
func deriveCitations(out *bundle.Bundle) {
	add := func(owner, fact string, cites []bundle.Citation) {
		for _, c := range cites {
			if src, ok := out.Source(c.SourceID); ok {
				src.Citations = append(src.Citations, bundle.CitationLink{Owner: owner, Fact: fact, Page: c.Page})
			}
		}
	}
	for _, ind := range out.Entities.Individuals {
		add(ind.ID, "", ind.Citations)
		for _, f := range ind.Facts {
			add(ind.ID, f.Type, f.Citations)
		}
	}
	for _, u := range out.Entities.Unions {
		add(u.ID, "", u.Citations)
		for _, f := range u.Facts {
			add(u.ID, f.Type, f.Citations)
		}
	}
	for _, n := range out.Entities.Notes {
		add(n.ID, "", n.Citations)
	}
}
