package transform

import (
	"slices"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/normalize"
	"github.com/FocuswithJustin/Lineage/core/parser"
)

// individualFacts are the event and attribute tags of individual records.
var individualFacts = tagSet(
	"BIRT", "CHR", "DEAT", "BURI", "CREM", "ADOP", "BAPM", "BARM", "BASM",
	"BLES", "CHRA", "CONF", "FCOM", "ORDN", "NATU", "EMIG", "IMMI", "CENS",
	"PROB", "WILL", "GRAD", "RETI", "EVEN",
	"CAST", "DSCR", "EDUC", "IDNO", "NATI", "NCHI", "NMR", "OCCU", "PROP",
	"RELI", "RESI", "SSN", "TITL", "FACT",
)

// unionFacts are the event tags of union records.
var unionFacts = tagSet(
	"ANUL", "CENS", "DIV", "DIVF", "ENGA", "MARB", "MARC", "MARR", "MARL",
	"MARS", "RESI", "EVEN", "NCHI", "FACT",
)

func tagSet(tags ...string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

// leaf reports whether n has no children of its own.
func leaf(n *parser.Node) bool {
	return len(n.Children) == 0
}

func (b *builder) fact(owner string, n *parser.Node) bundle.Fact {
	f := bundle.Fact{Type: n.Tag, Value: n.Value}
	for _, c := range n.Children {
		switch {
		case c.Tag == "TYPE" && f.Descriptor == "" && leaf(c):
			f.Descriptor = c.Value
		case c.Tag == "DATE" && f.Date == nil:
			d := normalize.Date(c.Value)
			for _, dc := range c.Children {
				extend(&d.Extensions, dc)
			}
			f.Date = &d
		case c.Tag == "PLAC" && f.Place == nil:
			p := normalize.Place(c.Value, b.opts.PlaceSeparator)
			for _, pc := range c.Children {
				extend(&p.Extensions, pc)
			}
			f.Place = &p
		case b.attach(&f.Refs, owner, c):
		default:
			extend(&f.Extensions, c)
		}
	}
	return f
}

// attach handles the NOTE, SOUR and OBJE children every owner may carry.
// It reports whether n was consumed; unconsumed nodes become extensions.
func (b *builder) attach(refs *bundle.Refs, owner string, n *parser.Node) bool {
	switch n.Tag {
	case "NOTE":
		if _, isPointer := n.Pointer(); !isPointer {
			if !leaf(n) {
				return false
			}
			refs.Notes = append(refs.Notes, n.Value)
			return true
		}
		if !leaf(n) {
			return false
		}
		id, ok := b.pointer(n, parser.CategoryNote, owner)
		if ok {
			refs.NoteRefs = append(refs.NoteRefs, id)
		}
		return ok

	case "SOUR":
		if _, isPointer := n.Pointer(); !isPointer {
			b.issues.Add(issue.KindInlineSource, issue.SeverityInfo, owner, n.Line,
				"inline source citation kept as extension")
			return false
		}
		id, ok := b.pointer(n, parser.CategorySource, owner)
		if !ok {
			return false
		}
		cite := bundle.Citation{SourceID: id}
		for _, c := range n.Children {
			if c.Tag == "PAGE" && cite.Page == "" && leaf(c) {
				cite.Page = c.Value
				continue
			}
			extend(&cite.Extensions, c)
		}
		refs.Citations = append(refs.Citations, cite)
		if !slices.Contains(refs.SourceRefs, id) {
			refs.SourceRefs = append(refs.SourceRefs, id)
		}
		return true

	case "OBJE":
		if n.Value == "" || !leaf(n) {
			// Inline media structures are carried as extensions.
			return false
		}
		id, ok := b.pointer(n, parser.CategoryMedia, owner)
		if ok {
			refs.MediaRefs = append(refs.MediaRefs, id)
		}
		return ok
	}
	return false
}
