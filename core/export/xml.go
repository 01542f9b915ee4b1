package export

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// XML renders the entities as an element tree. Extensions and
// pass-through records are left out; use the json or gedcom exporters for
// lossless output.
type XML struct {
	Pretty bool
}

// Export implements Exporter.
func (e *XML) Export(b *bundle.Bundle) ([]byte, error) {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	decl := &xmlquery.Node{Type: xmlquery.DeclarationNode, Data: "xml"}
	xmlquery.AddAttr(decl, "version", "1.0")
	xmlquery.AddAttr(decl, "encoding", "UTF-8")
	xmlquery.AddChild(doc, decl)

	root := element(doc, "lineage", "schema_version", b.Meta.SchemaVersion, "source_hash", b.Meta.SourceHash)

	people := element(root, "individuals")
	for i := range b.Entities.Individuals {
		xmlIndividual(people, &b.Entities.Individuals[i])
	}
	unions := element(root, "unions")
	for i := range b.Entities.Unions {
		xmlUnion(unions, &b.Entities.Unions[i])
	}
	media := element(root, "media")
	for _, m := range b.Entities.Media {
		element(media, "item", "id", m.ID, "reference", m.Reference, "format", m.Format, "mime", m.MIME, "title", m.Title)
	}
	sources := element(root, "sources")
	for _, s := range b.Entities.Sources {
		src := element(sources, "source", "id", s.ID)
		textElement(src, "title", s.Title)
		textElement(src, "author", s.Author)
		textElement(src, "publication", s.Publication)
		for _, c := range s.Citations {
			element(src, "cited-by", "owner", c.Owner, "fact", c.Fact, "page", c.Page)
		}
	}
	notes := element(root, "notes")
	for _, n := range b.Entities.Notes {
		note := element(notes, "note", "id", n.ID)
		text(note, n.Text)
	}

	var opts []xmlquery.OutputOption
	if e.Pretty {
		opts = append(opts, xmlquery.WithIndentation("  "))
	}
	return []byte(doc.OutputXMLWithOptions(opts...)), nil
}

func xmlIndividual(parent *xmlquery.Node, ind *bundle.Individual) {
	el := element(parent, "individual", "id", ind.ID, "sex", ind.Sex)
	for _, n := range ind.Names {
		name := element(el, "name", "full", n.Full, "given", n.Given, "surname", n.Surname, "suffix", n.Suffix, "type", n.Type)
		text(name, n.Raw)
	}
	for _, f := range ind.Facts {
		xmlFact(el, &f)
	}
	for _, l := range ind.UnionLinks {
		element(el, "union-link", "union", l.UnionID, "role", l.Role, "pedigree", l.Pedigree)
	}
	xmlRefs(el, &ind.Refs)
}

func xmlUnion(parent *xmlquery.Node, u *bundle.Union) {
	el := element(parent, "union", "id", u.ID)
	for _, m := range u.Members {
		element(el, "member", "individual", m.IndividualID, "role", m.Role, "qualifier", m.Qualifier)
	}
	for _, f := range u.Facts {
		xmlFact(el, &f)
	}
	xmlRefs(el, &u.Refs)
}

func xmlFact(parent *xmlquery.Node, f *bundle.Fact) {
	el := element(parent, "fact", "type", f.Type, "descriptor", f.Descriptor)
	textElement(el, "value", f.Value)
	if d := f.Date; d != nil {
		date := element(el, "date", "kind", d.Kind, "iso", d.ISO, "end", d.End, "precision", d.Precision, "phrase", d.Phrase)
		text(date, d.Raw)
	}
	if p := f.Place; p != nil {
		place := element(el, "place", "normalized", p.Normalized)
		text(place, p.Raw)
	}
	xmlRefs(el, &f.Refs)
}

func xmlRefs(parent *xmlquery.Node, r *bundle.Refs) {
	for _, n := range r.Notes {
		textElement(parent, "note", n)
	}
	for _, id := range r.NoteRefs {
		element(parent, "note-ref", "id", id)
	}
	for _, c := range r.Citations {
		element(parent, "citation", "source", c.SourceID, "page", c.Page)
	}
	for _, id := range r.MediaRefs {
		element(parent, "media-ref", "id", id)
	}
}

// element appends a child element with the given attribute pairs. Empty
// attribute values are omitted.
func element(parent *xmlquery.Node, name string, attrs ...string) *xmlquery.Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] != "" {
			xmlquery.AddAttr(n, attrs[i], xmlChars(attrs[i+1]))
		}
	}
	xmlquery.AddChild(parent, n)
	return n
}

func textElement(parent *xmlquery.Node, name, value string) {
	if value == "" {
		return
	}
	text(element(parent, name), value)
}

func text(parent *xmlquery.Node, value string) {
	if value == "" {
		return
	}
	xmlquery.AddChild(parent, &xmlquery.Node{Type: xmlquery.TextNode, Data: xmlChars(value)})
}

// xmlChars replaces every rune XML 1.0 does not allow, including invalid
// UTF-8, with U+FFFD.
func xmlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r',
			r >= 0x20 && r <= 0xD7FF,
			r >= 0xE000 && r <= 0xFFFD,
			r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return '\uFFFD'
	}, s)
}
