package export

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// MaxValueBytes is the longest value segment written on one line before
// the remainder moves to CONC lines.
const MaxValueBytes = 248

// GEDCOM re-emits the bundle in the source format. Parsing the output with
// default options yields a bundle with the same content hash: typed fields
// are written before extensions so the first-wins rules of the transform
// pick them up again, and pass-through records follow the entities.
func GEDCOM(b *bundle.Bundle) ([]byte, error) {
	w := &gedcomWriter{}
	w.header(&b.Meta)
	for i := range b.Entities.Individuals {
		w.individual(&b.Entities.Individuals[i])
	}
	for i := range b.Entities.Unions {
		w.union(&b.Entities.Unions[i])
	}
	for i := range b.Entities.Media {
		w.media(&b.Entities.Media[i])
	}
	for i := range b.Entities.Sources {
		w.source(&b.Entities.Sources[i])
	}
	for i := range b.Entities.Notes {
		w.note(&b.Entities.Notes[i])
	}
	for i := range b.Records {
		w.raw(0, &b.Records[i])
	}
	w.line(0, "", "TRLR", "")
	return []byte(w.buf.String()), nil
}

type gedcomWriter struct {
	buf strings.Builder
}

func (w *gedcomWriter) header(m *bundle.Meta) {
	if m.Header != nil {
		w.raw(0, m.Header)
		return
	}
	version := m.SourceVersion
	if version == "" {
		version = "5.5.1"
	}
	charset := m.SourceCharset
	if charset == "" {
		charset = "UTF-8"
	}
	w.line(0, "", "HEAD", "")
	w.line(1, "", "GEDC", "")
	w.line(2, "", "VERS", version)
	w.line(1, "", "CHAR", charset)
}

func (w *gedcomWriter) individual(ind *bundle.Individual) {
	w.line(0, xref(ind.ID), "INDI", "")
	for _, n := range ind.Names {
		w.line(1, "", "NAME", n.Raw)
		if n.Type != "" {
			w.line(2, "", "TYPE", n.Type)
		}
		w.raws(2, n.Extensions)
	}
	if ind.Sex != "" {
		w.line(1, "", "SEX", ind.Sex)
	}
	for _, l := range ind.UnionLinks {
		tag := "FAMS"
		if l.Role == bundle.RoleChild {
			tag = "FAMC"
		}
		w.line(1, "", tag, xref(l.UnionID))
		if tag == "FAMC" && l.Pedigree != "" {
			w.line(2, "", "PEDI", l.Pedigree)
		}
		w.raws(2, l.Extensions)
	}
	for i := range ind.Facts {
		w.fact(1, &ind.Facts[i])
	}
	w.refs(1, &ind.Refs)
	w.raws(1, ind.Extensions)
}

func (w *gedcomWriter) union(u *bundle.Union) {
	w.line(0, xref(u.ID), "FAM", "")
	for _, m := range u.Members {
		tag := "CHIL"
		if m.Role == bundle.RolePartner {
			tag = "HUSB"
			if m.Qualifier == bundle.QualifierWife {
				tag = "WIFE"
			}
		}
		w.line(1, "", tag, xref(m.IndividualID))
		w.raws(2, m.Extensions)
	}
	for i := range u.Facts {
		w.fact(1, &u.Facts[i])
	}
	w.refs(1, &u.Refs)
	w.raws(1, u.Extensions)
}

func (w *gedcomWriter) media(m *bundle.Media) {
	w.line(0, xref(m.ID), "OBJE", "")
	level := 1
	if m.Reference != "" {
		w.line(1, "", "FILE", m.Reference)
		level = 2
	}
	if m.Format != "" {
		w.line(level, "", "FORM", m.Format)
	}
	if m.Title != "" {
		w.line(level, "", "TITL", m.Title)
	}
	w.raws(1, m.Extensions)
}

func (w *gedcomWriter) source(s *bundle.Source) {
	w.line(0, xref(s.ID), "SOUR", "")
	if s.Title != "" {
		w.line(1, "", "TITL", s.Title)
	}
	if s.Author != "" {
		w.line(1, "", "AUTH", s.Author)
	}
	if s.Publication != "" {
		w.line(1, "", "PUBL", s.Publication)
	}
	w.raws(1, s.Extensions)
}

func (w *gedcomWriter) note(n *bundle.Note) {
	w.line(0, xref(n.ID), "NOTE", n.Text)
	w.refs(1, &n.Refs)
	w.raws(1, n.Extensions)
}

func (w *gedcomWriter) fact(level int, f *bundle.Fact) {
	w.line(level, "", f.Type, f.Value)
	if f.Descriptor != "" {
		w.line(level+1, "", "TYPE", f.Descriptor)
	}
	if d := f.Date; d != nil {
		w.line(level+1, "", "DATE", d.Raw)
		w.raws(level+2, d.Extensions)
	}
	if p := f.Place; p != nil {
		w.line(level+1, "", "PLAC", p.Raw)
		w.raws(level+2, p.Extensions)
	}
	w.refs(level+1, &f.Refs)
	w.raws(level+1, f.Extensions)
}

// refs writes attachments. SourceRefs is derived from Citations and is not
// written on its own.
func (w *gedcomWriter) refs(level int, r *bundle.Refs) {
	for _, text := range r.Notes {
		w.line(level, "", "NOTE", text)
	}
	for _, id := range r.NoteRefs {
		w.line(level, "", "NOTE", xref(id))
	}
	for _, c := range r.Citations {
		w.line(level, "", "SOUR", xref(c.SourceID))
		if c.Page != "" {
			w.line(level+1, "", "PAGE", c.Page)
		}
		w.raws(level+1, c.Extensions)
	}
	for _, id := range r.MediaRefs {
		w.line(level, "", "OBJE", xref(id))
	}
}

func (w *gedcomWriter) raws(level int, nodes []bundle.RawNode) {
	for i := range nodes {
		w.raw(level, &nodes[i])
	}
}

// raw writes an opaque subtree depth-first with an explicit stack, so
// extension depth is bounded only by memory.
func (w *gedcomWriter) raw(level int, root *bundle.RawNode) {
	type frame struct {
		node  *bundle.RawNode
		level int
	}
	stack := []frame{{root, level}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		w.line(top.level, top.node.XRef, top.node.Tag, top.node.Value)
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{&top.node.Children[i], top.level + 1})
		}
	}
}

// line writes one logical line. Embedded newlines become CONT lines and
// segments longer than MaxValueBytes are continued with CONC lines.
func (w *gedcomWriter) line(level int, ref, tag, value string) {
	segments := strings.Split(value, "\n")
	first := chunks(segments[0])

	w.prefix(level, ref, tag)
	if value != "" {
		w.buf.WriteByte(' ')
		w.buf.WriteString(first[0])
	}
	w.buf.WriteByte('\n')
	w.continued(level+1, first[1:])

	for _, seg := range segments[1:] {
		parts := chunks(seg)
		w.prefix(level+1, "", "CONT")
		if parts[0] != "" {
			w.buf.WriteByte(' ')
			w.buf.WriteString(parts[0])
		}
		w.buf.WriteByte('\n')
		w.continued(level+1, parts[1:])
	}
}

func (w *gedcomWriter) continued(level int, parts []string) {
	for _, p := range parts {
		w.prefix(level, "", "CONC")
		w.buf.WriteByte(' ')
		w.buf.WriteString(p)
		w.buf.WriteByte('\n')
	}
}

func (w *gedcomWriter) prefix(level int, ref, tag string) {
	w.buf.WriteString(strconv.Itoa(level))
	w.buf.WriteByte(' ')
	if ref != "" {
		w.buf.WriteString(ref)
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString(tag)
}

// chunks splits s into pieces of at most MaxValueBytes without cutting a
// UTF-8 sequence. It always returns at least one piece.
func chunks(s string) []string {
	if len(s) <= MaxValueBytes {
		return []string{s}
	}
	var out []string
	for len(s) > MaxValueBytes {
		cut := MaxValueBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = MaxValueBytes
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return append(out, s)
}

func xref(id string) string {
	return "@" + id + "@"
}
