package transform

import (
	"strings"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/normalize"
	"github.com/FocuswithJustin/Lineage/core/parser"
)

func (b *builder) individual(id string, n *parser.Node) bundle.Individual {
	ind := bundle.Individual{ID: id}
	for _, c := range n.Children {
		switch {
		case c.Tag == "NAME":
			ind.Names = append(ind.Names, b.name(c))
		case c.Tag == "SEX" && ind.Sex == "" && leaf(c):
			ind.Sex = c.Value
		case c.Tag == "FAMS" || c.Tag == "FAMC":
			if link, ok := b.unionLink(id, c); ok {
				ind.UnionLinks = append(ind.UnionLinks, link)
			} else {
				extend(&ind.Extensions, c)
			}
		case individualFacts[c.Tag]:
			ind.Facts = append(ind.Facts, b.fact(id, c))
		case b.attach(&ind.Refs, id, c):
		default:
			extend(&ind.Extensions, c)
		}
	}
	return ind
}

func (b *builder) name(n *parser.Node) bundle.Name {
	name := normalize.Name(n.Value)
	for _, c := range n.Children {
		if c.Tag == "TYPE" && name.Type == "" && leaf(c) {
			name.Type = c.Value
			continue
		}
		extend(&name.Extensions, c)
	}
	return name
}

func (b *builder) unionLink(owner string, n *parser.Node) (bundle.UnionLink, bool) {
	id, ok := b.pointer(n, parser.CategoryUnion, owner)
	if !ok {
		return bundle.UnionLink{}, false
	}
	link := bundle.UnionLink{UnionID: id, Role: bundle.RolePartner}
	if n.Tag == "FAMC" {
		link.Role = bundle.RoleChild
	}
	for _, c := range n.Children {
		if n.Tag == "FAMC" && c.Tag == "PEDI" && link.Pedigree == "" && leaf(c) {
			link.Pedigree = c.Value
			continue
		}
		extend(&link.Extensions, c)
	}
	return link, true
}

func (b *builder) union(id string, n *parser.Node) bundle.Union {
	u := bundle.Union{ID: id}
	for _, c := range n.Children {
		switch {
		case c.Tag == "HUSB" || c.Tag == "WIFE" || c.Tag == "CHIL":
			if m, ok := b.member(id, c); ok {
				u.Members = append(u.Members, m)
			} else {
				extend(&u.Extensions, c)
			}
		case unionFacts[c.Tag]:
			u.Facts = append(u.Facts, b.fact(id, c))
		case b.attach(&u.Refs, id, c):
		default:
			extend(&u.Extensions, c)
		}
	}
	return u
}

func (b *builder) member(owner string, n *parser.Node) (bundle.MemberLink, bool) {
	id, ok := b.pointer(n, parser.CategoryIndividual, owner)
	if !ok {
		return bundle.MemberLink{}, false
	}
	m := bundle.MemberLink{IndividualID: id, Role: bundle.RolePartner}
	switch n.Tag {
	case "HUSB":
		m.Qualifier = bundle.QualifierHusband
	case "WIFE":
		m.Qualifier = bundle.QualifierWife
	case "CHIL":
		m.Role = bundle.RoleChild
	}
	for _, c := range n.Children {
		extend(&m.Extensions, c)
	}
	return m, true
}

func (b *builder) media(id string, n *parser.Node) bundle.Media {
	m := bundle.Media{ID: id}
	for _, c := range n.Children {
		switch {
		case c.Tag == "FILE" && m.Reference == "" && b.file(&m, c):
		case c.Tag == "FORM" && m.Format == "" && leaf(c):
			m.Format = c.Value
		case c.Tag == "TITL" && m.Title == "" && leaf(c):
			m.Title = c.Value
		default:
			extend(&m.Extensions, c)
		}
	}
	m.MIME = mimeType(m.Format, m.Reference)
	return m
}

// file reads a FILE structure. Only FORM and TITL leaves are understood
// below it; anything else keeps the whole FILE as an extension.
func (b *builder) file(m *bundle.Media, n *parser.Node) bool {
	for _, c := range n.Children {
		if (c.Tag != "FORM" && c.Tag != "TITL") || !leaf(c) {
			return false
		}
	}
	forms, titles := 0, 0
	for _, c := range n.Children {
		switch c.Tag {
		case "FORM":
			forms++
		case "TITL":
			titles++
		}
	}
	if forms > 1 || titles > 1 {
		return false
	}

	m.Reference = n.Value
	for _, c := range n.Children {
		switch c.Tag {
		case "FORM":
			m.Format = c.Value
		case "TITL":
			m.Title = c.Value
		}
	}
	return true
}

func (b *builder) source(id string, n *parser.Node) bundle.Source {
	s := bundle.Source{ID: id}
	for _, c := range n.Children {
		switch {
		case c.Tag == "TITL" && s.Title == "" && leaf(c):
			s.Title = c.Value
		case c.Tag == "AUTH" && s.Author == "" && leaf(c):
			s.Author = c.Value
		case c.Tag == "PUBL" && s.Publication == "" && leaf(c):
			s.Publication = c.Value
		default:
			extend(&s.Extensions, c)
		}
	}
	return s
}

func (b *builder) note(id string, n *parser.Node) bundle.Note {
	note := bundle.Note{ID: id, Text: n.Value}
	for _, c := range n.Children {
		if !b.attach(&note.Refs, id, c) {
			extend(&note.Extensions, c)
		}
	}
	return note
}

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"htm":  "text/html",
	"html": "text/html",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"mp4":  "video/mp4",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
}

// mimeType derives a MIME type from the declared format, falling back to the
// file extension of the reference.
func mimeType(format, reference string) string {
	if mt, ok := mimeTypes[strings.ToLower(strings.TrimSpace(format))]; ok {
		return mt
	}
	if i := strings.LastIndexByte(reference, '.'); i >= 0 && !strings.ContainsAny(reference[i:], `/\`) {
		return mimeTypes[strings.ToLower(reference[i+1:])]
	}
	return ""
}
