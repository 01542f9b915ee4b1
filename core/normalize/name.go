package normalize

import (
	"strings"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// Name splits a personal name written as "Given /Surname/ Suffix". A name
// without slashes is all given names; an unterminated slash runs the
// surname to the end. Full joins the non-empty parts with single spaces.
func Name(raw string) bundle.Name {
	n := bundle.Name{Raw: raw}

	open := strings.IndexByte(raw, '/')
	if open < 0 {
		n.Given = collapse(raw)
	} else {
		n.Given = collapse(raw[:open])
		rest := raw[open+1:]
		if end := strings.IndexByte(rest, '/'); end >= 0 {
			n.Surname = collapse(rest[:end])
			n.Suffix = collapse(strings.ReplaceAll(rest[end+1:], "/", " "))
		} else {
			n.Surname = collapse(rest)
		}
	}

	var parts []string
	for _, p := range []string{n.Given, n.Surname, n.Suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	n.Full = strings.Join(parts, " ")
	return n
}
