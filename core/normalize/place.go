// Package normalize maps raw source values to canonical dates, places and
// names. Every function is total and keeps the raw value.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// DefaultPlaceSeparator separates place jurisdictions, finest first.
const DefaultPlaceSeparator = ","

// Place splits a place into its jurisdictions. Parts are trimmed, internal
// whitespace is collapsed and empty parts are dropped. Normalized joins the
// NFC form of the parts with ", ". An empty sep means DefaultPlaceSeparator.
func Place(raw, sep string) bundle.Place {
	if sep == "" {
		sep = DefaultPlaceSeparator
	}

	p := bundle.Place{Raw: raw}
	for _, part := range strings.Split(raw, sep) {
		part = collapse(part)
		if part == "" {
			continue
		}
		p.Parts = append(p.Parts, part)
	}
	if len(p.Parts) == 0 {
		return p
	}

	normalized := make([]string, len(p.Parts))
	for i, part := range p.Parts {
		normalized[i] = norm.NFC.String(part)
	}
	p.Normalized = strings.Join(normalized, ", ")
	return p
}

// collapse trims s and reduces internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
