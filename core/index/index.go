// Package index derives lookup tables from a bundle: folded name and place
// tokens, slugged place keys and an id directory. Indexes are a cache over
// the entities and never take part in hashing or diffing.
package index

import (
	"slices"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// Build computes the indexes of b. The bundle is not modified.
func Build(b *bundle.Bundle) *bundle.Indexes {
	idx := &bundle.Indexes{
		NameTokens:  make(map[string][]string),
		PlaceTokens: make(map[string][]string),
		PlaceKeys:   make(map[string][]string),
		IDs:         make(map[string]string),
	}

	for _, ind := range b.Entities.Individuals {
		idx.IDs[ind.ID] = bundle.CollectionIndividuals
		for _, n := range ind.Names {
			for _, tok := range Tokens(nameText(n)) {
				idx.NameTokens[tok] = append(idx.NameTokens[tok], ind.ID)
			}
		}
		addPlaces(idx, ind.ID, ind.Facts)
	}
	for _, u := range b.Entities.Unions {
		idx.IDs[u.ID] = bundle.CollectionUnions
		addPlaces(idx, u.ID, u.Facts)
	}
	for _, m := range b.Entities.Media {
		idx.IDs[m.ID] = bundle.CollectionMedia
	}
	for _, s := range b.Entities.Sources {
		idx.IDs[s.ID] = bundle.CollectionSources
	}
	for _, n := range b.Entities.Notes {
		idx.IDs[n.ID] = bundle.CollectionNotes
	}

	for _, m := range []map[string][]string{idx.NameTokens, idx.PlaceTokens, idx.PlaceKeys} {
		for k, ids := range m {
			slices.Sort(ids)
			m[k] = slices.Compact(ids)
		}
	}
	return idx
}

// Attach returns a copy of b with freshly built indexes.
func Attach(b *bundle.Bundle) *bundle.Bundle {
	out := *b
	out.Indexes = Build(b)
	return &out
}

// Strip returns a copy of b without indexes.
func Strip(b *bundle.Bundle) *bundle.Bundle {
	return b.WithoutIndexes()
}

func nameText(n bundle.Name) string {
	if n.Full != "" {
		return n.Full
	}
	return n.Raw
}

func addPlaces(idx *bundle.Indexes, owner string, facts []bundle.Fact) {
	for _, f := range facts {
		if f.Place == nil {
			continue
		}
		text := f.Place.Normalized
		if text == "" {
			text = f.Place.Raw
		}
		for _, tok := range Tokens(text) {
			idx.PlaceTokens[tok] = append(idx.PlaceTokens[tok], owner)
		}
		if key := PlaceKey(text); key != "" {
			idx.PlaceKeys[key] = append(idx.PlaceKeys[key], owner)
		}
	}
}

// PlaceKey returns the slug under which a place is indexed.
func PlaceKey(place string) string {
	return slug.Make(place)
}

// Fold lower-cases s and strips combining marks, so "Zoë" and "ZOE" fold
// to the same "zoe".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokens splits s into folded words. Letters and digits form words;
// everything else separates them.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
