package index

import (
	"cmp"
	"maps"
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// Match is one search hit.
type Match struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Distance is the summed edit distance of the query words to the
	// name tokens they matched; 0 is an exact match.
	Distance int `json:"distance"`
}

// Search ranks the individuals whose names match every word of query. A
// query word matches a name token when its letters appear in the token in
// order, so "jhn" finds "john". idx may be nil, in which case it is built.
// Results are ordered by distance, then id.
func Search(b *bundle.Bundle, idx *bundle.Indexes, query string) []Match {
	words := Tokens(query)
	if len(words) == 0 {
		return nil
	}
	if idx == nil {
		idx = Build(b)
	}
	vocab := slices.Sorted(maps.Keys(idx.NameTokens))

	var scores map[string]int
	for _, w := range words {
		best := make(map[string]int)
		for _, r := range fuzzy.RankFindFold(w, vocab) {
			for _, id := range idx.NameTokens[r.Target] {
				if d, ok := best[id]; !ok || r.Distance < d {
					best[id] = r.Distance
				}
			}
		}
		if scores == nil {
			scores = best
			continue
		}
		for id, d := range scores {
			if bd, ok := best[id]; ok {
				scores[id] = d + bd
			} else {
				delete(scores, id)
			}
		}
	}

	out := make([]Match, 0, len(scores))
	for id, d := range scores {
		m := Match{ID: id, Distance: d}
		if ind, ok := b.Individual(id); ok {
			m.Name = ind.PrimaryName().Full
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Match) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})
	return out
}
