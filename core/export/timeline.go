package export

import (
	"cmp"
	"slices"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// TimelineEntry is one dated fact.
type TimelineEntry struct {
	Date   string `json:"date"`
	End    string `json:"end,omitempty"`
	Kind   string `json:"kind"`
	Raw    string `json:"raw"`
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Label  string `json:"label"`
	Place  string `json:"place,omitempty"`
}

// TimelinePayload is the chronological document.
type TimelinePayload struct {
	Events []TimelineEntry `json:"events"`
}

// Timeline lists every fact with a comparable date, ordered by date, then
// entity id, then fact type. Textual dates have no position and are left
// out.
func Timeline(b *bundle.Bundle) TimelinePayload {
	out := TimelinePayload{Events: []TimelineEntry{}}
	add := func(entity, label string, facts []bundle.Fact) {
		for _, f := range facts {
			if f.Date == nil || f.Date.ISO == "" || f.Date.Kind == bundle.DateTextual {
				continue
			}
			e := TimelineEntry{
				Date:   f.Date.ISO,
				End:    f.Date.End,
				Kind:   f.Date.Kind,
				Raw:    f.Date.Raw,
				Type:   f.Type,
				Entity: entity,
				Label:  label,
			}
			if f.Place != nil {
				e.Place = placeName(f.Place)
			}
			out.Events = append(out.Events, e)
		}
	}
	for i := range b.Entities.Individuals {
		ind := &b.Entities.Individuals[i]
		add(ind.ID, DisplayName(ind), ind.Facts)
	}
	for i := range b.Entities.Unions {
		u := &b.Entities.Unions[i]
		add(u.ID, unionLabel(b, u), u.Facts)
	}

	slices.SortStableFunc(out.Events, func(a, b TimelineEntry) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Entity, b.Entity),
			cmp.Compare(a.Type, b.Type),
		)
	})
	return out
}
