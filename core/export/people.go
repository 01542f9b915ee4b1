package export

import (
	"slices"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// Person is one entry of the people payload.
type Person struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Sex      string   `json:"sex,omitempty"`
	Birth    *Event   `json:"birth,omitempty"`
	Death    *Event   `json:"death,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	Partners []string `json:"partners,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Event is a date and place pair taken from a fact.
type Event struct {
	Date  string `json:"date,omitempty"`
	ISO   string `json:"iso,omitempty"`
	Place string `json:"place,omitempty"`
}

// PeoplePayload is the person directory document.
type PeoplePayload struct {
	People []Person `json:"people"`
}

// People builds the person directory payload. Relatives are resolved
// through unions and listed once each, ordered by id.
func People(b *bundle.Bundle) PeoplePayload {
	out := PeoplePayload{People: make([]Person, 0, len(b.Entities.Individuals))}
	for i := range b.Entities.Individuals {
		ind := &b.Entities.Individuals[i]
		p := Person{
			ID:    ind.ID,
			Name:  DisplayName(ind),
			Sex:   ind.Sex,
			Birth: firstEvent(ind, "BIRT", "CHR", "BAPM"),
			Death: firstEvent(ind, "DEAT", "BURI", "CREM"),
		}
		for _, l := range ind.UnionLinks {
			u, ok := b.Union(l.UnionID)
			if !ok {
				continue
			}
			switch l.Role {
			case bundle.RoleChild:
				p.Parents = append(p.Parents, u.Partners()...)
			case bundle.RolePartner:
				for _, id := range u.Partners() {
					if id != ind.ID {
						p.Partners = append(p.Partners, id)
					}
				}
				p.Children = append(p.Children, u.Children()...)
			}
		}
		p.Parents = unique(p.Parents)
		p.Partners = unique(p.Partners)
		p.Children = unique(p.Children)
		out.People = append(out.People, p)
	}
	return out
}

// DisplayName returns the primary full name, the raw name when the full
// form is empty, or the id for unnamed individuals.
func DisplayName(ind *bundle.Individual) string {
	n := ind.PrimaryName()
	switch {
	case n.Full != "":
		return n.Full
	case n.Raw != "":
		return n.Raw
	}
	return ind.ID
}

func firstEvent(ind *bundle.Individual, types ...string) *Event {
	for _, typ := range types {
		for _, f := range ind.FactsOf(typ) {
			if f.Date == nil && f.Place == nil {
				continue
			}
			e := &Event{}
			if f.Date != nil {
				e.Date = f.Date.Raw
				e.ISO = f.Date.ISO
			}
			if f.Place != nil {
				e.Place = placeName(f.Place)
			}
			return e
		}
	}
	return nil
}

func placeName(p *bundle.Place) string {
	if p.Normalized != "" {
		return p.Normalized
	}
	return p.Raw
}

func unique(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
