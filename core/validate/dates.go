package validate

import (
	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/issue"
)

// Dates reports chronologically implausible facts and textual dates.
func Dates(b *bundle.Bundle, opts Options) issue.List {
	var out issue.List
	now := ""
	if !opts.Now.IsZero() {
		now = opts.Now.Format("2006-01-02")
	}

	for i := range b.Entities.Individuals {
		ind := &b.Entities.Individuals[i]
		birth := lifeDate(ind.Facts, "BIRT", "CHR", "BAPM")
		death := lifeDate(ind.Facts, "DEAT", "BURI", "CREM")

		if birth != nil && death != nil {
			if earlier(death.ISO, birth.ISO) {
				out.Add(issue.KindImplausibleDate, issue.SeverityWarning, ind.ID, 0,
					"death (%s) before birth (%s)", death.ISO, birth.ISO)
			}
			if span := death.Year() - birth.Year(); span > opts.maxLifespan() {
				out.Add(issue.KindImplausibleDate, issue.SeverityWarning, ind.ID, 0,
					"lifespan of %d years exceeds %d", span, opts.maxLifespan())
			}
		}

		if birth != nil {
			for _, parent := range parents(b, ind) {
				pb := lifeDate(parent.Facts, "BIRT", "CHR", "BAPM")
				if pb != nil && !earlier(pb.ISO, birth.ISO) {
					out.Add(issue.KindImplausibleDate, issue.SeverityWarning, ind.ID, 0,
						"born (%s) no later than parent %s (%s)", birth.ISO, parent.ID, pb.ISO)
				}
			}
		}

		out = append(out, factDates(ind.ID, ind.Facts, now)...)
	}

	for i := range b.Entities.Unions {
		u := &b.Entities.Unions[i]
		if marr := lifeDate(u.Facts, "MARR"); marr != nil {
			for _, id := range u.Partners() {
				p, ok := b.Individual(id)
				if !ok {
					continue
				}
				if pb := lifeDate(p.Facts, "BIRT", "CHR", "BAPM"); pb != nil && earlier(marr.ISO, pb.ISO) {
					out.Add(issue.KindImplausibleDate, issue.SeverityWarning, u.ID, 0,
						"marriage (%s) before birth of partner %s (%s)", marr.ISO, p.ID, pb.ISO)
				}
			}
		}
		out = append(out, factDates(u.ID, u.Facts, now)...)
	}
	return out
}

// factDates reports textual and future dates among facts.
func factDates(owner string, facts []bundle.Fact, now string) issue.List {
	var out issue.List
	for _, f := range facts {
		d := f.Date
		if d == nil {
			continue
		}
		if d.Kind == bundle.DateTextual {
			if d.Raw != "" {
				out.Add(issue.KindTextualDate, issue.SeverityInfo, owner, 0,
					"%s date %q kept as text", f.Type, d.Raw)
			}
			continue
		}
		if now != "" && earlier(now, d.ISO) {
			out.Add(issue.KindImplausibleDate, issue.SeverityWarning, owner, 0,
				"%s date %s is in the future", f.Type, d.ISO)
		}
	}
	return out
}

// lifeDate returns the first comparable date among facts of the given types,
// trying the types in order.
func lifeDate(facts []bundle.Fact, types ...string) *bundle.Date {
	for _, typ := range types {
		for _, f := range facts {
			if f.Type == typ && pinned(f.Date) {
				return f.Date
			}
		}
	}
	return nil
}

// pinned reports whether d pins a point in time closely enough to
// compare: exact, approximate and range dates do; open-ended ones do not.
func pinned(d *bundle.Date) bool {
	if d == nil || d.ISO == "" {
		return false
	}
	switch d.Kind {
	case bundle.DateExact, bundle.DateAbout, bundle.DateBetween:
		return true
	}
	return false
}

// earlier reports whether partial ISO date a is strictly before b at the
// precision they share.
func earlier(a, b string) bool {
	n := min(len(a), len(b))
	return a[:n] < b[:n]
}

func parents(b *bundle.Bundle, ind *bundle.Individual) []*bundle.Individual {
	var out []*bundle.Individual
	for _, l := range ind.UnionLinks {
		if l.Role != bundle.RoleChild {
			continue
		}
		u, ok := b.Union(l.UnionID)
		if !ok {
			continue
		}
		for _, id := range u.Partners() {
			if p, ok := b.Individual(id); ok {
				out = append(out, p)
			}
		}
	}
	return out
}
