// Package validate analyses a bundle and reports what looks wrong.
//
// Validators are pure: they never modify the bundle and never fail. All
// findings come back as issues for the caller to weigh.
package validate

import (
	"time"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/issue"
)

// DefaultMaxLifespan is the longest plausible life in years.
const DefaultMaxLifespan = 120

// Options configures the validators.
type Options struct {
	// Now enables the future-date check when set.
	Now time.Time
	// MaxLifespan overrides DefaultMaxLifespan when positive.
	MaxLifespan int
	// Dangling is the severity of dangling references; zero means warning.
	Dangling issue.Severity
}

func (o Options) maxLifespan() int {
	if o.MaxLifespan > 0 {
		return o.MaxLifespan
	}
	return DefaultMaxLifespan
}

func (o Options) dangling() issue.Severity {
	if o.Dangling == issue.SeverityInfo {
		return issue.SeverityWarning
	}
	return o.Dangling
}

// Validator is one analysis pass.
type Validator func(b *bundle.Bundle, opts Options) issue.List

// All runs every validator in order.
func All(b *bundle.Bundle, opts Options) issue.List {
	return Run(b, opts, References, Links, Dates, Structure)
}

// Ingest runs every validator except References. Bundles fresh from the
// transform already carry one dangling-pointer issue per occurrence.
func Ingest(b *bundle.Bundle, opts Options) issue.List {
	return Run(b, opts, Links, Dates, Structure)
}

// Run runs the given validators in order and concatenates their issues.
func Run(b *bundle.Bundle, opts Options, validators ...Validator) issue.List {
	var out issue.List
	for _, v := range validators {
		out = append(out, v(b, opts)...)
	}
	return out
}

// References reports every id that does not resolve within the bundle.
func References(b *bundle.Bundle, opts Options) issue.List {
	var out issue.List
	sev := opts.dangling()
	check := func(owner, id, want string, resolve func(string) bool) {
		if !resolve(id) {
			out.Add(issue.KindDanglingPointer, sev, owner, 0, "%s reference %s does not resolve", want, id)
		}
	}

	isIndividual := func(id string) bool { _, ok := b.Individual(id); return ok }
	isUnion := func(id string) bool { _, ok := b.Union(id); return ok }
	isSource := func(id string) bool { _, ok := b.Source(id); return ok }
	isMedia := func(id string) bool { _, ok := b.MediaItem(id); return ok }
	isNote := func(id string) bool { _, ok := b.Note(id); return ok }

	refs := func(owner string, r *bundle.Refs) {
		for _, id := range r.NoteRefs {
			check(owner, id, "note", isNote)
		}
		for _, c := range r.Citations {
			check(owner, c.SourceID, "source", isSource)
		}
		for _, id := range r.SourceRefs {
			if !citedIn(r.Citations, id) {
				check(owner, id, "source", isSource)
			}
		}
		for _, id := range r.MediaRefs {
			check(owner, id, "media", isMedia)
		}
	}

	for i := range b.Entities.Individuals {
		ind := &b.Entities.Individuals[i]
		for _, l := range ind.UnionLinks {
			check(ind.ID, l.UnionID, "union", isUnion)
		}
		refs(ind.ID, &ind.Refs)
		for j := range ind.Facts {
			refs(ind.ID, &ind.Facts[j].Refs)
		}
	}
	for i := range b.Entities.Unions {
		u := &b.Entities.Unions[i]
		for _, m := range u.Members {
			check(u.ID, m.IndividualID, "individual", isIndividual)
		}
		refs(u.ID, &u.Refs)
		for j := range u.Facts {
			refs(u.ID, &u.Facts[j].Refs)
		}
	}
	for i := range b.Entities.Notes {
		refs(b.Entities.Notes[i].ID, &b.Entities.Notes[i].Refs)
	}
	return out
}

func citedIn(cites []bundle.Citation, id string) bool {
	for _, c := range cites {
		if c.SourceID == id {
			return true
		}
	}
	return false
}

// Links reports individual/union links that are not mirrored on the other
// side. Links to ids that do not exist are left to References.
func Links(b *bundle.Bundle, _ Options) issue.List {
	var out issue.List
	for _, ind := range b.Entities.Individuals {
		for _, l := range ind.UnionLinks {
			u, ok := b.Union(l.UnionID)
			if !ok {
				continue
			}
			if !hasMember(u, ind.ID, l.Role) {
				out.Add(issue.KindBrokenLink, issue.SeverityWarning, ind.ID, 0,
					"linked to %s as %s but %s does not list it", u.ID, l.Role, u.ID)
			}
		}
	}
	for _, u := range b.Entities.Unions {
		for _, m := range u.Members {
			ind, ok := b.Individual(m.IndividualID)
			if !ok {
				continue
			}
			if !hasLink(ind, u.ID, m.Role) {
				out.Add(issue.KindBrokenLink, issue.SeverityWarning, u.ID, 0,
					"lists %s as %s but %s does not link back", ind.ID, m.Role, ind.ID)
			}
		}
	}
	return out
}

func hasMember(u *bundle.Union, id, role string) bool {
	for _, m := range u.Members {
		if m.IndividualID == id && m.Role == role {
			return true
		}
	}
	return false
}

func hasLink(ind *bundle.Individual, unionID, role string) bool {
	for _, l := range ind.UnionLinks {
		if l.UnionID == unionID && l.Role == role {
			return true
		}
	}
	return false
}

// knownSex lists the sex values of the source format's 5.5.1 and 7.0 editions.
var knownSex = map[string]bool{"M": true, "F": true, "U": true, "X": true}

// Structure reports individuals without names, unions without members and
// unknown sex values.
func Structure(b *bundle.Bundle, _ Options) issue.List {
	var out issue.List
	for _, ind := range b.Entities.Individuals {
		if !named(&ind) {
			out.Add(issue.KindMissingName, issue.SeverityInfo, ind.ID, 0, "individual has no name")
		}
		if ind.Sex != "" && !knownSex[ind.Sex] {
			out.Add(issue.KindUnknownSex, issue.SeverityWarning, ind.ID, 0, "unknown sex value %q", ind.Sex)
		}
	}
	for _, u := range b.Entities.Unions {
		if len(u.Members) == 0 {
			out.Add(issue.KindEmptyUnion, issue.SeverityWarning, u.ID, 0, "union has no members")
		}
	}
	return out
}

func named(ind *bundle.Individual) bool {
	for _, n := range ind.Names {
		if n.Full != "" {
			return true
		}
	}
	return false
}
