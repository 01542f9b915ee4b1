// Package bundle defines the canonical model produced from a genealogical
// source.
//
// A Bundle is an immutable value: every operation that derives something
// from it (indexes, diffs, patches) returns a new value. Entities refer to
// one another only by id, so the individual/union relationship needs no
// in-memory cycle.
package bundle

import (
	"slices"
	"strings"
	"time"
)

// SchemaVersion is the version of the canonical JSON shape.
const SchemaVersion = "1.0.0"

// SourceFormat names the input format recorded in Meta.
const SourceFormat = "gedcom"

// Bundle is the canonical representation of one parsed source.
type Bundle struct {
	Meta     Meta     `json:"meta"`
	Entities Entities `json:"entities"`

	// Records holds top-level records that are not entities (submitters,
	// repositories, vendor records) so nothing from the source is dropped.
	Records []RawNode `json:"records,omitempty"`

	// Indexes are derived lookup tables. They are never hashed.
	Indexes *Indexes `json:"indexes,omitempty"`
}

// Meta describes where a bundle came from.
type Meta struct {
	SchemaVersion string    `json:"schema_version"`
	SourceHash    string    `json:"source_hash,omitempty"`
	SourceFormat  string    `json:"source_format,omitempty"`
	SourceVersion string    `json:"source_version,omitempty"`
	SourceCharset string    `json:"source_charset,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitzero"`

	// Header is the source header record, kept verbatim.
	Header *RawNode `json:"header,omitempty"`
}

// Entities holds the entity collections, each ordered by id.
type Entities struct {
	Individuals []Individual `json:"individuals,omitempty"`
	Unions      []Union      `json:"unions,omitempty"`
	Media       []Media      `json:"media,omitempty"`
	Sources     []Source     `json:"sources,omitempty"`
	Notes       []Note       `json:"notes,omitempty"`
}

// Refs are the attachments shared by entities and facts.
type Refs struct {
	// Notes are inline note texts.
	Notes []string `json:"notes,omitempty"`
	// NoteRefs are ids of shared note records.
	NoteRefs []string `json:"note_refs,omitempty"`
	// SourceRefs lists each cited source id once, in first-cited order.
	SourceRefs []string `json:"source_refs,omitempty"`
	// Citations has one entry per source pointer occurrence.
	Citations []Citation `json:"citations,omitempty"`
	MediaRefs []string   `json:"media_refs,omitempty"`
}

// Individual is a person.
type Individual struct {
	ID         string      `json:"id"`
	Names      []Name      `json:"names,omitempty"`
	Sex        string      `json:"sex,omitempty"`
	Facts      []Fact      `json:"facts,omitempty"`
	UnionLinks []UnionLink `json:"union_links,omitempty"`
	Refs
	Extensions []RawNode `json:"extensions,omitempty"`
}

// PrimaryName returns the first name, or the zero Name.
func (i *Individual) PrimaryName() Name {
	if len(i.Names) == 0 {
		return Name{}
	}
	return i.Names[0]
}

// FactsOf returns the facts of the given type in source order.
func (i *Individual) FactsOf(typ string) []Fact {
	return factsOf(i.Facts, typ)
}

// Union is a family unit.
type Union struct {
	ID      string       `json:"id"`
	Members []MemberLink `json:"members,omitempty"`
	Facts   []Fact       `json:"facts,omitempty"`
	Refs
	Extensions []RawNode `json:"extensions,omitempty"`
}

// Partners returns the ids of the partner members.
func (u *Union) Partners() []string {
	return u.membersWithRole(RolePartner)
}

// Children returns the ids of the child members.
func (u *Union) Children() []string {
	return u.membersWithRole(RoleChild)
}

func (u *Union) membersWithRole(role string) []string {
	var ids []string
	for _, m := range u.Members {
		if m.Role == role {
			ids = append(ids, m.IndividualID)
		}
	}
	return ids
}

// FactsOf returns the facts of the given type in source order.
func (u *Union) FactsOf(typ string) []Fact {
	return factsOf(u.Facts, typ)
}

func factsOf(facts []Fact, typ string) []Fact {
	var out []Fact
	for _, f := range facts {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// Link roles.
const (
	RolePartner = "partner"
	RoleChild   = "child"
)

// Partner qualifiers.
const (
	QualifierHusband = "husband"
	QualifierWife    = "wife"
)

// UnionLink ties an individual to a union.
type UnionLink struct {
	UnionID  string `json:"union_id"`
	Role     string `json:"role"`
	Pedigree string `json:"pedigree,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// MemberLink ties a union to one of its members.
type MemberLink struct {
	IndividualID string `json:"individual_id"`
	Role         string `json:"role"`
	Qualifier    string `json:"qualifier,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Fact is a dated or placed event or attribute.
type Fact struct {
	Type string `json:"type"`
	// Value is the fact's own text, such as an occupation.
	Value string `json:"value,omitempty"`
	// Descriptor is the TYPE refinement of generic events.
	Descriptor string `json:"descriptor,omitempty"`
	Date       *Date  `json:"date,omitempty"`
	Place      *Place `json:"place,omitempty"`
	Refs
	Extensions []RawNode `json:"extensions,omitempty"`
}

// Citation is one source pointer occurrence.
type Citation struct {
	SourceID string `json:"source_id"`
	Page     string `json:"page,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Date kinds.
const (
	DateExact   = "exact"
	DateAbout   = "about"
	DateBefore  = "before"
	DateAfter   = "after"
	DateBetween = "between"
	DateTextual = "textual"
)

// Date precisions.
const (
	PrecisionYear  = "year"
	PrecisionMonth = "month"
	PrecisionDay   = "day"
)

// Date is a normalized date. ISO and End hold partial ISO 8601 dates
// ("1850", "1850-06", "1850-06-12"); End is set only for ranges.
type Date struct {
	Kind      string `json:"kind"`
	ISO       string `json:"iso,omitempty"`
	End       string `json:"end,omitempty"`
	Precision string `json:"precision,omitempty"`
	Phrase    string `json:"phrase,omitempty"`
	Raw       string `json:"raw"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Year returns the year of the start of the date, or 0 for textual dates.
func (d *Date) Year() int {
	if d == nil || len(d.ISO) < 4 {
		return 0
	}
	y := 0
	for _, c := range d.ISO[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		y = y*10 + int(c-'0')
	}
	return y
}

// Place is a normalized place.
type Place struct {
	Raw        string   `json:"raw"`
	Parts      []string `json:"parts,omitempty"`
	Normalized string   `json:"normalized,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Name is a normalized personal name.
type Name struct {
	Raw     string `json:"raw"`
	Full    string `json:"full,omitempty"`
	Given   string `json:"given,omitempty"`
	Surname string `json:"surname,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
	Type    string `json:"type,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Media is a reference to an external media file. Content is never embedded.
type Media struct {
	ID        string `json:"id"`
	Reference string `json:"reference,omitempty"`
	Format    string `json:"format,omitempty"`
	MIME      string `json:"mime,omitempty"`
	Title     string `json:"title,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// Source is a cited source.
type Source struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Publication string `json:"publication,omitempty"`

	// Citations are derived back-links to every place the source is cited.
	Citations []CitationLink `json:"citations,omitempty"`

	Extensions []RawNode `json:"extensions,omitempty"`
}

// CitationLink points back from a source to a citing entity.
type CitationLink struct {
	Owner string `json:"owner"`
	// Fact is the cited fact's type, empty when the entity itself cites.
	Fact string `json:"fact,omitempty"`
	Page string `json:"page,omitempty"`
}

// Note is a shared note record.
type Note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Refs

	Extensions []RawNode `json:"extensions,omitempty"`
}

// RawNode is an opaque subtree carried through unchanged.
type RawNode struct {
	Tag      string    `json:"tag"`
	XRef     string    `json:"xref,omitempty"`
	Value    string    `json:"value,omitempty"`
	Children []RawNode `json:"children,omitempty"`
}

// Indexes are lookup tables derived from the entities.
type Indexes struct {
	// NameTokens maps a folded name token to individual ids.
	NameTokens map[string][]string `json:"name_tokens,omitempty"`
	// PlaceTokens maps a folded place token to owning entity ids.
	PlaceTokens map[string][]string `json:"place_tokens,omitempty"`
	// PlaceKeys maps a place slug to owning entity ids.
	PlaceKeys map[string][]string `json:"place_keys,omitempty"`
	// IDs maps every entity id to its collection name.
	IDs map[string]string `json:"ids,omitempty"`
}

// Collection names.
const (
	CollectionIndividuals = "individuals"
	CollectionUnions      = "unions"
	CollectionMedia       = "media"
	CollectionSources     = "sources"
	CollectionNotes       = "notes"
)

// Collections lists the collection names in bundle order.
var Collections = []string{
	CollectionIndividuals,
	CollectionUnions,
	CollectionMedia,
	CollectionSources,
	CollectionNotes,
}

// Individual returns the individual with the given id.
func (b *Bundle) Individual(id string) (*Individual, bool) {
	return find(b.Entities.Individuals, id, func(e *Individual) string { return e.ID })
}

// Union returns the union with the given id.
func (b *Bundle) Union(id string) (*Union, bool) {
	return find(b.Entities.Unions, id, func(e *Union) string { return e.ID })
}

// Source returns the source with the given id.
func (b *Bundle) Source(id string) (*Source, bool) {
	return find(b.Entities.Sources, id, func(e *Source) string { return e.ID })
}

// MediaItem returns the media record with the given id.
func (b *Bundle) MediaItem(id string) (*Media, bool) {
	return find(b.Entities.Media, id, func(e *Media) string { return e.ID })
}

// Note returns the note with the given id.
func (b *Bundle) Note(id string) (*Note, bool) {
	return find(b.Entities.Notes, id, func(e *Note) string { return e.ID })
}

// find binary-searches a collection ordered by id.
func find[T any](items []T, id string, key func(*T) string) (*T, bool) {
	i, ok := slices.BinarySearchFunc(items, id, func(e T, id string) int {
		return strings.Compare(key(&e), id)
	})
	if !ok {
		return nil, false
	}
	return &items[i], true
}

// Has reports whether any collection contains id, and which one.
func (b *Bundle) Has(id string) (string, bool) {
	switch {
	case hasID(b.Entities.Individuals, id, func(e *Individual) string { return e.ID }):
		return CollectionIndividuals, true
	case hasID(b.Entities.Unions, id, func(e *Union) string { return e.ID }):
		return CollectionUnions, true
	case hasID(b.Entities.Media, id, func(e *Media) string { return e.ID }):
		return CollectionMedia, true
	case hasID(b.Entities.Sources, id, func(e *Source) string { return e.ID }):
		return CollectionSources, true
	case hasID(b.Entities.Notes, id, func(e *Note) string { return e.ID }):
		return CollectionNotes, true
	}
	return "", false
}

func hasID[T any](items []T, id string, key func(*T) string) bool {
	_, ok := find(items, id, key)
	return ok
}

// Sort orders every collection by id. It is used while a bundle is being
// built, before it is handed out.
func (e *Entities) Sort() {
	slices.SortStableFunc(e.Individuals, func(a, b Individual) int { return strings.Compare(a.ID, b.ID) })
	slices.SortStableFunc(e.Unions, func(a, b Union) int { return strings.Compare(a.ID, b.ID) })
	slices.SortStableFunc(e.Media, func(a, b Media) int { return strings.Compare(a.ID, b.ID) })
	slices.SortStableFunc(e.Sources, func(a, b Source) int { return strings.Compare(a.ID, b.ID) })
	slices.SortStableFunc(e.Notes, func(a, b Note) int { return strings.Compare(a.ID, b.ID) })
}

// Duplicate returns the first id that occurs twice within one collection,
// and the collection's name. Collections must be sorted.
func (e *Entities) Duplicate() (collection, id string, ok bool) {
	switch {
	case repeated(e.Individuals, &id, func(x *Individual) string { return x.ID }):
		return CollectionIndividuals, id, true
	case repeated(e.Unions, &id, func(x *Union) string { return x.ID }):
		return CollectionUnions, id, true
	case repeated(e.Media, &id, func(x *Media) string { return x.ID }):
		return CollectionMedia, id, true
	case repeated(e.Sources, &id, func(x *Source) string { return x.ID }):
		return CollectionSources, id, true
	case repeated(e.Notes, &id, func(x *Note) string { return x.ID }):
		return CollectionNotes, id, true
	}
	return "", "", false
}

func repeated[T any](items []T, id *string, key func(*T) string) bool {
	for i := 1; i < len(items); i++ {
		if k := key(&items[i]); k == key(&items[i-1]) {
			*id = k
			return true
		}
	}
	return false
}

// WithoutIndexes returns a shallow copy of b with Indexes cleared.
func (b *Bundle) WithoutIndexes() *Bundle {
	out := *b
	out.Indexes = nil
	return &out
}
