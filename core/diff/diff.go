// Package diff compares two bundles entity by entity and replays the
// differences.
//
// Entities are matched by id only: an entity whose id changed is reported
// as one removal and one addition, however similar the contents are. Two
// entities with the same id differ when their canonical serializations
// differ. A collection that repeats an id cannot be diffed.
package diff

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/hash"
)

// Granularity selects how updates describe their changes.
type Granularity string

const (
	// GranularityEntity lists the top-level fields that changed.
	GranularityEntity Granularity = "entity"
	// GranularityField lists every changed leaf as a path such as
	// "facts.0.date.iso".
	GranularityField Granularity = "field"
)

// ParseGranularity validates a granularity name. The empty name means
// GranularityEntity.
func ParseGranularity(name string) (Granularity, error) {
	switch Granularity(name) {
	case "", GranularityEntity:
		return GranularityEntity, nil
	case GranularityField:
		return GranularityField, nil
	}
	return "", apperrors.NewUnsupported("diff granularity", name)
}

// Options configures Diff.
type Options struct {
	Granularity Granularity
}

// Change is one differing field. Before or After is absent when the field
// exists on one side only.
type Change struct {
	Path   string          `json:"path"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Update is an entity present on both sides with different content.
type Update[T any] struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
	// After is the entity as it is in the second bundle.
	After T `json:"after"`
}

// Delta holds the differences within one collection. Removed carries the
// entities as they were in the first bundle.
type Delta[T any] struct {
	Added   []T         `json:"added,omitempty"`
	Removed []T         `json:"removed,omitempty"`
	Updated []Update[T] `json:"updated,omitempty"`
}

// Empty reports whether the collection is unchanged.
func (d *Delta[T]) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// MetaChange carries the second bundle's meta when it differs.
type MetaChange struct {
	Changes []Change    `json:"changes"`
	After   bundle.Meta `json:"after"`
}

// RecordsChange carries the second bundle's pass-through records when
// they differ.
type RecordsChange struct {
	After []bundle.RawNode `json:"after"`
}

// Result is the difference between two bundles.
type Result struct {
	Granularity Granularity              `json:"granularity"`
	Individuals Delta[bundle.Individual] `json:"individuals"`
	Unions      Delta[bundle.Union]      `json:"unions"`
	Media       Delta[bundle.Media]      `json:"media"`
	Sources     Delta[bundle.Source]     `json:"sources"`
	Notes       Delta[bundle.Note]       `json:"notes"`

	Meta    *MetaChange    `json:"meta,omitempty"`
	Records *RecordsChange `json:"records,omitempty"`
}

// Empty reports whether the two bundles were equivalent.
func (r *Result) Empty() bool {
	return r.Individuals.Empty() && r.Unions.Empty() && r.Media.Empty() &&
		r.Sources.Empty() && r.Notes.Empty() && r.Meta == nil && r.Records == nil
}

// Counts returns the number of added, removed and updated entities across
// all collections.
func (r *Result) Counts() (added, removed, updated int) {
	add := func(a, rm, up int) {
		added += a
		removed += rm
		updated += up
	}
	add(len(r.Individuals.Added), len(r.Individuals.Removed), len(r.Individuals.Updated))
	add(len(r.Unions.Added), len(r.Unions.Removed), len(r.Unions.Updated))
	add(len(r.Media.Added), len(r.Media.Removed), len(r.Media.Updated))
	add(len(r.Sources.Added), len(r.Sources.Removed), len(r.Sources.Updated))
	add(len(r.Notes.Added), len(r.Notes.Removed), len(r.Notes.Updated))
	return added, removed, updated
}

// Decode reads a serialized Result.
func Decode(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperrors.NewParse("diff", "", err)
	}
	return &r, nil
}

// Diff compares a with b. Indexes are ignored. A collection that repeats
// an id fails with a *errors.ConflictError.
func Diff(a, b *bundle.Bundle, opts Options) (*Result, error) {
	g, err := ParseGranularity(string(opts.Granularity))
	if err != nil {
		return nil, err
	}
	r := &Result{Granularity: g}

	if r.Individuals, err = diffCollection(a.Entities.Individuals, b.Entities.Individuals, "individual", individualID, g); err != nil {
		return nil, err
	}
	if r.Unions, err = diffCollection(a.Entities.Unions, b.Entities.Unions, "union", unionID, g); err != nil {
		return nil, err
	}
	if r.Media, err = diffCollection(a.Entities.Media, b.Entities.Media, "media", mediaID, g); err != nil {
		return nil, err
	}
	if r.Sources, err = diffCollection(a.Entities.Sources, b.Entities.Sources, "source", sourceID, g); err != nil {
		return nil, err
	}
	if r.Notes, err = diffCollection(a.Entities.Notes, b.Entities.Notes, "note", noteID, g); err != nil {
		return nil, err
	}

	changes, err := compare(a.Meta, b.Meta, g)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		r.Meta = &MetaChange{Changes: changes, After: b.Meta}
	}

	same, err := equal(a.Records, b.Records)
	if err != nil {
		return nil, err
	}
	if !same {
		r.Records = &RecordsChange{After: b.Records}
	}
	return r, nil
}

func individualID(e *bundle.Individual) string { return e.ID }
func unionID(e *bundle.Union) string { return e.ID }
func mediaID(e *bundle.Media) string { return e.ID }
func sourceID(e *bundle.Source) string { return e.ID }
func noteID(e *bundle.Note) string { return e.ID }

func diffCollection[T any](a, b []T, resource string, id func(*T) string, g Granularity) (Delta[T], error) {
	var d Delta[T]
	inA, err := positions(a, resource, id)
	if err != nil {
		return d, err
	}
	inB, err := positions(b, resource, id)
	if err != nil {
		return d, err
	}

	for i := range a {
		if _, ok := inB[id(&a[i])]; !ok {
			d.Removed = append(d.Removed, a[i])
		}
	}
	for i := range b {
		key := id(&b[i])
		j, ok := inA[key]
		if !ok {
			d.Added = append(d.Added, b[i])
			continue
		}
		changes, err := compare(a[j], b[i], g)
		if err != nil {
			return d, err
		}
		if len(changes) > 0 {
			d.Updated = append(d.Updated, Update[T]{ID: key, Changes: changes, After: b[i]})
		}
	}

	slices.SortStableFunc(d.Removed, func(x, y T) int { return strings.Compare(id(&x), id(&y)) })
	slices.SortStableFunc(d.Added, func(x, y T) int { return strings.Compare(id(&x), id(&y)) })
	slices.SortStableFunc(d.Updated, func(x, y Update[T]) int { return strings.Compare(x.ID, y.ID) })
	return d, nil
}

// positions maps each id of items to its index.
func positions[T any](items []T, resource string, id func(*T) string) (map[string]int, error) {
	at := make(map[string]int, len(items))
	for i := range items {
		key := id(&items[i])
		if _, dup := at[key]; dup {
			return nil, apperrors.NewConflict(resource, key)
		}
		at[key] = i
	}
	return at, nil
}

func equal(a, b any) (bool, error) {
	ca, err := hash.Canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := hash.Canonical(b)
	if err != nil {
		return false, err
	}
	return string(ca) == string(cb), nil
}

// compare returns the changes between two values of the same type, or nil
// when their canonical forms are identical.
func compare(a, b any, g Granularity) ([]Change, error) {
	ca, err := hash.Canonical(a)
	if err != nil {
		return nil, err
	}
	cb, err := hash.Canonical(b)
	if err != nil {
		return nil, err
	}
	if string(ca) == string(cb) {
		return nil, nil
	}

	var before, after map[string]string
	if g == GranularityField {
		before, after = leaves(ca), leaves(cb)
	} else {
		before, after = fields(ca), fields(cb)
	}

	paths := make([]string, 0, len(before)+len(after))
	for p := range before {
		paths = append(paths, p)
	}
	for p := range after {
		if _, ok := before[p]; !ok {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)

	var changes []Change
	for _, p := range paths {
		x, inX := before[p]
		y, inY := after[p]
		if inX && inY && x == y {
			continue
		}
		c := Change{Path: p}
		if inX {
			c.Before = json.RawMessage(x)
		}
		if inY {
			c.After = json.RawMessage(y)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// fields maps each top-level key of a JSON object to its raw value.
func fields(data []byte) map[string]string {
	out := make(map[string]string)
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		out[gjson.Escape(k.String())] = v.Raw
		return true
	})
	return out
}

// leaves maps the path of every scalar and empty container in a JSON
// document to its raw value. Paths use gjson syntax.
func leaves(data []byte) map[string]string {
	type frame struct {
		path string
		v    gjson.Result
	}
	out := make(map[string]string)
	stack := []frame{{v: gjson.ParseBytes(data)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !f.v.IsObject() && !f.v.IsArray() {
			out[f.path] = f.v.Raw
			continue
		}
		n := 0
		array := f.v.IsArray()
		f.v.ForEach(func(k, v gjson.Result) bool {
			seg := strconv.Itoa(n)
			if !array {
				seg = gjson.Escape(k.String())
			}
			path := seg
			if f.path != "" {
				path = f.path + "." + seg
			}
			stack = append(stack, frame{path: path, v: v})
			n++
			return true
		})
		if n == 0 {
			out[f.path] = f.v.Raw
		}
	}
	return out
}
