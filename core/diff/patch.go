package diff

import (
	"slices"
	"strings"

	"github.com/mohae/deepcopy"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// Patch applies d to a copy of a and returns it; a is not modified. Removed
// entities are matched by id only. Within
// each collection removals are applied first, then additions, then
// updates. Removing or updating an id that a lacks fails with a
// *errors.NotFoundError; adding an id that a already has fails with a
// *errors.ConflictError, as does a base that repeats an id within a
// collection. The result carries no indexes.
func Patch(a *bundle.Bundle, d *Result) (*bundle.Bundle, error) {
	out := deepcopy.Copy(a).(*bundle.Bundle)
	out.Indexes = nil

	var err error
	e := &out.Entities
	if e.Individuals, err = apply(e.Individuals, &d.Individuals, "individual", individualID); err != nil {
		return nil, err
	}
	if e.Unions, err = apply(e.Unions, &d.Unions, "union", unionID); err != nil {
		return nil, err
	}
	if e.Media, err = apply(e.Media, &d.Media, "media", mediaID); err != nil {
		return nil, err
	}
	if e.Sources, err = apply(e.Sources, &d.Sources, "source", sourceID); err != nil {
		return nil, err
	}
	if e.Notes, err = apply(e.Notes, &d.Notes, "note", noteID); err != nil {
		return nil, err
	}

	if d.Meta != nil {
		out.Meta = deepcopy.Copy(d.Meta.After).(bundle.Meta)
	}
	if d.Records != nil {
		out.Records = deepcopy.Copy(d.Records.After).([]bundle.RawNode)
	}
	return out, nil
}

func apply[T any](items []T, d *Delta[T], resource string, id func(*T) string) ([]T, error) {
	if _, err := positions(items, resource, id); err != nil {
		return nil, err
	}
	if d.Empty() {
		return items, nil
	}
	index := func(key string) int {
		return slices.IndexFunc(items, func(e T) bool { return id(&e) == key })
	}

	for _, removed := range d.Removed {
		key := id(&removed)
		i := index(key)
		if i < 0 {
			return nil, apperrors.NewNotFound(resource, key)
		}
		items = slices.Delete(items, i, i+1)
	}
	for _, added := range d.Added {
		if index(id(&added)) >= 0 {
			return nil, apperrors.NewConflict(resource, id(&added))
		}
		items = append(items, deepcopy.Copy(added).(T))
	}
	for _, u := range d.Updated {
		i := index(u.ID)
		if i < 0 {
			return nil, apperrors.NewNotFound(resource, u.ID)
		}
		items[i] = deepcopy.Copy(u.After).(T)
	}

	slices.SortStableFunc(items, func(x, y T) int { return strings.Compare(id(&x), id(&y)) })
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}
