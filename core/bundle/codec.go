package bundle

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// Decode reads a bundle from its JSON form. Entity collections are sorted
// by id so lookups work on hand-edited input. A bundle written with another
// major schema version is refused, and so is one that repeats an id
// within a collection.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperrors.NewParse("bundle", "", err)
	}
	if v := b.Meta.SchemaVersion; v != "" && major(v) != major(SchemaVersion) {
		return nil, apperrors.NewUnsupported("bundle schema version", v)
	}
	b.Entities.Sort()
	if coll, id, dup := b.Entities.Duplicate(); dup {
		return nil, apperrors.NewParse("bundle", "", fmt.Errorf("duplicate id %q in %s", id, coll))
	}
	return &b, nil
}

func major(version string) string {
	m, _, _ := strings.Cut(version, ".")
	return m
}
