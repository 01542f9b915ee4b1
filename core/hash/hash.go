// Package hash computes deterministic content hashes of bundles.
//
// The hash covers what a bundle says about its people, not where or when
// it was produced: the schema version, the entities and the pass-through
// records. Indexes, generation time, source hash and the source header are
// excluded, so re-ingesting the same data or attaching indexes never
// changes it.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// jsonMarshal is a variable to allow testing of marshal errors.
var jsonMarshal = json.Marshal

// Algorithm names a digest function.
type Algorithm string

// Supported algorithms.
const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm validates an algorithm name. The empty name means SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	}
	return "", apperrors.NewUnsupported("hash algorithm", name)
}

// Sum returns the lowercase hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	if a == BLAKE3 {
		h := blake3.Sum256(data)
		return hex.EncodeToString(h[:])
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// hashed is the part of a bundle that takes part in hashing.
type hashed struct {
	SchemaVersion string           `json:"schema_version"`
	Entities      bundle.Entities  `json:"entities"`
	Records       []bundle.RawNode `json:"records,omitempty"`
}

// Bundle returns the SHA-256 hash of b.
func Bundle(b *bundle.Bundle) (string, error) {
	return BundleWith(b, SHA256)
}

// BundleWith returns the hash of b under the given algorithm.
func BundleWith(b *bundle.Bundle, alg Algorithm) (string, error) {
	data, err := CanonicalBundle(b)
	if err != nil {
		return "", err
	}
	return alg.Sum(data), nil
}

// CanonicalBundle returns the canonical serialization that Bundle hashes.
func CanonicalBundle(b *bundle.Bundle) ([]byte, error) {
	e := b.Entities
	e.Individuals = slices.Clone(e.Individuals)
	e.Unions = slices.Clone(e.Unions)
	e.Media = slices.Clone(e.Media)
	e.Sources = slices.Clone(e.Sources)
	e.Notes = slices.Clone(e.Notes)
	e.Sort()

	return Canonical(hashed{
		SchemaVersion: b.Meta.SchemaVersion,
		Entities:      e,
		Records:       b.Records,
	})
}

// Canonical serializes v as compact JSON with object keys sorted at every
// depth. Numbers keep their textual form.
func Canonical(v any) ([]byte, error) {
	data, err := jsonMarshal(v)
	if err != nil {
		return nil, apperrors.Wrap(err, "canonical encoding")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, apperrors.Wrap(err, "canonical encoding")
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, apperrors.Wrap(err, "canonical encoding")
	}
	return out, nil
}
