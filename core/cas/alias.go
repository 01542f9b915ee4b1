package cas

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// aliasPointer is the body of an alias file.
type aliasPointer struct {
	SHA256 string `json:"sha256"`
}

var aliasName = regexp.MustCompile(`^[a-z0-9]+$`)

// Link records that digest, computed with the named algorithm, identifies
// the blob stored under blobHash. Snapshots use it to find a blob by the
// content hash of the bundle inside it. Linking an existing alias again is
// a no-op; the first target wins.
func (s *Store) Link(algorithm, digest, blobHash string) error {
	if !aliasName.MatchString(algorithm) || !ValidHash(digest) || !ValidHash(blobHash) {
		return ErrInvalidHash
	}
	if !s.Has(blobHash) {
		return apperrors.NewNotFound("blob", blobHash)
	}

	path := s.pathForAlias(algorithm, digest)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.Marshal(aliasPointer{SHA256: blobHash})
	if err != nil {
		return apperrors.Wrap(err, "encode alias")
	}
	return writeAtomic(path, ".alias-*", data)
}

// Resolve returns the blob hash an alias points at.
func (s *Store) Resolve(algorithm, digest string) (string, error) {
	if !aliasName.MatchString(algorithm) || !ValidHash(digest) {
		return "", ErrInvalidHash
	}
	path := s.pathForAlias(algorithm, digest)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFound(algorithm+" alias", digest)
		}
		return "", apperrors.NewIO("read", path, err)
	}

	var p aliasPointer
	if err := json.Unmarshal(data, &p); err != nil {
		return "", apperrors.NewParse("alias", path, err)
	}
	if !ValidHash(p.SHA256) {
		return "", apperrors.NewParse("alias", path, ErrInvalidHash)
	}
	return p.SHA256, nil
}

// GetByAlias resolves an alias and returns the blob it points at.
func (s *Store) GetByAlias(algorithm, digest string) ([]byte, error) {
	hash, err := s.Resolve(algorithm, digest)
	if err != nil {
		return nil, err
	}
	return s.Get(hash)
}

// pathForAlias returns <root>/blobs/<algorithm>/<first2>/<digest>.json.
func (s *Store) pathForAlias(algorithm, digest string) string {
	return filepath.Join(s.root, "blobs", algorithm, digest[:2], digest+".json")
}
