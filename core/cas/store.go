// Package cas stores snapshot blobs by the SHA-256 of their bytes.
//
// Identical content is written once. Every read checks the bytes against
// the hash they were stored under, so a damaged blob is reported instead of
// decoded.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrInvalidHash is returned when a hash string is not a lowercase 64-digit
// hex string.
var ErrInvalidHash = fmt.Errorf("%w: invalid hash format", apperrors.ErrInvalidInput)

// ErrCorrupt is returned when stored bytes no longer match their hash.
var ErrCorrupt = errors.New("blob content does not match its hash")

var hexDigest = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a content-addressed blob directory.
type Store struct {
	root string
}

// NewStore opens the store rooted at root, creating it if needed.
func NewStore(root string) (*Store, error) {
	blobDir := filepath.Join(root, "blobs", "sha256")
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, apperrors.NewIO("create", blobDir, err)
	}
	return &Store{root: root}, nil
}

// OpenExisting returns the store rooted at root without creating any
// directories. Reads of a store that was never written report not found.
func OpenExisting(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory the store lives in.
func (s *Store) Root() string {
	return s.root
}

// Put stores data and returns its hash. Storing content that is already
// present is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	blobPath := s.pathForHash(hash)
	if _, err := os.Stat(blobPath); err == nil {
		return hash, nil
	}
	if err := writeAtomic(blobPath, ".blob-*", data); err != nil {
		return "", err
	}
	return hash, nil
}

// Get returns the blob stored under hash. A missing blob yields an
// *errors.NotFoundError; bytes that do not hash back to hash yield
// ErrCorrupt.
func (s *Store) Get(hash string) ([]byte, error) {
	if !ValidHash(hash) {
		return nil, ErrInvalidHash
	}
	blobPath := s.pathForHash(hash)
	data, err := os.ReadFile(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("blob", hash)
		}
		return nil, apperrors.NewIO("read", blobPath, err)
	}
	if Hash(data) != hash {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, hash)
	}
	return data, nil
}

// Has reports whether a blob with the given hash is stored.
func (s *Store) Has(hash string) bool {
	if !ValidHash(hash) {
		return false
	}
	_, err := os.Stat(s.pathForHash(hash))
	return err == nil
}

// pathForHash returns <root>/blobs/sha256/<first2>/<hash>.
func (s *Store) pathForHash(hash string) string {
	return filepath.Join(s.root, "blobs", "sha256", hash[:2], hash)
}

// ValidHash reports whether hash is 64 lowercase hex digits.
func ValidHash(hash string) bool {
	return hexDigest.MatchString(hash)
}

// Hash computes the SHA-256 hash of data without storing it.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// writeAtomic writes data to path through a temp file in the same
// directory and a rename.
func writeAtomic(path, pattern string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewIO("create", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return apperrors.NewIO("create", dir, err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return apperrors.NewIO("write", path, err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return apperrors.NewIO("close", path, err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return apperrors.NewIO("rename", path, err)
	}
	return nil
}
