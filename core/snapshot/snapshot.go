// Package snapshot keeps canonical bundles over time.
//
// A snapshot is one saved bundle under a label such as a file name or a
// research project. The bundle itself goes into a content-addressed blob
// store as xz-compressed JSON; the history of each label is a table in a
// SQLite database next to it:
//
//	<dir>/history.db
//	<dir>/blobs/sha256/<xx>/<hash>
//	<dir>/blobs/<algorithm>/<xx>/<content hash>.json
//
// The last path is an alias from the bundle's content hash to its blob, so
// a bundle can be loaded by the hash printed when it was saved.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/cache"
	"github.com/FocuswithJustin/Lineage/core/cas"
	"github.com/FocuswithJustin/Lineage/core/diff"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/hash"
	"github.com/FocuswithJustin/Lineage/core/sqlite"
	"github.com/FocuswithJustin/Lineage/internal/logging"
)

// now is a variable to allow tests to pin creation times.
var now = time.Now

// newID is a variable to allow tests to pin snapshot ids.
var newID = uuid.NewString

// DatabaseName is the history database file inside the store directory.
const DatabaseName = "history.db"

// migrations are the history schema steps; see sqlite.Migrate.
var migrations = []string{
	`CREATE TABLE snapshots (
		id           TEXT PRIMARY KEY,
		label        TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		algorithm    TEXT NOT NULL,
		blob_hash    TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		individuals  INTEGER NOT NULL DEFAULT 0,
		unions       INTEGER NOT NULL DEFAULT 0,
		size_bytes   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX snapshots_label ON snapshots (label);`,
}

// Snapshot is one row of history.
type Snapshot struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	ContentHash string    `json:"content_hash"`
	Algorithm   string    `json:"algorithm"`
	BlobHash    string    `json:"blob_hash"`
	CreatedAt   time.Time `json:"created_at"`
	Individuals int       `json:"individuals"`
	Unions      int       `json:"unions"`
	// SizeBytes is the size of the uncompressed JSON.
	SizeBytes int64 `json:"size_bytes"`
}

// Option configures Open.
type Option func(*Store)

// WithAlgorithm selects the content hash algorithm for new snapshots.
func WithAlgorithm(alg hash.Algorithm) Option {
	return func(s *Store) { s.alg = alg }
}

// WithCacheSize sets how many loaded bundles are kept in memory; see
// cache.NewBundles.
func WithCacheSize(n int) Option {
	return func(s *Store) { s.cacheSize = n }
}

// Store is an open snapshot directory. It is safe for concurrent use.
type Store struct {
	dir    string
	db     *sql.DB
	blobs  *cas.Store
	alg    hash.Algorithm
	loaded *cache.Bundles

	cacheSize int
	readOnly  bool
}

// Open opens the snapshot store in dir, creating it when needed.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewIO("create", dir, err)
	}
	blobs, err := cas.NewStore(dir)
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(filepath.Join(dir, DatabaseName))
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(context.Background(), db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{dir: dir, db: db, blobs: blobs, alg: hash.SHA256}
	for _, opt := range opts {
		opt(s)
	}
	s.loaded = cache.NewBundles(s.cacheSize)
	return s, nil
}

// OpenReadOnly opens an existing snapshot store for reading. It creates
// nothing and refuses to Save; a directory without a history database
// is reported as an *errors.NotFoundError.
func OpenReadOnly(dir string, opts ...Option) (*Store, error) {
	path := filepath.Join(dir, DatabaseName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("snapshot store", dir)
		}
		return nil, apperrors.NewIO("stat", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}

	s := &Store{dir: dir, db: db, blobs: cas.OpenExisting(dir), alg: hash.SHA256, readOnly: true}
	for _, opt := range opts {
		opt(s)
	}
	s.loaded = cache.NewBundles(s.cacheSize)
	return s, nil
}

// Close closes the history database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CacheStats reports on the in-memory cache of loaded bundles.
func (s *Store) CacheStats() cache.Stats {
	return s.loaded.Stats()
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save records b under label. When the latest snapshot of the label already
// has the same content hash, nothing is written and that snapshot is
// returned.
func (s *Store) Save(ctx context.Context, label string, b *bundle.Bundle) (*Snapshot, error) {
	if s.readOnly {
		return nil, apperrors.NewUnsupported("snapshot save", "store is open read-only")
	}
	if label == "" {
		return nil, apperrors.NewValidation("label", label, "snapshot label must not be empty")
	}
	digest, err := hash.BundleWith(b, s.alg)
	if err != nil {
		return nil, err
	}

	latest, err := s.Latest(ctx, label)
	switch {
	case err == nil && latest.ContentHash == digest && latest.Algorithm == string(s.alg):
		logging.SnapshotSaved(ctx, latest.ID, label, digest, false)
		return latest, nil
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	data, err := json.Marshal(b.WithoutIndexes())
	if err != nil {
		return nil, apperrors.Wrap(err, "encode snapshot")
	}
	compressed, err := compress(data)
	if err != nil {
		return nil, err
	}
	blobHash, err := s.blobs.Put(compressed)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Link(string(s.alg), digest, blobHash); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:          newID(),
		Label:       label,
		ContentHash: digest,
		Algorithm:   string(s.alg),
		BlobHash:    blobHash,
		CreatedAt:   now().UTC().Truncate(time.Millisecond),
		Individuals: len(b.Entities.Individuals),
		Unions:      len(b.Entities.Unions),
		SizeBytes:   int64(len(data)),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, label, content_hash, algorithm, blob_hash, created_at, individuals, unions, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Label, snap.ContentHash, snap.Algorithm, snap.BlobHash,
		snap.CreatedAt.Format(time.RFC3339Nano), snap.Individuals, snap.Unions, snap.SizeBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "record snapshot")
	}

	logging.SnapshotSaved(ctx, snap.ID, label, digest, true, "blob", blobHash, "bytes", snap.SizeBytes)
	return snap, nil
}

const selectColumns = `SELECT id, label, content_hash, algorithm, blob_hash, created_at, individuals, unions, size_bytes FROM snapshots`

// Get returns the history row of a snapshot.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	rows, err := s.query(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("snapshot", id)
	}
	return &rows[0], nil
}

// History returns the snapshots of label, oldest first.
func (s *Store) History(ctx context.Context, label string) ([]Snapshot, error) {
	return s.query(ctx, selectColumns+` WHERE label = ? ORDER BY rowid`, label)
}

// Latest returns the most recent snapshot of label.
func (s *Store) Latest(ctx context.Context, label string) (*Snapshot, error) {
	rows, err := s.query(ctx, selectColumns+` WHERE label = ? ORDER BY rowid DESC LIMIT 1`, label)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("snapshot label", label)
	}
	return &rows[0], nil
}

// Labels returns every label with at least one snapshot, sorted.
func (s *Store) Labels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT label FROM snapshots ORDER BY label`)
	if err != nil {
		return nil, apperrors.Wrap(err, "list labels")
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, apperrors.Wrap(err, "list labels")
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Load returns the bundle saved as snapshot id. The bundle is checked
// against the content hash recorded when it was saved.
func (s *Store) Load(ctx context.Context, id string) (*bundle.Bundle, error) {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.load(snap)
}

func (s *Store) load(snap *Snapshot) (*bundle.Bundle, error) {
	alg, err := hash.ParseAlgorithm(snap.Algorithm)
	if err != nil {
		return nil, err
	}
	return s.fetch(alg, snap.ContentHash, "snapshot "+snap.ID, func() ([]byte, error) {
		return s.blobs.Get(snap.BlobHash)
	})
}

// LoadHash returns the bundle whose content hash under alg is digest, as
// printed by a save. It needs no history row, only the blob and its alias.
func (s *Store) LoadHash(ctx context.Context, alg hash.Algorithm, digest string) (*bundle.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fetch(alg, digest, string(alg)+":"+digest, func() ([]byte, error) {
		return s.blobs.GetByAlias(string(alg), digest)
	})
}

// LoadRef loads a snapshot by id, or by content hash written as
// "<algorithm>:<hash>" or as a bare hash under the store's algorithm.
func (s *Store) LoadRef(ctx context.Context, ref string) (*bundle.Bundle, error) {
	snap, err := s.Get(ctx, ref)
	if err == nil {
		return s.load(snap)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	alg, digest := s.alg, ref
	if name, rest, ok := strings.Cut(ref, ":"); ok {
		parsed, perr := hash.ParseAlgorithm(name)
		if perr != nil {
			return nil, err
		}
		alg, digest = parsed, rest
	}
	if !cas.ValidHash(digest) {
		return nil, err
	}
	return s.LoadHash(ctx, alg, digest)
}

// fetch returns the bundle with the given content hash, reading its blob
// through get on a cache miss. The decoded bundle must hash to digest.
func (s *Store) fetch(alg hash.Algorithm, digest, what string, get func() ([]byte, error)) (*bundle.Bundle, error) {
	key := string(alg) + ":" + digest
	if b, ok := s.loaded.Get(key); ok {
		return b, nil
	}

	compressed, err := get()
	if err != nil {
		return nil, err
	}
	data, err := decompress(compressed)
	if err != nil {
		return nil, apperrors.NewParse("snapshot", what, err)
	}
	b, err := bundle.Decode(data)
	if err != nil {
		return nil, err
	}

	got, err := hash.BundleWith(b, alg)
	if err != nil {
		return nil, err
	}
	if got != digest {
		return nil, fmt.Errorf("%w: %s hashes to %s, recorded %s", cas.ErrCorrupt, what, got, digest)
	}
	s.loaded.Put(key, b)
	return b, nil
}

// Diff compares two snapshots. Each side is a snapshot id or a content
// hash; see LoadRef.
func (s *Store) Diff(ctx context.Context, from, to string, opts diff.Options) (*diff.Result, error) {
	a, err := s.LoadRef(ctx, from)
	if err != nil {
		return nil, err
	}
	b, err := s.LoadRef(ctx, to)
	if err != nil {
		return nil, err
	}
	return diff.Diff(a, b, opts)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			created string
		)
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.ContentHash, &snap.Algorithm, &snap.BlobHash,
			&created, &snap.Individuals, &snap.Unions, &snap.SizeBytes); err != nil {
			return nil, apperrors.Wrap(err, "scan snapshot")
		}
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, apperrors.NewParse("snapshot time", snap.ID, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "query snapshots")
	}
	return out, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, apperrors.Wrap(err, "compress snapshot")
	}
	if _, err := w.Write(data); err != nil {
		return nil, apperrors.Wrap(err, "compress snapshot")
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.Wrap(err, "compress snapshot")
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
