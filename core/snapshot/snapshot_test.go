package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/cas"
	"github.com/FocuswithJustin/Lineage/core/diff"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/hash"
	"github.com/FocuswithJustin/Lineage/core/index"
)

func sample(names ...string) *bundle.Bundle {
	b := &bundle.Bundle{Meta: bundle.Meta{SchemaVersion: bundle.SchemaVersion, SourceHash: "abc"}}
	for i, n := range names {
		b.Entities.Individuals = append(b.Entities.Individuals, bundle.Individual{
			ID:    fmt.Sprintf("I%d", i+1),
			Names: []bundle.Name{{Raw: n, Full: n}},
			Facts: []bundle.Fact{{Type: "BIRT", Date: &bundle.Date{Kind: "exact", ISO: "1850", Raw: "1850"}}},
		})
	}
	return b
}

// pin makes ids and times predictable: s1, s2, ... one minute apart.
func pin(t *testing.T) {
	t.Helper()
	oldNow, oldID := now, newID
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	calls, ids := 0, 0
	now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	newID = func() string {
		ids++
		return fmt.Sprintf("s%d", ids)
	}
	t.Cleanup(func() { now, newID = oldNow, oldID })
}

func open(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t)

	b := index.Attach(sample("John Doe", "Jane Roe"))
	snap, err := s.Save(ctx, "family", b)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	want, _ := hash.Bundle(b)
	if snap.ID != "s1" || snap.Label != "family" || snap.ContentHash != want || snap.Algorithm != "sha256" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Individuals != 2 || snap.Unions != 0 || snap.SizeBytes == 0 {
		t.Errorf("counts = %d/%d/%d", snap.Individuals, snap.Unions, snap.SizeBytes)
	}
	if !snap.CreatedAt.Equal(time.Date(2026, 10, 16, 9, 1, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", snap.CreatedAt)
	}

	loaded, err := s.Load(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, _ := hash.Bundle(loaded); got != want {
		t.Errorf("loaded hash = %s, want %s", got, want)
	}
	if loaded.Indexes != nil {
		t.Error("snapshots should not store indexes")
	}
	if loaded.Meta.SourceHash != "abc" {
		t.Errorf("SourceHash = %q, want abc", loaded.Meta.SourceHash)
	}

	got, err := s.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Errorf("Get().CreatedAt = %v, want %v", got.CreatedAt, snap.CreatedAt)
	}
	got.CreatedAt = snap.CreatedAt
	if *got != *snap {
		t.Errorf("Get() = %+v, want %+v", got, snap)
	}
}

func TestSaveUnchangedIsNoop(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t)

	first, err := s.Save(ctx, "family", sample("John Doe"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Different metadata, same content.
	again := sample("John Doe")
	again.Meta.SourceHash = "other"
	second, err := s.Save(ctx, "family", index.Attach(again))
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("unchanged save created %s, want %s", second.ID, first.ID)
	}

	history, err := s.History(ctx, "family")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d rows, want 1", len(history))
	}

	// The same content under another label is recorded for that label.
	other, err := s.Save(ctx, "copy", sample("John Doe"))
	if err != nil {
		t.Fatalf("Save(copy) failed: %v", err)
	}
	if other.ID == first.ID || other.BlobHash != first.BlobHash {
		t.Errorf("copy = %+v, want a new row sharing blob %s", other, first.BlobHash)
	}
}

func TestHistoryAndLatest(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t)

	for _, names := range [][]string{{"A"}, {"A", "B"}, {"A"}} {
		if _, err := s.Save(ctx, "tree", sample(names...)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := s.Save(ctx, "other", sample("Z")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	history, err := s.History(ctx, "tree")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	var ids []string
	for _, h := range history {
		ids = append(ids, h.ID)
	}
	if fmt.Sprint(ids) != "[s1 s2 s3]" {
		t.Errorf("history ids = %v, want [s1 s2 s3]", ids)
	}
	// Returning to an earlier state is a new entry, and shares its blob.
	if history[2].BlobHash != history[0].BlobHash {
		t.Error("identical content should share a blob")
	}

	latest, err := s.Latest(ctx, "tree")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != "s3" {
		t.Errorf("Latest() = %s, want s3", latest.ID)
	}

	labels, err := s.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if fmt.Sprint(labels) != "[other tree]" {
		t.Errorf("Labels() = %v", labels)
	}

	if empty, err := s.History(ctx, "none"); err != nil || len(empty) != 0 {
		t.Errorf("History(none) = %v, %v", empty, err)
	}
}

func TestDiff(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t)

	a, _ := s.Save(ctx, "tree", sample("A"))
	b, _ := s.Save(ctx, "tree", sample("A", "B"))

	d, err := s.Diff(ctx, a.ID, b.ID, diff.Options{})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	added, removed, updated := d.Counts()
	if added != 1 || removed != 0 || updated != 0 {
		t.Errorf("Counts() = %d, %d, %d; want 1, 0, 0", added, removed, updated)
	}
	if d.Individuals.Added[0].ID != "I2" {
		t.Errorf("added = %+v", d.Individuals.Added)
	}

	if _, err := s.Diff(ctx, a.ID, "missing", diff.Options{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Diff(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoadByContentHash(t *testing.T) {
	pin(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, _ := s.Save(ctx, "tree", sample("A"))
	b, _ := s.Save(ctx, "tree", sample("A", "B"))
	s.Close()

	// A fresh store with the history removed still finds bundles by hash.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.db.Exec(`DELETE FROM snapshots`); err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}

	for _, ref := range []string{a.ContentHash, "sha256:" + a.ContentHash} {
		got, err := s.LoadRef(ctx, ref)
		if err != nil {
			t.Fatalf("LoadRef(%q) failed: %v", ref, err)
		}
		if h, _ := hash.Bundle(got); h != a.ContentHash {
			t.Errorf("LoadRef(%q) hash = %s, want %s", ref, h, a.ContentHash)
		}
	}

	d, err := s.Diff(ctx, a.ContentHash, "sha256:"+b.ContentHash, diff.Options{})
	if err != nil {
		t.Fatalf("Diff by hash failed: %v", err)
	}
	if added, _, _ := d.Counts(); added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	tests := []struct {
		name string
		ref  string
	}{
		{"unknown id", "s99"},
		{"unknown hash", strings.Repeat("0", 64)},
		{"unknown algorithm", "md5:" + a.ContentHash},
		{"no alias under algorithm", "blake3:" + a.ContentHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.LoadRef(ctx, tt.ref); !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("LoadRef(%q) error = %v, want ErrNotFound", tt.ref, err)
			}
		})
	}
}

func TestOpenReadOnly(t *testing.T) {
	pin(t)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := OpenReadOnly(filepath.Join(dir, "absent")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("OpenReadOnly(absent) error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "absent")); !os.IsNotExist(err) {
		t.Errorf("OpenReadOnly created the directory: %v", err)
	}

	rw, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	snap, err := rw.Save(ctx, "tree", sample("A"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	rw.Close()

	s, err := OpenReadOnly(dir)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer s.Close()

	if history, err := s.History(ctx, "tree"); err != nil || len(history) != 1 {
		t.Errorf("History() = %v, %v; want one row", history, err)
	}
	if _, err := s.LoadRef(ctx, snap.ContentHash); err != nil {
		t.Errorf("LoadRef() error = %v", err)
	}
	if _, err := s.Save(ctx, "tree", sample("A", "B")); !errors.Is(err, apperrors.ErrUnsupported) {
		t.Errorf("Save() on read-only store error = %v, want ErrUnsupported", err)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Latest(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestEmptyLabel(t *testing.T) {
	s := open(t)
	var ve *apperrors.ValidationError
	if _, err := s.Save(context.Background(), "", sample("A")); !errors.As(err, &ve) {
		t.Errorf("Save(\"\") error = %v, want *ValidationError", err)
	}
}

func TestBlake3(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t, WithAlgorithm(hash.BLAKE3))

	b := sample("A")
	snap, err := s.Save(ctx, "tree", b)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want, _ := hash.BundleWith(b, hash.BLAKE3)
	if snap.Algorithm != "blake3" || snap.ContentHash != want {
		t.Errorf("snapshot = %+v, want blake3 %s", snap, want)
	}

	blobs, _ := cas.NewStore(s.Dir())
	blob, err := blobs.Resolve("blake3", want)
	if err != nil || blob != snap.BlobHash {
		t.Errorf("Resolve() = %s, %v; want %s", blob, err, snap.BlobHash)
	}
	if _, err := s.Load(ctx, snap.ID); err != nil {
		t.Errorf("Load failed: %v", err)
	}
}

func TestReopen(t *testing.T) {
	pin(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	snap, err := s.Save(ctx, "tree", sample("A"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(filepath.Join(dir, DatabaseName)); err != nil {
		t.Errorf("history database missing: %v", err)
	}
	if _, err := s.Load(ctx, snap.ID); err != nil {
		t.Errorf("Load after reopen failed: %v", err)
	}
	again, err := s.Save(ctx, "tree", sample("A"))
	if err != nil || again.ID != snap.ID {
		t.Errorf("Save after reopen = %+v, %v; want no-op", again, err)
	}
}

func TestLoadDetectsDamage(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t)

	snap, err := s.Save(ctx, "tree", sample("A"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A blob whose bytes are intact but whose bundle does not match the
	// recorded content hash.
	other, err := s.Save(ctx, "other", sample("B"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE snapshots SET blob_hash = ? WHERE id = ?`, other.BlobHash, snap.ID); err != nil {
		t.Fatalf("UPDATE failed: %v", err)
	}
	if _, err := s.Load(ctx, snap.ID); !errors.Is(err, cas.ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}

	// A blob that is not xz data.
	junk, _ := s.blobs.Put([]byte("not xz"))
	if _, err := s.db.Exec(`UPDATE snapshots SET blob_hash = ? WHERE id = ?`, junk, snap.ID); err != nil {
		t.Fatalf("UPDATE failed: %v", err)
	}
	var pe *apperrors.ParseError
	if _, err := s.Load(ctx, snap.ID); !errors.As(err, &pe) {
		t.Errorf("Load() error = %v, want *ParseError", err)
	}
}

func TestLoadUsesCache(t *testing.T) {
	pin(t)
	ctx := context.Background()
	s := open(t, WithCacheSize(2))

	snap, err := s.Save(ctx, "tree", sample("A"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, err := s.Load(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	first.Entities.Individuals[0].Sex = "F"

	second, err := s.Load(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if second.Entities.Individuals[0].Sex != "" {
		t.Errorf("Sex = %q, want the cached bundle unaffected by callers", second.Entities.Individuals[0].Sex)
	}
	if stats := s.CacheStats(); stats.Hits != 1 || stats.Misses != 1 || stats.MaxSize != 2 {
		t.Errorf("CacheStats() = %+v", stats)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(`{"meta":{"schema_version":"1.0.0"},"entities":{}}`)
	packed, err := compress(data)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	got, err := decompress(packed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("decompress() = %s", got)
	}
}
