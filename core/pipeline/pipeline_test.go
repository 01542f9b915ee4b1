package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ulikunitz/xz"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/source"
	"github.com/FocuswithJustin/Lineage/core/transform"
)

const scenarioA = `0 @I1@ INDI
1 NAME John /Doe/
1 SEX M
1 BIRT
2 DATE 12 JUN 1850
2 PLAC Paris, France
`

func pinNow(t *testing.T) time.Time {
	t.Helper()
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	old := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = old })
	return fixed
}

func kinds(l issue.List) string {
	var out []string
	for _, i := range l {
		out = append(out, string(i.Kind))
	}
	return strings.Join(out, ",")
}

func TestIngestString(t *testing.T) {
	fixed := pinNow(t)

	res, err := IngestString(context.Background(), scenarioA, Options{})
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if len(res.Issues) != 0 {
		t.Errorf("Issues = %v, want none", res.Issues)
	}
	if res.Records != 1 {
		t.Errorf("Records = %d, want 1", res.Records)
	}

	sum := sha256.Sum256([]byte(scenarioA))
	if got, want := res.Bundle.Meta.SourceHash, hex.EncodeToString(sum[:]); got != want {
		t.Errorf("SourceHash = %q, want %q", got, want)
	}
	if !res.Bundle.Meta.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", res.Bundle.Meta.GeneratedAt, fixed)
	}
	if got := res.Bundle.Entities.Individuals[0].PrimaryName().Full; got != "John Doe" {
		t.Errorf("name = %q, want John Doe", got)
	}
}

func TestIssueOrder(t *testing.T) {
	input := "0 @I1@ INDI\n1 FAMS @F9@\nnot a line\n0 TRLR\n"

	res, err := IngestString(context.Background(), input, Options{})
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if got, want := kinds(res.Issues), "malformed-line,dangling-pointer,missing-name"; got != want {
		t.Errorf("issues = %s, want %s", got, want)
	}

	res, err = IngestString(context.Background(), input, Options{SkipValidation: true})
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if got, want := kinds(res.Issues), "malformed-line,dangling-pointer"; got != want {
		t.Errorf("issues without validation = %s, want %s", got, want)
	}
}

func TestDanglingPolicy(t *testing.T) {
	input := "0 @I1@ INDI\n1 NAME A /B/\n1 FAMC @F1@\n"

	res, err := IngestString(context.Background(), input, Options{})
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if res.Issues.HasErrors() {
		t.Errorf("default policy produced errors: %v", res.Issues)
	}

	opts := Options{Transform: transform.Options{Dangling: issue.SeverityError}}
	res, err = IngestString(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if n := len(res.Issues.Filter(issue.KindDanglingPointer)); n != 1 {
		t.Errorf("dangling issues = %d, want 1", n)
	}
	if !res.Issues.HasErrors() {
		t.Error("error policy should produce an error-severity issue")
	}
}

func TestIngestFileCompressed(t *testing.T) {
	pinNow(t)
	path := filepath.Join(t.TempDir(), "tree.ged.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz.NewWriter failed: %v", err)
	}
	if _, err := io.WriteString(w, scenarioA); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	res, err := IngestFile(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if len(res.Bundle.Entities.Individuals) != 1 {
		t.Errorf("individuals = %d, want 1", len(res.Bundle.Entities.Individuals))
	}
}

func TestIngestFileMissing(t *testing.T) {
	_, err := IngestFile(context.Background(), filepath.Join(t.TempDir(), "absent.ged"), Options{})
	var ioErr *apperrors.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want *IOError", err)
	}
}

func TestIngestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IngestString(ctx, scenarioA, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type failingReader struct {
	data string
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("disk gone")
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestIngestReadFailure(t *testing.T) {
	r, err := source.FromReader(&failingReader{data: "0 @I1@ INDI\n1 NAME A /B/\n"})
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}

	_, err = Ingest(context.Background(), r, Options{})
	var ioErr *apperrors.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want *IOError", err)
	}
	if ioErr.Line != 2 {
		t.Errorf("Line = %d, want 2", ioErr.Line)
	}
}

func TestEncoding(t *testing.T) {
	// "Müller" in windows-1252.
	input := "0 @I1@ INDI\n1 NAME Hans /M\xfcller/\n"

	res, err := IngestString(context.Background(), input, Options{Encoding: "windows-1252"})
	if err != nil {
		t.Fatalf("IngestString failed: %v", err)
	}
	if got := res.Bundle.Entities.Individuals[0].PrimaryName().Surname; got != "Müller" {
		t.Errorf("Surname = %q, want Müller", got)
	}
}
