// Package pipeline runs a complete ingest: lines from a source are lexed,
// parsed into records, transformed into a canonical bundle and validated.
//
// Only I/O failures and cancellation stop a run. Every other finding is
// returned with the bundle as an issue.
package pipeline

import (
	"context"
	"time"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/parser"
	"github.com/FocuswithJustin/Lineage/core/source"
	"github.com/FocuswithJustin/Lineage/core/transform"
	"github.com/FocuswithJustin/Lineage/core/validate"
	"github.com/FocuswithJustin/Lineage/internal/logging"
)

// now is a variable to allow tests to pin the generation time.
var now = time.Now

// Options configures an ingest run.
type Options struct {
	Transform transform.Options
	Validate  validate.Options
	// Encoding names a legacy character set for file and string inputs.
	Encoding string
	// SkipValidation returns only reader, parser and transform issues.
	SkipValidation bool
}

// Result is the outcome of an ingest run.
type Result struct {
	Bundle *bundle.Bundle
	Issues issue.List
	// Records is the number of top-level records read.
	Records int
}

// Ingest reads r to the end and builds a bundle from it. The caller keeps
// ownership of r. The context is checked between records; a cancelled run
// returns the context's error and no result.
func Ingest(ctx context.Context, r *source.Reader, opts Options) (*Result, error) {
	start := now()

	p := parser.FromLines(r)
	forest := &parser.Forest{Index: p.Index()}
	for n, err := range p.Records() {
		if err != nil {
			logging.OperationError(ctx, "parse", err, "line", r.Line())
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		forest.Roots = append(forest.Roots, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topts := opts.Transform
	topts.SourceHash = r.Sum()
	if topts.GeneratedAt.IsZero() {
		topts.GeneratedAt = start.UTC().Truncate(time.Second)
	}
	b, found := transform.Build(forest, topts)

	issues := p.Issues()
	issues = append(issues, found...)
	if !opts.SkipValidation {
		vopts := opts.Validate
		vopts.Dangling = topts.WithDefaults().Dangling
		issues = append(issues, validate.Ingest(b, vopts)...)
	}

	for _, i := range issues {
		logging.IssueRecorded(ctx, string(i.Kind), i.Severity.String(), i.EntityID, i.Line, i.Message)
	}
	logging.ParseSummary(ctx, len(forest.Roots), len(b.Entities.Individuals), len(b.Entities.Unions),
		len(issues), now().Sub(start), "lines", r.Line(), "errors", len(issues.AtLeast(issue.SeverityError)))

	return &Result{Bundle: b, Issues: issues, Records: len(forest.Roots)}, nil
}

// IngestFile opens path and ingests it. Compressed .xz and .gz files are
// read transparently.
func IngestFile(ctx context.Context, path string, opts Options) (*Result, error) {
	r, err := source.Open(path, sourceOptions(opts)...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Ingest(logging.WithSource(ctx, path), r, opts)
}

// IngestString ingests in-memory text.
func IngestString(ctx context.Context, text string, opts Options) (*Result, error) {
	r, err := source.FromString(text, sourceOptions(opts)...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Ingest(ctx, r, opts)
}

func sourceOptions(opts Options) []source.Option {
	if opts.Encoding == "" {
		return nil
	}
	return []source.Option{source.WithEncoding(opts.Encoding)}
}
