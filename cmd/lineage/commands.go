package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	"github.com/FocuswithJustin/Lineage/core/diff"
	"github.com/FocuswithJustin/Lineage/core/export"
	"github.com/FocuswithJustin/Lineage/core/hash"
	"github.com/FocuswithJustin/Lineage/core/index"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/sqlite"
	"github.com/FocuswithJustin/Lineage/core/validate"
	"github.com/FocuswithJustin/Lineage/internal/config"
	"github.com/FocuswithJustin/Lineage/internal/validation"
)

// IngestFlags override the [parse] section for commands that read
// interchange files.
type IngestFlags struct {
	Dangling       string `help:"Severity of unresolved pointers: warn or error"`
	Encoding       string `help:"Character set of legacy inputs, e.g. windows-1252"`
	PlaceSeparator string `name:"place-separator" help:"Separator between place jurisdictions"`
}

func (f IngestFlags) apply(c *config.Config) {
	if f.Dangling != "" {
		c.Parse.DanglingPointers = f.Dangling
	}
	if f.Encoding != "" {
		c.Parse.Encoding = f.Encoding
	}
	if f.PlaceSeparator != "" {
		c.Parse.PlaceSeparator = f.PlaceSeparator
	}
}

// ParseCmd ingests a file and prints its bundle.
type ParseCmd struct {
	IngestFlags
	File    string `arg:"" help:"Interchange file to ingest ('-' for stdin)"`
	Out     string `short:"o" help:"Output path (default stdout)" type:"path"`
	NoIndex bool   `name:"no-index" help:"Leave derived indexes out of the bundle"`
}

func (c *ParseCmd) Run(e *env) error {
	if err := e.configure(c.apply); err != nil {
		return err
	}
	b, issues, err := e.load(c.File)
	if err != nil {
		return err
	}
	if !c.NoIndex {
		b = index.Attach(b)
	}
	data, err := (&export.JSON{Pretty: e.cfg.Export.Pretty}).Export(b)
	if err != nil {
		return err
	}
	if err := e.write(c.Out, data); err != nil {
		return err
	}
	return e.report(issues)
}

// ValidateCmd reports the issues found in a file or bundle.
type ValidateCmd struct {
	IngestFlags
	File string `arg:"" help:"Interchange file or bundle JSON to check"`
	JSON bool   `name:"json" help:"Print issues as JSON on stdout"`
}

func (c *ValidateCmd) Run(e *env) error {
	if err := e.configure(c.apply); err != nil {
		return err
	}
	kind, err := inputType(c.File)
	if err != nil {
		return err
	}
	b, issues, err := e.load(c.File)
	if err != nil {
		return err
	}
	if kind == validation.InputBundle {
		issues = validate.All(b, e.cfg.Pipeline().Validate)
	}
	issues = issues.Sorted()

	if c.JSON {
		if issues == nil {
			issues = issue.List{}
		}
		data, err := e.encode(issues)
		if err != nil {
			return err
		}
		if err := e.write("", data); err != nil {
			return err
		}
	} else {
		for _, i := range issues {
			fmt.Fprintln(e.stdout, i)
		}
		fmt.Fprintf(e.stdout, "%d issues (%d errors)\n", len(issues), len(issues.AtLeast(issue.SeverityError)))
	}
	if e.strict && issues.HasErrors() {
		return errStrict
	}
	return nil
}

// HashCmd prints content hashes in the style of sha256sum.
type HashCmd struct {
	IngestFlags
	Files     []string `arg:"" help:"Interchange files or bundle JSON"`
	Algorithm string   `short:"a" help:"Digest function: sha256 or blake3"`
}

func (c *HashCmd) Run(e *env) error {
	err := e.configure(c.apply, func(cfg *config.Config) {
		if c.Algorithm != "" {
			cfg.Hash.Algorithm = c.Algorithm
		}
	})
	if err != nil {
		return err
	}
	var all issue.List
	for _, path := range c.Files {
		b, issues, err := e.load(path)
		if err != nil {
			return err
		}
		all = append(all, issues...)
		sum, err := hash.BundleWith(b, e.cfg.Algorithm())
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s  %s\n", sum, path)
	}
	return e.report(all)
}

// DiffCmd compares two inputs.
type DiffCmd struct {
	IngestFlags
	Old         string `arg:"" help:"Earlier file or bundle"`
	New         string `arg:"" help:"Later file or bundle"`
	Granularity string `short:"g" help:"Update detail: entity or field"`
	Summary     bool   `help:"Print counts instead of the diff"`
	Out         string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *DiffCmd) Run(e *env) error {
	err := e.configure(c.apply, func(cfg *config.Config) {
		if c.Granularity != "" {
			cfg.Diff.Granularity = c.Granularity
		}
	})
	if err != nil {
		return err
	}
	a, issuesA, err := e.load(c.Old)
	if err != nil {
		return err
	}
	b, issuesB, err := e.load(c.New)
	if err != nil {
		return err
	}
	d, err := diff.Diff(a, b, e.cfg.DiffOptions())
	if err != nil {
		return err
	}
	if c.Summary {
		added, removed, updated := d.Counts()
		fmt.Fprintf(e.stdout, "added %d, removed %d, updated %d\n", added, removed, updated)
	} else {
		data, err := e.encode(d)
		if err != nil {
			return err
		}
		if err := e.write(c.Out, data); err != nil {
			return err
		}
	}
	return e.report(append(issuesA, issuesB...))
}

// PatchCmd applies a diff produced by "lineage diff".
type PatchCmd struct {
	IngestFlags
	Base string `arg:"" help:"File or bundle the diff was taken from"`
	Diff string `arg:"" help:"Diff JSON" type:"existingfile"`
	Out  string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *PatchCmd) Run(e *env) error {
	if err := e.configure(c.apply); err != nil {
		return err
	}
	base, issues, err := e.load(c.Base)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(c.Diff)
	if err != nil {
		return fmt.Errorf("failed to read diff: %w", err)
	}
	d, err := diff.Decode(raw)
	if err != nil {
		return err
	}
	patched, err := diff.Patch(base, d)
	if err != nil {
		return err
	}
	data, err := (&export.JSON{Pretty: e.cfg.Export.Pretty, StripIndexes: true}).Export(patched)
	if err != nil {
		return err
	}
	if err := e.write(c.Out, data); err != nil {
		return err
	}
	return e.report(issues)
}

// ExportCmd renders an input through a named exporter.
type ExportCmd struct {
	IngestFlags
	File         string `arg:"" help:"Interchange file or bundle JSON"`
	Format       string `short:"f" help:"Exporter name (json, yaml, xml, people, graph, timeline, gedcom)"`
	Pretty       bool   `help:"Indent structured output" xor:"indent"`
	Compact      bool   `help:"Do not indent structured output" xor:"indent"`
	StripIndexes bool   `name:"strip-indexes" help:"Leave derived indexes out of bundle output"`
	Out          string `short:"o" help:"Output path (default stdout)" type:"path"`
}

func (c *ExportCmd) Run(e *env) error {
	err := e.configure(c.apply, func(cfg *config.Config) {
		if c.Format != "" {
			cfg.Export.Format = c.Format
		}
		if c.Pretty {
			cfg.Export.Pretty = true
		}
		if c.Compact {
			cfg.Export.Pretty = false
		}
		if c.StripIndexes {
			cfg.Export.StripIndexes = true
		}
	})
	if err != nil {
		return err
	}
	exp, err := export.Lookup(e.cfg.Export.Format, e.cfg.ExportOptions())
	if err != nil {
		return err
	}
	b, issues, err := e.load(c.File)
	if err != nil {
		return err
	}
	if b.Indexes == nil && !e.cfg.Export.StripIndexes {
		b = index.Attach(b)
	}
	data, err := exp.Export(b)
	if err != nil {
		return err
	}
	if err := e.write(c.Out, data); err != nil {
		return err
	}
	return e.report(issues)
}

// SearchCmd finds individuals by fuzzy name match.
type SearchCmd struct {
	IngestFlags
	File  string   `arg:"" help:"Interchange file or bundle JSON"`
	Query []string `arg:"" help:"Name words to look for"`
	Limit int      `short:"n" default:"20" help:"Maximum number of results (0 for all)"`
}

func (c *SearchCmd) Run(e *env) error {
	if err := e.configure(c.apply); err != nil {
		return err
	}
	b, _, err := e.load(c.File)
	if err != nil {
		return err
	}
	matches := index.Search(b, b.Indexes, strings.Join(c.Query, " "))
	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}
	if len(matches) == 0 {
		fmt.Fprintln(e.stderr, "no matches")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(e.stdout, "%-12s %-3d %s\n", m.ID, m.Distance, m.Name)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(e.stdout, "lineage version %s (schema %s, sqlite driver %s)\n", version, bundle.SchemaVersion, info.DriverName)
	fmt.Fprintf(e.stdout, "sqlite: %s, %s build\n", info.Package, info.DriverType)
	return nil
}
