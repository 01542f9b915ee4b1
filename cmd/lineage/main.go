// Command lineage ingests genealogical interchange files into canonical
// bundles and works with them: validation, hashing, diff and patch,
// export, name search and snapshot history.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/tidwall/pretty"

	"github.com/FocuswithJustin/Lineage/core/bundle"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/pipeline"
	"github.com/FocuswithJustin/Lineage/core/source"
	"github.com/FocuswithJustin/Lineage/internal/config"
	"github.com/FocuswithJustin/Lineage/internal/logging"
	"github.com/FocuswithJustin/Lineage/internal/validation"
)

const version = "0.1.0"

// errStrict is returned when --strict is set and error-severity issues
// were reported. The issues themselves are already on stderr.
var errStrict = errors.New("error-severity issues found")

// CLI defines the command-line interface for lineage.
type CLI struct {
	Config    string `name:"config" short:"c" help:"Configuration file (default $XDG_CONFIG_HOME/lineage/config.toml)" type:"path"`
	Strict    bool   `help:"Exit with status 1 when error-severity issues are found"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text, json"`

	Parse    ParseCmd      `cmd:"" help:"Ingest a file and print its canonical bundle"`
	Validate ValidateCmd   `cmd:"" help:"Report issues in a file or bundle"`
	Hash     HashCmd       `cmd:"" help:"Print the content hash of files or bundles"`
	Diff     DiffCmd       `cmd:"" help:"Compare two files or bundles"`
	Patch    PatchCmd      `cmd:"" help:"Apply a diff to a bundle"`
	Export   ExportCmd     `cmd:"" help:"Render a file or bundle in another format"`
	Search   SearchCmd     `cmd:"" help:"Find individuals by name"`
	Snapshot SnapshotGroup `cmd:"" help:"Snapshot history operations"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// env is bound into every command's Run method.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	strict bool
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// configure applies command-line overrides to the loaded configuration,
// validates the result and sets up logging.
func (e *env) configure(overrides ...func(*config.Config)) error {
	for _, o := range overrides {
		o(e.cfg)
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	level, format := e.cfg.Logging()
	logging.InitLoggerTo(e.stderr, level, format)
	return nil
}

// load returns the bundle in path. Serialized bundles are decoded;
// interchange files, compressed or not, are ingested. "-" reads
// interchange text from stdin.
func (e *env) load(path string) (*bundle.Bundle, issue.List, error) {
	kind, err := inputType(path)
	if err != nil {
		return nil, nil, err
	}
	if kind == validation.InputBundle {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read bundle: %w", err)
		}
		b, err := bundle.Decode(data)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}

	opts := e.cfg.Pipeline()
	var res *pipeline.Result
	if path == "-" {
		var srcOpts []source.Option
		if opts.Encoding != "" {
			srcOpts = append(srcOpts, source.WithEncoding(opts.Encoding))
		}
		r, rerr := source.FromReader(e.stdin, srcOpts...)
		if rerr != nil {
			return nil, nil, rerr
		}
		defer r.Close()
		res, err = pipeline.Ingest(logging.WithSource(e.ctx, "stdin"), r, opts)
	} else {
		res, err = pipeline.IngestFile(e.ctx, path, opts)
	}
	if err != nil {
		return nil, nil, err
	}
	return res.Bundle, res.Issues, nil
}

// inputType checks path and reports what the file holds.
func inputType(path string) (validation.InputType, error) {
	if err := validation.ValidatePath(path); err != nil {
		return "", apperrors.NewValidation("input", path, err.Error())
	}
	if path == "-" {
		return validation.InputInterchange, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.NewIO("open", path, err)
	}
	defer f.Close()
	kind, err := validation.DetectInput(f)
	if err != nil {
		return "", apperrors.NewIO("read", path, err)
	}
	return kind, validation.CheckExtension(path, kind)
}

// report prints issues to stderr and applies --strict.
func (e *env) report(issues issue.List) error {
	for _, i := range issues.Sorted() {
		fmt.Fprintln(e.stderr, i)
	}
	if e.strict && issues.HasErrors() {
		return errStrict
	}
	return nil
}

// write sends data to path, or to stdout when path is empty.
func (e *env) write(path string, data []byte) error {
	if path == "" {
		if len(data) > 0 && data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err := e.stdout.Write(data)
		return err
	}
	if err := validation.ValidatePath(path); err != nil {
		return apperrors.NewValidation("output", path, err.Error())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// encode renders v as JSON, indented when the configuration asks for it.
func (e *env) encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if e.cfg.Export.Pretty {
		data = pretty.Pretty(data)
	}
	return data, nil
}

// run parses args and executes the selected command. It returns the
// process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	exit := -1
	parser, err := kong.New(&cli,
		kong.Name("lineage"),
		kong.Description("Lineage - genealogical interchange ingestion"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exit = code }),
	)
	if err != nil {
		fmt.Fprintf(stderr, "lineage: %v\n", err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if exit >= 0 {
		return exit
	}
	if err != nil {
		fmt.Fprintf(stderr, "lineage: error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(stderr, "lineage: error: %v\n", err)
		return 1
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}

	e := &env{ctx: ctx, cfg: cfg, strict: cli.Strict, stdin: stdin, stdout: stdout, stderr: stderr}
	if err := kctx.Run(e); err != nil {
		if !errors.Is(err, errStrict) {
			logging.OperationError(ctx, kctx.Command(), err)
		}
		fmt.Fprintf(stderr, "lineage: error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
