// Package config loads the lineage configuration file.
//
// The file is TOML and every key is optional. A missing file yields the
// defaults; command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/FocuswithJustin/Lineage/core/diff"
	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/export"
	"github.com/FocuswithJustin/Lineage/core/hash"
	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/normalize"
	"github.com/FocuswithJustin/Lineage/core/pipeline"
	"github.com/FocuswithJustin/Lineage/core/source"
	"github.com/FocuswithJustin/Lineage/core/transform"
	"github.com/FocuswithJustin/Lineage/core/validate"
	"github.com/FocuswithJustin/Lineage/internal/logging"
)

// appName names the directories under the XDG base directories.
const appName = "lineage"

// userHomeDir is a variable to allow tests to simulate a missing home.
var userHomeDir = os.UserHomeDir

// Config is the whole configuration file.
type Config struct {
	Parse    ParseConfig    `toml:"parse"`
	Diff     DiffConfig     `toml:"diff"`
	Hash     HashConfig     `toml:"hash"`
	Export   ExportConfig   `toml:"export"`
	Log      LogConfig      `toml:"log"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// ParseConfig tunes ingestion.
type ParseConfig struct {
	// DanglingPointers is "warn" or "error".
	DanglingPointers string `toml:"dangling_pointers"`
	PlaceSeparator   string `toml:"place_separator"`
	// Encoding names a legacy character set; empty means UTF-8.
	Encoding    string `toml:"encoding"`
	MaxLifespan int    `toml:"max_lifespan"`
}

type DiffConfig struct {
	Granularity string `toml:"granularity"`
}

type HashConfig struct {
	Algorithm string `toml:"algorithm"`
}

type ExportConfig struct {
	Format       string `toml:"format"`
	Pretty       bool   `toml:"pretty"`
	StripIndexes bool   `toml:"strip_indexes"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type SnapshotConfig struct {
	// Dir holds the snapshot store. Empty means the XDG data directory.
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Parse: ParseConfig{
			DanglingPointers: "warn",
			PlaceSeparator:   normalize.DefaultPlaceSeparator,
			MaxLifespan:      validate.DefaultMaxLifespan,
		},
		Diff:   DiffConfig{Granularity: string(diff.GranularityEntity)},
		Hash:   HashConfig{Algorithm: string(hash.SHA256)},
		Export: ExportConfig{Format: "json", Pretty: true},
		Log:    LogConfig{Level: "warn", Format: "text"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/lineage/config.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.toml")
}

// DefaultSnapshotDir returns $XDG_DATA_HOME/lineage/snapshots, falling back
// to ~/.local/share when XDG_DATA_HOME is unset.
func DefaultSnapshotDir() (string, error) {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "snapshots")
}

func xdgPath(env, fallback, name string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName, name), nil
	}
	home, err := userHomeDir()
	if err != nil {
		return "", apperrors.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, fallback, appName, name), nil
}

// Load reads the file at path over the defaults. An empty path means
// DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, apperrors.NewIO("read config", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, apperrors.NewParse("toml", path, err)
	}
	return cfg, nil
}

// Validate checks every value and returns an *errors.ValidationError
// naming the first bad key.
func (c *Config) Validate() error {
	if _, err := c.Dangling(); err != nil {
		return apperrors.NewValidation("parse.dangling_pointers", c.Parse.DanglingPointers, "must be warn or error")
	}
	if err := source.CheckEncoding(c.Parse.Encoding); err != nil {
		return apperrors.NewValidation("parse.encoding", c.Parse.Encoding, "unknown character set")
	}
	if c.Parse.MaxLifespan < 0 {
		return apperrors.NewValidation("parse.max_lifespan", "", "must not be negative")
	}
	if _, err := diff.ParseGranularity(c.Diff.Granularity); err != nil {
		return apperrors.NewValidation("diff.granularity", c.Diff.Granularity, "must be entity or field")
	}
	if _, err := hash.ParseAlgorithm(c.Hash.Algorithm); err != nil {
		return apperrors.NewValidation("hash.algorithm", c.Hash.Algorithm, "must be sha256 or blake3")
	}
	if names := export.Names(); !slices.Contains(names, strings.ToLower(c.Export.Format)) {
		return apperrors.NewValidation("export.format", c.Export.Format, "must be one of "+strings.Join(names, ", "))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return apperrors.NewValidation("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return apperrors.NewValidation("log.format", c.Log.Format, "must be text or json")
	}
	return nil
}

// Dangling returns the severity of dangling-pointer issues. Only warning
// and error are accepted; the empty value means warning.
func (c *Config) Dangling() (issue.Severity, error) {
	if c.Parse.DanglingPointers == "" {
		return issue.SeverityWarning, nil
	}
	sev, err := issue.ParseSeverity(strings.ToLower(c.Parse.DanglingPointers))
	if err != nil {
		return issue.SeverityWarning, err
	}
	if sev == issue.SeverityInfo {
		return issue.SeverityWarning, apperrors.NewUnsupported("dangling pointer severity", c.Parse.DanglingPointers)
	}
	return sev, nil
}

// Pipeline returns the ingest options. Call Validate first; invalid values
// fall back to their defaults.
func (c *Config) Pipeline() pipeline.Options {
	sev, _ := c.Dangling()
	return pipeline.Options{
		Transform: transform.Options{
			Dangling:       sev,
			PlaceSeparator: c.Parse.PlaceSeparator,
		},
		Validate: validate.Options{
			MaxLifespan: c.Parse.MaxLifespan,
			Dangling:    sev,
		},
		Encoding: c.Parse.Encoding,
	}
}

// DiffOptions returns the diff options.
func (c *Config) DiffOptions() diff.Options {
	g, _ := diff.ParseGranularity(c.Diff.Granularity)
	return diff.Options{Granularity: g}
}

// Algorithm returns the configured digest function.
func (c *Config) Algorithm() hash.Algorithm {
	a, _ := hash.ParseAlgorithm(c.Hash.Algorithm)
	return a
}

// ExportOptions returns the exporter options.
func (c *Config) ExportOptions() export.Options {
	return export.Options{Pretty: c.Export.Pretty, StripIndexes: c.Export.StripIndexes}
}

// Logging returns the logger level and format.
func (c *Config) Logging() (logging.Level, logging.Format) {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	return level, format
}

// SnapshotDir returns the snapshot directory with a leading "~/" expanded.
func (c *Config) SnapshotDir() (string, error) {
	dir := c.Snapshot.Dir
	if dir == "" {
		return DefaultSnapshotDir()
	}
	if rest, ok := strings.CutPrefix(dir, "~/"); ok {
		home, err := userHomeDir()
		if err != nil {
			return "", apperrors.Wrap(err, "failed to locate home directory")
		}
		return filepath.Join(home, rest), nil
	}
	return dir, nil
}
