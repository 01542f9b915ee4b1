package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
	"github.com/FocuswithJustin/Lineage/core/snapshot"
	"github.com/FocuswithJustin/Lineage/internal/config"
	"github.com/FocuswithJustin/Lineage/internal/validation"
)

// SnapshotGroup contains snapshot history operations.
type SnapshotGroup struct {
	Save SnapshotSaveCmd `cmd:"" help:"Save a file or bundle under a label"`
	List SnapshotListCmd `cmd:"" help:"List snapshot history"`
	Diff SnapshotDiffCmd `cmd:"" help:"Compare two snapshots by id or content hash"`
}

// StoreFlags locate the snapshot store.
type StoreFlags struct {
	Dir string `help:"Snapshot store directory (default $XDG_DATA_HOME/lineage/snapshots)" type:"path"`
}

func (f StoreFlags) apply(c *config.Config) {
	if f.Dir != "" {
		c.Snapshot.Dir = f.Dir
	}
}

// openStore opens the configured snapshot store, creating it unless
// readOnly is set.
func (e *env) openStore(readOnly bool) (*snapshot.Store, error) {
	dir, err := e.cfg.SnapshotDir()
	if err != nil {
		return nil, err
	}
	if readOnly {
		return snapshot.OpenReadOnly(dir, snapshot.WithAlgorithm(e.cfg.Algorithm()))
	}
	return snapshot.Open(dir, snapshot.WithAlgorithm(e.cfg.Algorithm()))
}

// SnapshotSaveCmd records an input in the history.
type SnapshotSaveCmd struct {
	IngestFlags
	StoreFlags
	File  string `arg:"" help:"Interchange file or bundle JSON"`
	Label string `short:"l" help:"History label (default the file name without extension)"`
}

func (c *SnapshotSaveCmd) Run(e *env) error {
	if err := e.configure(c.IngestFlags.apply, c.StoreFlags.apply); err != nil {
		return err
	}
	label := c.Label
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(c.File), filepath.Ext(c.File))
	}
	if err := validation.ValidateLabel(label); err != nil {
		return apperrors.NewValidation("label", label, err.Error())
	}

	b, issues, err := e.load(c.File)
	if err != nil {
		return err
	}
	store, err := e.openStore(false)
	if err != nil {
		return err
	}
	defer store.Close()

	prev, _ := store.Latest(e.ctx, label)
	snap, err := store.Save(e.ctx, label, b)
	if err != nil {
		return err
	}
	if prev != nil && prev.ID == snap.ID {
		fmt.Fprintf(e.stdout, "unchanged %s %s\n", snap.ID, label)
	} else {
		fmt.Fprintf(e.stdout, "saved %s %s %s:%s\n", snap.ID, label, snap.Algorithm, snap.ContentHash)
	}
	return e.report(issues)
}

// SnapshotListCmd prints history rows.
type SnapshotListCmd struct {
	StoreFlags
	Label string `arg:"" optional:"" help:"Only this label"`
}

func (c *SnapshotListCmd) Run(e *env) error {
	if err := e.configure(c.apply); err != nil {
		return err
	}
	store, err := e.openStore(true)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Nothing has been saved yet.
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()

	labels := []string{c.Label}
	if c.Label == "" {
		if labels, err = store.Labels(e.ctx); err != nil {
			return err
		}
	}
	for _, label := range labels {
		history, err := store.History(e.ctx, label)
		if err != nil {
			return err
		}
		for _, s := range history {
			fmt.Fprintf(e.stdout, "%s  %s  %-16s %5d individuals %5d unions  %s\n",
				s.ID, s.CreatedAt.Format(time.RFC3339), s.Label, s.Individuals, s.Unions, short(s.ContentHash))
		}
	}
	return nil
}

// SnapshotDiffCmd compares two snapshots by id or content hash.
type SnapshotDiffCmd struct {
	StoreFlags
	From        string `arg:"" help:"Earlier snapshot id or [algorithm:]content hash"`
	To          string `arg:"" help:"Later snapshot id or [algorithm:]content hash"`
	Granularity string `short:"g" help:"Update detail: entity or field"`
	Summary     bool   `help:"Print counts instead of the diff"`
}

func (c *SnapshotDiffCmd) Run(e *env) error {
	err := e.configure(c.apply, func(cfg *config.Config) {
		if c.Granularity != "" {
			cfg.Diff.Granularity = c.Granularity
		}
	})
	if err != nil {
		return err
	}
	store, err := e.openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Diff(e.ctx, c.From, c.To, e.cfg.DiffOptions())
	if err != nil {
		return err
	}
	if c.Summary {
		added, removed, updated := d.Counts()
		fmt.Fprintf(e.stdout, "added %d, removed %d, updated %d\n", added, removed, updated)
		return nil
	}
	data, err := e.encode(d)
	if err != nil {
		return err
	}
	return e.write("", data)
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
