package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/tablesync/internal/source"
	"github.com/BartekS5/tablesync/internal/staging"
	"github.com/BartekS5/tablesync/internal/target"
	"github.com/BartekS5/tablesync/internal/watermark"
	"github.com/BartekS5/tablesync/pkg/clock"
	"github.com/BartekS5/tablesync/pkg/logger"
)

// ErrNoWatermarkColumn means the plan's column list carries neither
// updated_at nor created_at, so incremental extraction has no column to
// trust. This is a configuration problem, not a transient one.
var ErrNoWatermarkColumn = errors.New("no usable watermark column (need updated_at or created_at)")

// LoadAction is the shared core embedded by the concrete strategies.
// It owns the plan, the collaborator handles, and the run's staging
// artifact from extract until post-load releases it.
type LoadAction struct {
	Plan   *Plan
	Source source.Source
	Target target.Target
	Store  watermark.Store
	Clock  clock.Clock

	// StagingDir overrides os.TempDir for staging files.
	StagingDir string

	startedAt          time.Time
	artifact           *staging.Artifact
	candidateLastRowAt time.Time
	loaded             bool
}

func newLoadAction(plan *Plan, src source.Source, tgt target.Target, store watermark.Store, clk clock.Clock) LoadAction {
	if clk == nil {
		clk = clock.System{}
	}
	return LoadAction{
		Plan:      plan,
		Source:    src,
		Target:    tgt,
		Store:     store,
		Clock:     clk,
		startedAt: clk.Now(),
	}
}

func (a *LoadAction) TableName() string {
	return a.Plan.TableName
}

// StartedAt is the run's start instant; a successful incremental run
// commits it as last_synced_at.
func (a *LoadAction) StartedAt() time.Time {
	return a.startedAt
}

func (a *LoadAction) Release() error {
	if a.artifact == nil {
		return nil
	}
	err := a.artifact.Release()
	a.artifact = nil
	return err
}

// prepareGate runs the ordered readiness checks. A false result with a
// nil error is the benign skip; the caller converts it to a NullAction.
// ready is the strategy's rule over the filtered column list.
func (a *LoadAction) prepareGate(ready func(columns []string) bool) (bool, error) {
	if err := a.Store.EnsureStorageExists(); err != nil {
		return false, err
	}

	exists, err := a.Source.TableExists(a.Plan.TableName)
	if err != nil {
		return false, err
	}
	if !exists {
		// Expected when an upstream table was renamed or dropped.
		logger.Infof("Source table %s not found, skipping this run", a.Plan.TableName)
		return false, nil
	}

	if a.Plan.Schema == nil {
		cols, err := a.Source.InferSchema(a.Plan.TableName)
		if err != nil {
			return false, fmt.Errorf("failed to infer schema for %s: %w", a.Plan.TableName, err)
		}
		schema := make(map[string]string, len(cols))
		ordered := make([]string, 0, len(cols))
		for _, c := range cols {
			schema[c.Name] = c.Type
			ordered = append(ordered, c.Name)
		}
		a.Plan.Schema = schema
		if len(a.Plan.Columns) == 0 {
			a.Plan.Columns = ordered
		}
	}

	a.Plan.PrefixedTableName = a.Plan.TargetPrefix + a.Plan.TableName
	a.Plan.Columns = a.filterColumns(a.Plan.Columns)

	return ready(a.Plan.Columns), nil
}

// filterColumns drops configured columns the source table no longer
// has, so a trimmed upstream schema narrows the sync instead of
// breaking it.
func (a *LoadAction) filterColumns(columns []string) []string {
	kept := columns[:0]
	for _, c := range columns {
		if _, ok := a.Plan.Schema[c]; ok {
			kept = append(kept, c)
		} else {
			logger.Warnf("Dropping column %s: not present in source table %s", c, a.Plan.TableName)
		}
	}
	return kept
}

// ensureTargetExists creates the prefixed target table from the
// resolved schema if it is missing. Idempotent by contract.
func (a *LoadAction) ensureTargetExists() error {
	exists, err := a.Target.TableExists(a.Plan.PrefixedTableName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.Target.CreateTable(a.Plan.PrefixedTableName, a.Plan.Schema)
}

// watermarkColumn picks the column incremental extraction trusts:
// updated_at when present, else created_at, else "".
func watermarkColumn(columns []string) string {
	fallback := ""
	for _, c := range columns {
		if c == "updated_at" {
			return c
		}
		if c == "created_at" {
			fallback = c
		}
	}
	return fallback
}

// extractToFile implements the incremental extraction protocol: verify
// the connection, compute the candidate watermark eagerly from the
// whole table, then stream rows newer than since into a fresh staging
// file from a zero offset.
func (a *LoadAction) extractToFile(since time.Time) error {
	if !a.Plan.Resolved() {
		return errors.New("extract requires a prepared plan")
	}
	if err := a.Source.EnsureConnection(); err != nil {
		return err
	}

	col := watermarkColumn(a.Plan.Columns)
	if col == "" {
		return fmt.Errorf("table %s: %w", a.Plan.TableName, ErrNoWatermarkColumn)
	}

	// The candidate is taken before streaming so it is a consistent
	// upper bound even while new rows keep committing.
	candidate, err := a.Source.MaxTimestamp(a.Plan.TableName, col)
	if err != nil {
		return err
	}

	art, err := staging.New(a.StagingDir, a.Plan.TableName)
	if err != nil {
		return err
	}

	n, err := a.Source.ExtractToFile(a.Plan.TableName, a.Plan.Columns, art.Path, col, since, 0)
	if err != nil {
		art.Release()
		return err
	}

	a.artifact = art
	a.candidateLastRowAt = candidate
	logger.Infof("Staged %d rows of %s newer than %s", n, a.Plan.TableName, since.Format(time.RFC3339))
	return nil
}
