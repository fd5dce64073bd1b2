// Package sync implements the staged load lifecycle that replicates a
// single table: prepare, extract, load, post-load. An external
// coordinator creates one action per table per run and either folds the
// whole pipeline or interleaves the decomposed stages across tables.
package sync

// Action is one table's running sync. Each stage returns the action the
// next stage should operate on; a table skipped at prepare time flows
// through the rest of the pipeline as a NullAction.
type Action interface {
	// Operation names the strategy for log labels.
	Operation() string
	TableName() string

	Prepare() (Action, error)
	ExtractData() (Action, error)
	LoadData() (Action, error)
	PostLoad() (Action, error)

	// Release drops the staging artifact, if any. The pipeline calls it
	// when a stage fails so no temp file is orphaned.
	Release() error
}

// NullAction is the skipped variant: every stage returns itself and
// does nothing. It is produced only by a failed readiness check, so the
// pipeline never has to special-case a skipped table.
type NullAction struct {
	table string
}

// Skip returns the no-op action for a table.
func Skip(table string) NullAction {
	return NullAction{table: table}
}

func (n NullAction) Operation() string { return "skip" }

func (n NullAction) TableName() string { return n.table }

func (n NullAction) Prepare() (Action, error) { return n, nil }

func (n NullAction) ExtractData() (Action, error) { return n, nil }

func (n NullAction) LoadData() (Action, error) { return n, nil }

func (n NullAction) PostLoad() (Action, error) { return n, nil }

func (n NullAction) Release() error { return nil }
