package sync

import (
	"errors"
	"time"

	"github.com/BartekS5/tablesync/internal/source"
	"github.com/BartekS5/tablesync/internal/staging"
	"github.com/BartekS5/tablesync/internal/target"
	"github.com/BartekS5/tablesync/internal/watermark"
	"github.com/BartekS5/tablesync/pkg/clock"
	"github.com/BartekS5/tablesync/pkg/logger"
)

// BatchLoadAction dumps the whole table every run and swaps it into the
// target in one piece, so readers never see a partially loaded state.
type BatchLoadAction struct {
	LoadAction
}

var _ Action = (*BatchLoadAction)(nil)

func NewBatchLoadAction(plan *Plan, src source.Source, tgt target.Target, store watermark.Store, clk clock.Clock) *BatchLoadAction {
	return &BatchLoadAction{LoadAction: newLoadAction(plan, src, tgt, store, clk)}
}

func (a *BatchLoadAction) Operation() string { return "batch_load" }

func (a *BatchLoadAction) Prepare() (Action, error) {
	ready, err := a.prepareGate(func(columns []string) bool {
		return len(columns) > 0
	})
	if err != nil {
		return nil, err
	}
	if !ready {
		return Skip(a.Plan.TableName), nil
	}
	if err := a.ensureTargetExists(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *BatchLoadAction) ExtractData() (Action, error) {
	if !a.Plan.Resolved() {
		return nil, errors.New("extract requires a prepared plan")
	}
	wm, err := a.Store.Get(a.Plan.TableName)
	if err != nil {
		return nil, err
	}
	if !wm.LastBatchSyncedAt.IsZero() {
		logger.Infof("Last full batch of %s was at %s", a.Plan.TableName, wm.LastBatchSyncedAt.Format(time.RFC3339))
	}

	if err := a.Source.EnsureConnection(); err != nil {
		return nil, err
	}

	art, err := staging.New(a.StagingDir, a.Plan.TableName)
	if err != nil {
		return nil, err
	}
	n, err := a.Source.ExtractAllToFile(a.Plan.TableName, a.Plan.Columns, art.Path)
	if err != nil {
		art.Release()
		return nil, err
	}

	a.artifact = art
	// A full dump is as fresh as the moment it finished.
	a.candidateLastRowAt = a.Clock.Now()
	logger.Infof("Staged %d rows of %s (full dump)", n, a.Plan.TableName)
	return a, nil
}

func (a *BatchLoadAction) LoadData() (Action, error) {
	if a.artifact == nil {
		return nil, errors.New("load requires a staged extract")
	}
	n, err := a.Target.ReplaceFromFile(a.Plan.PrefixedTableName, a.artifact.Path, a.Plan.Schema)
	if err != nil {
		return nil, err
	}
	a.loaded = true
	logger.Infof("Replaced %s with %d rows", a.Plan.PrefixedTableName, n)
	return a, nil
}

func (a *BatchLoadAction) PostLoad() (Action, error) {
	if a.loaded {
		wm, err := a.Store.Get(a.Plan.TableName)
		if err != nil {
			return nil, err
		}
		wm.TableName = a.Plan.TableName
		wm.LastBatchSyncedAt = a.startedAt
		wm.LastRowAt = a.candidateLastRowAt
		if err := a.Store.Set(wm); err != nil {
			return nil, err
		}
	}
	if err := a.Release(); err != nil {
		logger.Warnf("Failed to release staging artifact for %s: %v", a.Plan.TableName, err)
	}
	return a, nil
}
