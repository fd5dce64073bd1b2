package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/tablesync/internal/config"
	"github.com/BartekS5/tablesync/internal/source"
	syncpkg "github.com/BartekS5/tablesync/internal/sync"
	"github.com/BartekS5/tablesync/internal/target"
	"github.com/BartekS5/tablesync/internal/watermark"
	"github.com/BartekS5/tablesync/pkg/database"
	"github.com/BartekS5/tablesync/pkg/logger"
)

type closableSource interface {
	source.Source
	Close() error
}

func runSync(opts *SyncOptions) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}

	var src closableSource
	switch cfg.Source.Type {
	case "sqlserver":
		src, err = source.NewSQLServerSource(env.SQLConnString, cfg.Source.Schema)
	case "mysql":
		src, err = source.NewMySQLSource(env.SQLConnString, cfg.Source.Schema)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	mongoClient, err := database.ConnectMongo(env.MongoConnString)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()
	tgt := target.NewMongoTarget(mongoClient, cfg.Target.Database)

	store, err := watermark.NewSQLiteStore(cfg.Watermark.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	actions := buildActions(cfg, opts, src, tgt, store)
	if len(actions) == 0 {
		return fmt.Errorf("no tables selected")
	}

	if opts.Pipeline {
		return runPipelined(actions)
	}
	return runSequential(actions)
}

func buildActions(cfg *config.Config, opts *SyncOptions, src source.Source, tgt target.Target, store watermark.Store) []syncpkg.Action {
	selected := make(map[string]bool, len(opts.Tables))
	for _, t := range opts.Tables {
		selected[t] = true
	}

	var actions []syncpkg.Action
	for _, tc := range cfg.Tables {
		if len(selected) > 0 && !selected[tc.Name] {
			continue
		}
		plan := &syncpkg.Plan{
			TableName:    tc.Name,
			Columns:      tc.Columns,
			PrimaryKey:   tc.PrimaryKey,
			TargetPrefix: cfg.Target.Prefix,
		}
		switch tc.Strategy {
		case config.StrategyBatch:
			a := syncpkg.NewBatchLoadAction(plan, src, tgt, store, nil)
			a.StagingDir = opts.StagingDir
			actions = append(actions, a)
		default:
			a := syncpkg.NewIncrementalLoadAction(plan, src, tgt, store, nil)
			a.StagingDir = opts.StagingDir
			if d := cfg.OverlapDuration(); d > 0 {
				a.Overlap = d
			}
			actions = append(actions, a)
		}
	}
	return actions
}

// runSequential folds each table's full pipeline in turn. One table's
// failure does not stop the others.
func runSequential(actions []syncpkg.Action) error {
	failed := 0
	for _, a := range actions {
		if err := syncpkg.Call(a); err != nil {
			logger.Errorf("Sync of %s failed: %v", a.TableName(), err)
			failed++
		}
	}
	return summarize(failed, len(actions))
}

type frontResult struct {
	table  string
	action syncpkg.Action
	err    error
}

// runPipelined overlaps source and target work: while table N is in its
// load and post-load stages here, table N+1 runs prepare and extract on
// a second goroutine. Each table still sees its own stages strictly in
// order, and no action is shared between goroutines once handed over.
func runPipelined(actions []syncpkg.Action) error {
	stages := syncpkg.Stages()
	front, back := stages[:2], stages[2:]

	results := make(chan frontResult, 1)
	go func() {
		defer close(results)
		for _, a := range actions {
			cur, err := runStages(a, front)
			results <- frontResult{table: a.TableName(), action: cur, err: err}
		}
	}()

	failed := 0
	for r := range results {
		if r.err != nil {
			logger.Errorf("Sync of %s failed: %v", r.table, r.err)
			failed++
			continue
		}
		if _, err := runStages(r.action, back); err != nil {
			logger.Errorf("Sync of %s failed: %v", r.table, err)
			failed++
		}
	}
	return summarize(failed, len(actions))
}

func runStages(a syncpkg.Action, stages []syncpkg.Stage) (syncpkg.Action, error) {
	cur := a
	for _, stage := range stages {
		next, err := syncpkg.RunStage(stage, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func summarize(failed, total int) error {
	if failed > 0 {
		return fmt.Errorf("%d of %d tables failed", failed, total)
	}
	logger.Infof("All %d tables synced", total)
	return nil
}
