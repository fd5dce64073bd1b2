package sync

import (
	"fmt"

	"github.com/BartekS5/tablesync/pkg/logger"
)

// Stage is one named step of the pipeline, kept as a data value so a
// coordinator can pull stages apart and interleave them across tables.
type Stage struct {
	Name string
	Run  func(Action) (Action, error)
}

// Stages returns the fixed pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		{Name: "prepare", Run: Action.Prepare},
		{Name: "extract", Run: Action.ExtractData},
		{Name: "load", Run: Action.LoadData},
		{Name: "post_load", Run: Action.PostLoad},
	}
}

// Call runs the whole pipeline for one action, threading each stage's
// result into the next. The final action is discarded; the side effects
// are the point. A hard failure aborts the remaining stages.
func Call(a Action) error {
	cur := a
	for _, stage := range Stages() {
		next, err := RunStage(stage, cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// RunStage executes one stage under a timing label of the form
// operation.stage.table. On failure it releases the action's staging
// artifact before propagating, so coordinators running decomposed
// stages get the same cleanup guarantee as Call.
func RunStage(stage Stage, a Action) (Action, error) {
	var next Action
	label := fmt.Sprintf("%s.%s.%s", a.Operation(), stage.Name, a.TableName())
	err := logger.Measure(label, func() error {
		var err error
		next, err = stage.Run(a)
		return err
	})
	if err != nil {
		if relErr := a.Release(); relErr != nil {
			logger.Warnf("Failed to release staging artifact for %s: %v", a.TableName(), relErr)
		}
		return nil, fmt.Errorf("%s stage failed for %s: %w", stage.Name, a.TableName(), err)
	}
	return next, nil
}
