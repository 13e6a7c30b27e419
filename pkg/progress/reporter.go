// Package progress defines how an ETL run reports what it is doing: the
// shape of its task tree at registration, and a start/finish line with a
// statistics table per task as it runs.
package progress

import (
	"fmt"
	"strings"

	"github.com/neo-technology-field/graph-etl-lib/pkg/logging"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/neo-technology-field/graph-etl-lib/pkg/task"
)

// Reporter receives task lifecycle events. RegisterTasks is called once,
// before any task runs, with the whole tree; TaskStarted/TaskFinished fire
// once per task as the run proceeds.
type Reporter interface {
	RegisterTasks(root task.Task)
	TaskStarted(t task.Task)
	TaskFinished(t task.Task, result task.TaskReturn)

	// ReportProgress is called by a running Task (typically through its
	// terminator) after each batch it drains: batchesDone is a 1-based
	// running count, expectedBatches is nil when the total is unknown, and
	// cumulative is the merged statistics seen so far.
	ReportProgress(t task.Task, batchesDone int, expectedBatches *int, cumulative stats.Stats)
}

// LogReporter is the baseline Reporter: it prints the task tree once at
// registration and one line per task start/finish, with a zero-stripped
// statistics table on finish.
type LogReporter struct {
	logger *logging.Logger
}

// NewLogReporter builds a LogReporter writing through logger, or the
// package's default logger if logger is nil.
func NewLogReporter(logger *logging.Logger) *LogReporter {
	if logger == nil {
		logger = logging.GetGlobalLogger().WithComponent("progress")
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) RegisterTasks(root task.Task) {
	r.logger.Info("registered task tree")
	walkBreadthFirst(root, func(t task.Task, depth int) {
		t.SetDepth(depth)
		r.logger.Info(fmt.Sprintf("%s%s", strings.Repeat("  ", depth), t.GetName()), map[string]interface{}{
			"uuid":  t.GetUUID(),
			"depth": depth,
		})
	})
}

func (r *LogReporter) TaskStarted(t task.Task) {
	r.logger.Info(fmt.Sprintf("%sstarted: %s", strings.Repeat("  ", t.GetDepth()), t.GetName()), map[string]interface{}{
		"uuid": t.GetUUID(),
	})
}

func (r *LogReporter) TaskFinished(t task.Task, result task.TaskReturn) {
	fl := r.logger.WithStats(result.Summery.WithoutZeros()).
		WithField("uuid", t.GetUUID()).
		WithField("success", result.Success)
	if result.Error != "" {
		fl = fl.WithField("error", result.Error)
	}

	line := fmt.Sprintf("%sfinished: %s", strings.Repeat("  ", t.GetDepth()), t.GetName())
	if result.Success {
		fl.Info(line)
	} else {
		fl.Error(line)
	}
}

// ReportProgress logs one line per batch at debug level: a running count of
// batches done, the expected total when known, and the cumulative
// statistics merged so far.
func (r *LogReporter) ReportProgress(t task.Task, batchesDone int, expectedBatches *int, cumulative stats.Stats) {
	fl := r.logger.WithStats(cumulative.WithoutZeros()).
		WithField("uuid", t.GetUUID()).
		WithField("batches_done", batchesDone)
	if expectedBatches != nil {
		fl = fl.WithField("expected_batches", *expectedBatches)
	}
	fl.Debug(fmt.Sprintf("%sprogress: %s", strings.Repeat("  ", t.GetDepth()), t.GetName()))
}

// walkBreadthFirst visits root and every descendant level by level,
// calling visit(t, depth) for each, depth starting at 0 for root.
func walkBreadthFirst(root task.Task, visit func(t task.Task, depth int)) {
	type frame struct {
		t     task.Task
		depth int
	}
	queue := []frame{{t: root, depth: 0}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		visit(f.t, f.depth)
		for _, child := range f.t.GetChildren() {
			queue = append(queue, frame{t: child, depth: f.depth + 1})
		}
	}
}

// RootSummary folds several Stats into one value for display and drops
// zero-valued counters, the same convention LogReporter applies to its
// finished-task table. graphmirror does not use it and stores zeros as
// written.
func RootSummary(all ...stats.Stats) stats.Stats {
	return stats.MergeAll(all...).WithoutZeros()
}
