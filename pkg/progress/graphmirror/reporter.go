package graphmirror

import (
	"context"

	"github.com/neo-technology-field/graph-etl-lib/pkg/logging"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/neo-technology-field/graph-etl-lib/pkg/task"
)

// Reporter mirrors task lifecycle and progress events into Store's tables:
// one row per task, one row per parent->child edge, and per-task
// statistics rows. It satisfies progress.Reporter, so it can be used as a
// drop-in replacement for progress.LogReporter wherever REPORTER_DATABASE is
// configured (spec.md §6) — or composed alongside one via a fan-out
// reporter, since nothing here prevents logging and mirroring at once.
type Reporter struct {
	store    *Store
	ctx      context.Context
	migrated bool
	logger   *logging.Logger
}

// NewReporter wraps store as a progress.Reporter. ctx is used for every
// write this reporter makes; callers typically pass the same context the
// ETL run itself uses, so a cancelled run stops mirroring too.
func NewReporter(ctx context.Context, store *Store) *Reporter {
	return &Reporter{store: store, ctx: ctx, logger: logging.GetGlobalLogger().WithComponent("graphmirror")}
}

func (r *Reporter) RegisterTasks(root task.Task) {
	if !r.migrated {
		if err := r.store.Migrate(r.ctx); err != nil {
			r.logger.Error("failed to migrate task-tree schema", map[string]interface{}{"error": err.Error()})
			return
		}
		r.migrated = true
	}

	type frame struct {
		t      task.Task
		parent task.Task
		depth  int
	}
	queue := []frame{{t: root, depth: 0}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		f.t.SetDepth(f.depth)
		if err := r.store.upsertTask(r.ctx, f.t.GetUUID(), f.t.GetName(), f.depth); err != nil {
			r.logger.Error("failed to register task", map[string]interface{}{"error": err.Error(), "uuid": f.t.GetUUID()})
			continue
		}
		if f.parent != nil {
			if err := r.store.insertEdge(r.ctx, f.parent.GetUUID(), f.t.GetUUID()); err != nil {
				r.logger.Error("failed to register task edge", map[string]interface{}{"error": err.Error(), "uuid": f.t.GetUUID()})
			}
		}
		for _, child := range f.t.GetChildren() {
			queue = append(queue, frame{t: child, parent: f.t, depth: f.depth + 1})
		}
	}
}

func (r *Reporter) TaskStarted(t task.Task) {
	if err := r.store.markStarted(r.ctx, t.GetUUID()); err != nil {
		r.logger.Error("failed to mark task started", map[string]interface{}{"error": err.Error(), "uuid": t.GetUUID()})
	}
}

func (r *Reporter) TaskFinished(t task.Task, result task.TaskReturn) {
	if err := r.store.markFinished(r.ctx, t.GetUUID(), result.Success, result.Error); err != nil {
		r.logger.Error("failed to mark task finished", map[string]interface{}{"error": err.Error(), "uuid": t.GetUUID()})
		return
	}
	r.writeStats(t.GetUUID(), result.Summery)
}

func (r *Reporter) ReportProgress(t task.Task, batchesDone int, expectedBatches *int, cumulative stats.Stats) {
	r.writeStats(t.GetUUID(), cumulative)
	if err := r.store.upsertStat(r.ctx, t.GetUUID(), "batches_done", int64(batchesDone)); err != nil {
		r.logger.Error("failed to write batches_done", map[string]interface{}{"error": err.Error(), "uuid": t.GetUUID()})
	}
}

func (r *Reporter) writeStats(uuid string, s stats.Stats) {
	for key, value := range s {
		if err := r.store.upsertStat(r.ctx, uuid, key, value); err != nil {
			r.logger.Error("failed to write task stat", map[string]interface{}{"error": err.Error(), "uuid": uuid, "key": key})
		}
	}
}
