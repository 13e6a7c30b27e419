// Package task defines the unit of executable work used to assemble an ETL
// run's task tree: a Task does some work and returns a TaskReturn; a
// TaskGroup runs its children in order, aborting on the first failure; a
// ParallelTaskGroup runs its children concurrently, cancelling the rest as
// soon as one fails.
package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"golang.org/x/sync/errgroup"
)

// ErrTaskFailed is returned internally to trigger errgroup cancellation
// when a child task's TaskReturn reports Success == false; the actual
// failure detail lives in the TaskReturn, not in this sentinel.
var ErrTaskFailed = errors.New("task: child task failed")

// TaskReturn is the outcome of running a Task. Combining two TaskReturns
// (TaskGroup and ParallelTaskGroup both do this) follows a small algebra:
// Success is AND, Summery is an element-wise sum, Error is a " | "-joined
// concatenation of the non-empty error strings.
type TaskReturn struct {
	Success bool
	Summery stats.Stats
	Error   string
}

// Merge combines r with other per the TaskReturn algebra.
func (r TaskReturn) Merge(other TaskReturn) TaskReturn {
	merged := TaskReturn{
		Success: r.Success && other.Success,
		Summery: r.Summery.Merge(other.Summery),
	}
	switch {
	case r.Error == "":
		merged.Error = other.Error
	case other.Error == "":
		merged.Error = r.Error
	default:
		merged.Error = strings.Join([]string{r.Error, other.Error}, " | ")
	}
	return merged
}

// Ok is a convenience constructor for a successful TaskReturn.
func Ok(summery stats.Stats) TaskReturn {
	return TaskReturn{Success: true, Summery: summery}
}

// Fail is a convenience constructor for a failed TaskReturn.
func Fail(err error, summery stats.Stats) TaskReturn {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return TaskReturn{Success: false, Summery: summery, Error: msg}
}

// Task is one node of the task tree. Concrete tasks embed Base and
// implement Execute; TaskGroup and ParallelTaskGroup are themselves Tasks,
// so the tree composes arbitrarily deep.
type Task interface {
	GetUUID() string
	GetName() string
	GetDepth() int
	SetDepth(depth int)
	GetChildren() []Task
	Execute(ctx context.Context) TaskReturn
	AbortOnFail() bool
	SetReporter(r Reporter)
}

// Reporter is the slice of progress.Reporter a task needs to announce its
// own lifecycle. Declared here, not imported from package progress, since
// progress.Reporter already depends on package task; progress.Reporter
// satisfies this interface structurally.
type Reporter interface {
	TaskStarted(t Task)
	TaskFinished(t Task, result TaskReturn)
}

// Base is the embeddable state every concrete Task and group shares:
// identity, timing, and the last TaskReturn it produced.
type Base struct {
	UUID      string
	Name      string
	Addons    map[string]interface{}
	StartTime time.Time
	EndTime   time.Time
	Success   bool
	Summery   stats.Stats
	Error     string
	Depth     int

	// NoAbortOnFail flips AbortOnFail's default. The zero value keeps the
	// documented default (true): a failing task halts its parent
	// TaskGroup/ParallelTaskGroup unless this is explicitly set.
	NoAbortOnFail bool

	// Reporter, when set, is notified as this task starts and finishes
	// (see Start/Finish below). TaskGroup and ParallelTaskGroup propagate
	// their own Reporter down to any child that doesn't already have one,
	// so setting it once on a tree's root covers the whole tree.
	Reporter Reporter
}

// NewBase constructs a Base with a fresh UUID and an empty Addons map.
func NewBase(name string) Base {
	return Base{
		UUID:   uuid.NewString(),
		Name:   name,
		Addons: make(map[string]interface{}),
	}
}

func (b *Base) GetUUID() string        { return b.UUID }
func (b *Base) GetName() string        { return b.Name }
func (b *Base) GetDepth() int          { return b.Depth }
func (b *Base) SetDepth(depth int)     { b.Depth = depth }
func (b *Base) GetChildren() []Task    { return nil }
func (b *Base) SetReporter(r Reporter) { b.Reporter = r }

// AbortOnFail reports whether a failure of this task should halt its
// parent TaskGroup/ParallelTaskGroup. True by default; a concrete task can
// set NoAbortOnFail to opt out.
func (b *Base) AbortOnFail() bool { return !b.NoAbortOnFail }

// Begin stamps StartTime; a concrete Task's Execute calls it first.
func (b *Base) Begin() {
	b.StartTime = time.Now()
}

// Complete stamps EndTime and copies result into Base's fields so a
// progress reporter can read a finished task's outcome straight off it.
func (b *Base) Complete(result TaskReturn) TaskReturn {
	b.EndTime = time.Now()
	b.Success = result.Success
	b.Summery = result.Summery
	b.Error = result.Error
	return result
}

// Start calls Begin and, when a Reporter is configured (see SetReporter),
// notifies it that self is starting. self is the concrete Task value the
// reporter should observe — Base has no way to recover its own embedder's
// identity, so every Execute implementation passes itself.
func (b *Base) Start(self Task) {
	b.Begin()
	if b.Reporter != nil {
		b.Reporter.TaskStarted(self)
	}
}

// Finish calls Complete and, when a Reporter is configured, notifies it
// that self finished with result, then returns result unchanged.
func (b *Base) Finish(self Task, result TaskReturn) TaskReturn {
	result = b.Complete(result)
	if b.Reporter != nil {
		b.Reporter.TaskFinished(self, result)
	}
	return result
}

// propagateReporter hands r down to child if child doesn't already carry
// its own Reporter, so configuring a tree's root once covers every
// descendant task.
func propagateReporter(child Task, r Reporter) {
	if r == nil {
		return
	}
	if b, ok := child.(interface{ GetReporter() Reporter }); ok && b.GetReporter() != nil {
		return
	}
	child.SetReporter(r)
}

// GetReporter exposes the configured Reporter, used by propagateReporter to
// avoid overwriting a child that was given its own Reporter explicitly.
func (b *Base) GetReporter() Reporter { return b.Reporter }

// TaskGroup runs its children in registration order, stopping at the first
// child whose TaskReturn reports Success == false and whose AbortOnFail is
// true; a failed child with AbortOnFail false does not stop it. The group's own
// TaskReturn is the algebraic merge of every child that ran, including the
// one that failed.
type TaskGroup struct {
	Base
	Children []Task
}

// NewTaskGroup builds a TaskGroup and assigns Depth to each child relative
// to the group (a flat, one-level increment; deeper nesting comes from
// groups containing groups).
func NewTaskGroup(name string, children ...Task) *TaskGroup {
	g := &TaskGroup{Base: NewBase(name), Children: children}
	for _, c := range children {
		c.SetDepth(g.Depth + 1)
	}
	return g
}

func (g *TaskGroup) GetChildren() []Task { return g.Children }

func (g *TaskGroup) Execute(ctx context.Context) TaskReturn {
	g.Start(g)
	result := TaskReturn{Success: true, Summery: stats.New()}
	for _, child := range g.Children {
		propagateReporter(child, g.Reporter)
		childResult := child.Execute(ctx)
		result = result.Merge(childResult)
		if !childResult.Success && child.AbortOnFail() {
			break
		}
	}
	return g.Finish(g, result)
}

// ParallelTaskGroup runs every child concurrently. The pool is unbounded,
// one goroutine per child, matching a group sized exactly to its own
// children rather than a shared worker cap. The first child to report
// Success == false with AbortOnFail true cancels the shared context; siblings observe
// cancellation on their own next context check but still run to whatever
// completion they reach, since Task.Execute has no forced-abort hook.
type ParallelTaskGroup struct {
	Base
	Children []Task
}

func NewParallelTaskGroup(name string, children ...Task) *ParallelTaskGroup {
	g := &ParallelTaskGroup{Base: NewBase(name), Children: children}
	for _, c := range children {
		c.SetDepth(g.Depth + 1)
	}
	return g
}

func (g *ParallelTaskGroup) GetChildren() []Task { return g.Children }

func (g *ParallelTaskGroup) Execute(ctx context.Context) TaskReturn {
	g.Start(g)

	results := make([]TaskReturn, len(g.Children))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, child := range g.Children {
		i, child := i, child
		propagateReporter(child, g.Reporter)
		eg.Go(func() error {
			results[i] = child.Execute(egCtx)
			if !results[i].Success && child.AbortOnFail() {
				return ErrTaskFailed
			}
			return nil
		})
	}

	// errgroup's returned error only ever tells us *that* a child failed,
	// never which one or why; the real detail is folded out of results
	// below regardless of this return value.
	_ = eg.Wait()

	merged := TaskReturn{Success: true, Summery: stats.New()}
	for _, r := range results {
		merged = merged.Merge(r)
	}
	return g.Finish(g, merged)
}
