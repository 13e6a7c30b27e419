package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
	"github.com/stretchr/testify/assert"
)

type fakeTask struct {
	Base
	result TaskReturn
	ran    *int32
}

func newFakeTask(name string, result TaskReturn, ran *int32) *fakeTask {
	return &fakeTask{Base: NewBase(name), result: result, ran: ran}
}

func (f *fakeTask) Execute(ctx context.Context) TaskReturn {
	f.Start(f)
	if f.ran != nil {
		atomic.AddInt32(f.ran, 1)
	}
	return f.Finish(f, f.result)
}

// recordingReporter tracks which task names received started/finished
// calls, in order, so tests can assert a task the group never runs also
// never gets reported.
type recordingReporter struct {
	started  []string
	finished []string
}

func (r *recordingReporter) TaskStarted(t Task) { r.started = append(r.started, t.GetName()) }
func (r *recordingReporter) TaskFinished(t Task, result TaskReturn) {
	r.finished = append(r.finished, t.GetName())
}

func TestTaskReturn_Merge_Algebra(t *testing.T) {
	a := TaskReturn{Success: true, Summery: stats.Stats{"x": 1}, Error: ""}
	b := TaskReturn{Success: false, Summery: stats.Stats{"x": 2}, Error: "boom"}

	merged := a.Merge(b)
	assert.False(t, merged.Success)
	assert.Equal(t, int64(3), merged.Summery["x"])
	assert.Equal(t, "boom", merged.Error)

	c := TaskReturn{Success: false, Error: "also broken"}
	merged2 := merged.Merge(c)
	assert.Equal(t, "boom | also broken", merged2.Error)
}

func TestTaskGroup_StopsAtFirstFailure(t *testing.T) {
	var ran int32
	ok := newFakeTask("first", Ok(stats.Stats{"a": 1}), &ran)
	fail := newFakeTask("second", Fail(errors.New("broke"), stats.Stats{"a": 1}), &ran)
	never := newFakeTask("third", Ok(stats.Stats{"a": 100}), &ran)

	group := NewTaskGroup("root", ok, fail, never)
	result := group.Execute(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, int64(2), result.Summery["a"])
	assert.Equal(t, int32(2), ran, "third task must not run after second fails")
}

func TestTaskGroup_AllSucceed(t *testing.T) {
	a := newFakeTask("a", Ok(stats.Stats{"n": 1}), nil)
	b := newFakeTask("b", Ok(stats.Stats{"n": 1}), nil)

	group := NewTaskGroup("root", a, b)
	result := group.Execute(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, int64(2), result.Summery["n"])
}

func TestParallelTaskGroup_MergesAllChildren(t *testing.T) {
	a := newFakeTask("a", Ok(stats.Stats{"n": 1}), nil)
	b := newFakeTask("b", Ok(stats.Stats{"n": 1}), nil)
	c := newFakeTask("c", Ok(stats.Stats{"n": 1}), nil)

	group := NewParallelTaskGroup("root", a, b, c)
	result := group.Execute(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.Summery["n"])
}

func TestParallelTaskGroup_AbortsOnExplicitFailureFlag(t *testing.T) {
	// A child that returns an error-free but Success == false TaskReturn
	// must still be treated as a failure: abort must key off
	// !result.Success, never off a non-nil error value.
	ok := newFakeTask("ok", Ok(stats.Stats{"n": 1}), nil)
	failNoErr := newFakeTask("fail", TaskReturn{Success: false, Summery: stats.Stats{"n": 1}}, nil)

	group := NewParallelTaskGroup("root", ok, failNoErr)
	result := group.Execute(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, int64(2), result.Summery["n"])
}

func TestTaskGroup_ContinuesPastFailureWhenAbortOnFailDisabled(t *testing.T) {
	var ran int32
	ok := newFakeTask("first", Ok(stats.Stats{"a": 1}), &ran)
	fail := newFakeTask("second", Fail(errors.New("broke"), stats.Stats{"a": 1}), &ran)
	fail.NoAbortOnFail = true
	third := newFakeTask("third", Ok(stats.Stats{"a": 1}), &ran)

	group := NewTaskGroup("root", ok, fail, third)
	result := group.Execute(context.Background())

	assert.False(t, result.Success, "a non-aborting failure still fails the group overall")
	assert.Equal(t, int32(3), ran, "third task must run: the failing task opted out of aborting")
	assert.Equal(t, int64(3), result.Summery["a"])
}

func TestParallelTaskGroup_ContinuesPastFailureWhenAbortOnFailDisabled(t *testing.T) {
	ok := newFakeTask("ok", Ok(stats.Stats{"n": 1}), nil)
	fail := newFakeTask("fail", Fail(errors.New("broke"), stats.Stats{"n": 1}), nil)
	fail.NoAbortOnFail = true

	group := NewParallelTaskGroup("root", ok, fail)
	result := group.Execute(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, int64(2), result.Summery["n"])
}

func TestTaskGroup_ReporterPropagatesAndSkipsUnrunChildren(t *testing.T) {
	ok := newFakeTask("first", Ok(stats.Stats{"a": 1}), nil)
	fail := newFakeTask("second", Fail(errors.New("broke"), stats.Stats{"a": 1}), nil)
	never := newFakeTask("third", Ok(stats.Stats{"a": 100}), nil)

	group := NewTaskGroup("root", ok, fail, never)
	reporter := &recordingReporter{}
	group.SetReporter(reporter)

	group.Execute(context.Background())

	assert.Equal(t, []string{"root", "first", "second"}, reporter.started)
	assert.Equal(t, []string{"first", "second", "root"}, reporter.finished)
	assert.NotContains(t, reporter.started, "third")
	assert.NotContains(t, reporter.finished, "third")
}

func TestTaskGroup_ChildWithOwnReporterIsNotOverridden(t *testing.T) {
	ownReporter := &recordingReporter{}
	child := newFakeTask("child", Ok(nil), nil)
	child.SetReporter(ownReporter)

	groupReporter := &recordingReporter{}
	group := NewTaskGroup("root", child)
	group.SetReporter(groupReporter)

	group.Execute(context.Background())

	assert.Equal(t, []string{"child"}, ownReporter.started)
	assert.Equal(t, []string{"root"}, groupReporter.started)
}

func TestTaskGroup_DepthAssignedToChildren(t *testing.T) {
	a := newFakeTask("a", Ok(nil), nil)
	group := NewTaskGroup("root", a)
	assert.Equal(t, 1, a.GetDepth())
	assert.Equal(t, 0, group.GetDepth())
}
