// Package etlctx carries the handful of collaborators every stage needs but
// none should construct for itself: how to open a write session against the
// graph target, where to report progress, and how to look up configuration.
package etlctx

import (
	"context"
	"os"

	"github.com/neo-technology-field/graph-etl-lib/pkg/progress"
	"github.com/neo-technology-field/graph-etl-lib/pkg/sink"
)

// EnvFunc looks up an environment variable, mirroring os.LookupEnv's
// signature so tests can substitute a fake environment without touching
// process-global state.
type EnvFunc func(key string) (string, bool)

// Context bundles the collaborators threaded through a pipeline run. It is
// always passed by pointer; nothing in this module copies it.
type Context struct {
	// SessionFactory opens a new write-mode session against the graph
	// target. Stages call it once per unit of work they need a session
	// for rather than sharing one session across goroutines.
	SessionFactory func(ctx context.Context) (sink.Session, error)

	// Reporter receives task registration and lifecycle events.
	Reporter progress.Reporter

	// Env looks up configuration; defaults to os.LookupEnv.
	Env EnvFunc
}

// New builds a Context, defaulting Env to os.LookupEnv when nil.
func New(sessionFactory func(ctx context.Context) (sink.Session, error), reporter progress.Reporter) *Context {
	return &Context{
		SessionFactory: sessionFactory,
		Reporter:       reporter,
		Env:            os.LookupEnv,
	}
}

// Lookup reads key through c.Env, falling back to os.LookupEnv if the
// Context was constructed without one (e.g. a zero-value Context in a test).
func (c *Context) Lookup(key string) (string, bool) {
	if c.Env != nil {
		return c.Env(key)
	}
	return os.LookupEnv(key)
}
