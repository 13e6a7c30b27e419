// Package sink defines the narrow interface a graph write target must
// satisfy, and the Sink stage that drives it. The actual database driver
// lives outside this package's concern (pkg/sink/neo4j is the reference
// binding); Sink itself only knows how to pull upstream rows, hand them to
// a WriteFunc, and fold the resulting Counters into the stage's Stats.
package sink

import (
	"context"
	"errors"

	"github.com/neo-technology-field/graph-etl-lib/pkg/batch"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

// ErrSinkFailure wraps any error a sink's WriteFunc or session returns,
// letting callers use errors.Is(err, sink.ErrSinkFailure) without caring
// which concrete driver raised it.
var ErrSinkFailure = errors.New("sink: write failed")

// BatchParamName is the reserved bound-parameter name a write statement
// uses for the batch of rows it's writing, e.g.
// "UNWIND $batch AS row MERGE (s:Station {id: row.id}) ...".
const BatchParamName = "batch"

// Counters reports the effect of one write, matching the shape most graph
// databases hand back from a write query's summary: nodes_created,
// relationships_created, properties_set, labels_added, constraints_added,
// indexes_added, and their _deleted/_removed counterparts. Source and
// validation counters (rows_read, valid_rows, invalid_rows) are not part
// of it.
type Counters struct {
	NodesCreated         int64
	NodesDeleted         int64
	RelationshipsCreated int64
	RelationshipsDeleted int64
	PropertiesSet        int64
	LabelsAdded          int64
	LabelsRemoved        int64
	IndexesAdded         int64
	IndexesRemoved       int64
	ConstraintsAdded     int64
	ConstraintsRemoved   int64
}

// Stats renders c as a stats.Stats map, used to merge a write's effect into
// a batch's running statistics.
func (c Counters) Stats() stats.Stats {
	return stats.Stats{
		"nodes_created":         c.NodesCreated,
		"nodes_deleted":         c.NodesDeleted,
		"relationships_created": c.RelationshipsCreated,
		"relationships_deleted": c.RelationshipsDeleted,
		"properties_set":        c.PropertiesSet,
		"labels_added":          c.LabelsAdded,
		"labels_removed":        c.LabelsRemoved,
		"indexes_added":         c.IndexesAdded,
		"indexes_removed":       c.IndexesRemoved,
		"constraints_added":     c.ConstraintsAdded,
		"constraints_removed":   c.ConstraintsRemoved,
	}
}

// Session is one write-mode conversation with the graph target. A Sink
// opens at most one Session per call to its WriteFunc; it never shares a
// Session across goroutines.
type Session interface {
	// Run executes one write unit against rows and returns the resulting
	// Counters. The query/parameter shape is entirely up to the caller's
	// WriteFunc; Session only owns the transport.
	Run(ctx context.Context, rows []rowvalue.Row) (Counters, error)
	Close(ctx context.Context) error
}

// Driver opens Sessions. The reference binding, pkg/sink/neo4j, adapts
// neo4j.DriverWithContext to this shape.
type Driver interface {
	NewSession(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}

// WriteFunc performs one write unit. Implementations typically build a
// parameterized Cypher statement from rows and delegate to Session.Run.
type WriteFunc func(ctx context.Context, session Session, rows []rowvalue.Row) (Counters, error)

// Sink wraps an upstream batch.Processor, writing every chunk it pulls
// through a session obtained from SessionFactory before forwarding the
// chunk unchanged to its own consumer. Forwarding (rather than terminating)
// lets a terminator downstream still observe the rows that were written.
type Sink struct {
	Upstream       batch.Processor
	SessionFactory func(ctx context.Context) (Session, error)
	Write          WriteFunc
}

// New builds a Sink stage.
func New(upstream batch.Processor, sessionFactory func(ctx context.Context) (Session, error), write WriteFunc) *Sink {
	return &Sink{Upstream: upstream, SessionFactory: sessionFactory, Write: write}
}

func (s *Sink) GetBatch(maxBatchSize int) *batch.Cursor {
	upstream := s.Upstream.GetBatch(maxBatchSize)
	return batch.NewCursor(func(ctx context.Context) (batch.Result, bool, error) {
		result, ok, err := upstream.Next(ctx)
		if err != nil || !ok {
			return batch.Result{}, ok, err
		}
		if result.Kind != batch.KindRows || len(result.Chunk) == 0 {
			return result, true, nil
		}

		session, err := s.SessionFactory(ctx)
		if err != nil {
			return batch.Result{}, false, errors.Join(ErrSinkFailure, err)
		}
		defer session.Close(ctx)

		counters, err := s.Write(ctx, session, result.Chunk)
		if err != nil {
			return batch.Result{}, false, errors.Join(ErrSinkFailure, err)
		}

		merged := result.Stats.Merge(counters.Stats())
		return batch.RowResult(result.Chunk, merged), true, nil
	})
}
