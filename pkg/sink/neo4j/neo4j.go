// Package neo4j adapts github.com/neo4j/neo4j-go-driver/v5 to the narrow
// sink.Driver/sink.Session contract. It is the one dependency in this
// module with no precedent in the retrieval pack's own import graphs,
// named directly because the environment variables this engine reads
// (NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD, NEO4J_DATABASE,
// NEO4J_TEST_DATABASE) name exactly this target.
package neo4j

import (
	"context"
	"errors"
	"fmt"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo-technology-field/graph-etl-lib/pkg/rowvalue"
	"github.com/neo-technology-field/graph-etl-lib/pkg/sink"
)

// Config names the connection the Driver opens.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Driver adapts neo4j.DriverWithContext to sink.Driver.
type Driver struct {
	inner    neo4jdriver.DriverWithContext
	database string
}

// NewDriver opens a neo4j.DriverWithContext against cfg and wraps it.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	inner, err := neo4jdriver.NewDriverWithContext(cfg.URI, neo4jdriver.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to construct driver: %w", err)
	}
	if err := inner.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j: connectivity check failed: %w", err)
	}
	return &Driver{inner: inner, database: cfg.Database}, nil
}

func (d *Driver) NewSession(ctx context.Context) (sink.Session, error) {
	session := d.inner.NewSession(ctx, neo4jdriver.SessionConfig{
		AccessMode:   neo4jdriver.AccessModeWrite,
		DatabaseName: d.database,
	})
	return &Session{inner: session}, nil
}

func (d *Driver) Close(ctx context.Context) error {
	return d.inner.Close(ctx)
}

// Session adapts a neo4j.SessionWithContext to sink.Session. The query it
// runs and the parameter shape it builds are supplied by the caller's
// WriteFunc via CypherWriter, so this adapter itself is write-query-agnostic.
type Session struct {
	inner neo4jdriver.SessionWithContext
}

// CypherWriter builds the parameterized Cypher statement and bound
// parameters a single write unit runs with. rows is handed to the writer
// as-is; the writer returns the statement text and the full params map,
// usually built with BatchParams plus any extra named parameters,
// e.g. "UNWIND $batch AS row MERGE (s:Station {id: row.id}) SET s.name = row.name".
type CypherWriter func(rows []rowvalue.Row) (query string, params map[string]interface{})

// BatchParams builds the params map CypherWriter implementations should
// start from: rows bound under sink.BatchParamName ("batch"), the reserved
// name spec.md §4.4 requires every write statement bind its batch to.
func BatchParams(rows []rowvalue.Row) map[string]interface{} {
	return map[string]interface{}{sink.BatchParamName: RowsToParams(rows)}
}

// NewCypherWriteFunc adapts a CypherWriter into a sink.WriteFunc.
func NewCypherWriteFunc(writer CypherWriter) sink.WriteFunc {
	return func(ctx context.Context, session sink.Session, rows []rowvalue.Row) (sink.Counters, error) {
		s, ok := session.(*Session)
		if !ok {
			return sink.Counters{}, errors.New("neo4j: session is not a *neo4j.Session")
		}
		query, params := writer(rows)
		return s.run(ctx, query, params)
	}
}

func (s *Session) Run(ctx context.Context, rows []rowvalue.Row) (sink.Counters, error) {
	return sink.Counters{}, errors.New("neo4j: Session.Run requires a CypherWriter-backed sink.WriteFunc; call via NewCypherWriteFunc")
}

func (s *Session) run(ctx context.Context, query string, params map[string]interface{}) (sink.Counters, error) {
	result, err := s.inner.Run(ctx, query, params)
	if err != nil {
		return sink.Counters{}, fmt.Errorf("neo4j: run failed: %w", err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return sink.Counters{}, fmt.Errorf("neo4j: consume failed: %w", err)
	}

	c := summary.Counters()
	return sink.Counters{
		NodesCreated:         int64(c.NodesCreated()),
		NodesDeleted:         int64(c.NodesDeleted()),
		RelationshipsCreated: int64(c.RelationshipsCreated()),
		RelationshipsDeleted: int64(c.RelationshipsDeleted()),
		PropertiesSet:        int64(c.PropertiesSet()),
		LabelsAdded:          int64(c.LabelsAdded()),
		LabelsRemoved:        int64(c.LabelsRemoved()),
		IndexesAdded:         int64(c.IndexesAdded()),
		IndexesRemoved:       int64(c.IndexesRemoved()),
		ConstraintsAdded:     int64(c.ConstraintsAdded()),
		ConstraintsRemoved:   int64(c.ConstraintsRemoved()),
	}, nil
}

func (s *Session) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

// RowsToParams converts rows into the generic []map[string]interface{}
// shape an UNWIND $batch Cypher statement expects, leaving out the
// reserved origin-index column.
func RowsToParams(rows []rowvalue.Row) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			if k == rowvalue.OriginIndexKey {
				continue
			}
			m[k] = v.Any()
		}
		out[i] = m
	}
	return out
}
