// Package graphmirror mirrors task and progress events into a secondary
// Postgres database, for deployments that want a durable record of a run's
// task tree alongside the log lines progress.LogReporter already prints.
//
// It adapts the connection-pool and migration wiring the teacher built for
// its compliance audit store (pkg/compliance/storage/postgres), repointed
// at task/progress semantics instead of takedown-record semantics: one row
// per task, a parent/child edge table, and a per-task statistics table.
package graphmirror

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config holds the connection settings for the mirroring store.
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
}

// execer is the slice of *pgxpool.Pool the repository methods need.
// Narrowing to an interface lets tests exercise the tree-walk and SQL
// shape against a fake without a live Postgres connection.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store owns the connection pool used by Reporter. Construct one with New;
// the schema is migrated by Reporter.RegisterTasks on first use, or by an
// explicit call to Migrate.
type Store struct {
	pool execer
	raw  *pgxpool.Pool // nil when pool was swapped in for testing; Close/Migrate need the concrete pool
	cfg  *Config
}

// New opens a connection pool against cfg.ConnectionString and pings it
// before returning, matching the teacher's NewComplianceDatabase.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("graphmirror: database config is required")
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("graphmirror: connection string is required")
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 5
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("graphmirror: parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("graphmirror: create connection pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("graphmirror: ping database: %w", err)
	}

	return &Store{pool: pool, raw: pool, cfg: cfg}, nil
}

// newWithExecer builds a Store around a fake execer for unit tests that
// don't stand up a real Postgres instance; Close/Migrate are no-ops on it.
func newWithExecer(pool execer) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.raw != nil {
		s.raw.Close()
	}
}

// Migrate applies the embedded task-tree schema migrations. RegisterTasks
// calls this on first use so a Reporter is self-provisioning; callers may
// also call it eagerly at startup.
func (s *Store) Migrate(ctx context.Context) error {
	if s.cfg == nil {
		// Fake execer wired in for tests; nothing to migrate.
		return nil
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("graphmirror: load embedded migrations: %w", err)
	}

	migrationDB, err := sql.Open("postgres", s.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("graphmirror: open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("graphmirror: create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("graphmirror: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("graphmirror: apply migrations: %w", err)
	}
	return nil
}
