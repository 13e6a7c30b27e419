package graphmirror

import (
	"context"
	"fmt"
)

// upsertTask inserts a task row or, if it already exists (re-registration of
// the same run), updates its name/depth in place.
func (s *Store) upsertTask(ctx context.Context, uuid, name string, depth int) error {
	query := `
		INSERT INTO tasks (uuid, name, depth, state)
		VALUES ($1, $2, $3, 'open')
		ON CONFLICT (uuid) DO UPDATE SET name = $2, depth = $3`

	_, err := s.pool.Exec(ctx, query, uuid, name, depth)
	if err != nil {
		return fmt.Errorf("graphmirror: upsert task %s: %w", uuid, err)
	}
	return nil
}

// insertEdge records a parent/child relationship; it is idempotent across
// re-registration.
func (s *Store) insertEdge(ctx context.Context, parentUUID, childUUID string) error {
	query := `
		INSERT INTO task_edges (parent_uuid, child_uuid)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	_, err := s.pool.Exec(ctx, query, parentUUID, childUUID)
	if err != nil {
		return fmt.Errorf("graphmirror: insert edge %s->%s: %w", parentUUID, childUUID, err)
	}
	return nil
}

// markStarted transitions a task to the running state.
func (s *Store) markStarted(ctx context.Context, uuid string) error {
	query := `UPDATE tasks SET state = 'running', started_at = NOW() WHERE uuid = $1`
	_, err := s.pool.Exec(ctx, query, uuid)
	if err != nil {
		return fmt.Errorf("graphmirror: mark started %s: %w", uuid, err)
	}
	return nil
}

// markFinished transitions a task to success or failure and records its
// error message, if any.
func (s *Store) markFinished(ctx context.Context, uuid string, success bool, errMsg string) error {
	state := "success"
	if !success {
		state = "failure"
	}
	query := `
		UPDATE tasks
		SET state = $2, success = $3, error = NULLIF($4, ''), finished_at = NOW()
		WHERE uuid = $1`
	_, err := s.pool.Exec(ctx, query, uuid, state, success, errMsg)
	if err != nil {
		return fmt.Errorf("graphmirror: mark finished %s: %w", uuid, err)
	}
	return nil
}

// upsertStat writes one statistics counter for a task, overwriting any
// prior value written for the same key (progress reports and the final
// summary both funnel through this, each call carrying the latest
// cumulative value rather than a delta).
func (s *Store) upsertStat(ctx context.Context, uuid, key string, value int64) error {
	query := `
		INSERT INTO task_stats (task_uuid, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (task_uuid, key) DO UPDATE SET value = $3, updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, uuid, key, value)
	if err != nil {
		return fmt.Errorf("graphmirror: upsert stat %s.%s: %w", uuid, key, err)
	}
	return nil
}
