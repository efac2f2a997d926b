package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// StartBuild creates a queued build log entry. revisionID is nil for bulk
// build types.
func (s *Store) StartBuild(ctx context.Context, buildType core.BuildType, revisionID *uuid.UUID) (*core.BuildLog, error) {
	log := &core.BuildLog{
		ID:         uuid.New(),
		RevisionID: revisionID,
		Type:       buildType,
		Status:     core.BuildQueued,
		StartedAt:  s.clock.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO build_logs (id, revision_id, build_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		log.ID, log.RevisionID, string(log.Type), string(log.Status), log.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start build log: %w", err)
	}
	return log, nil
}

// UpdateBuildStatus records a stage transition and appends generated script
// text for the stage.
func (s *Store) UpdateBuildStatus(ctx context.Context, id uuid.UUID, status core.BuildStatus, scriptAppend string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE build_logs
		SET status = $1, script = script || $2
		WHERE id = $3`,
		string(status), scriptAppend, id)
	if err != nil {
		return fmt.Errorf("failed to update build log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build log not found: %s", id)
	}
	return nil
}

// CompleteBuild sets the terminal status, elapsed duration and optional
// error text.
func (s *Store) CompleteBuild(ctx context.Context, id uuid.UUID, status core.BuildStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("complete build requires a terminal status, got %s", status)
	}

	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE build_logs
		SET status = $1,
		    completed_at = $2,
		    elapsed_ms = (EXTRACT(EPOCH FROM ($2::timestamptz - started_at)) * 1000)::bigint,
		    error = $3
		WHERE id = $4`,
		string(status), now, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to complete build log: %w", err)
	}
	return nil
}

// GetBuildLog fetches one full entry.
func (s *Store) GetBuildLog(ctx context.Context, id uuid.UUID) (*core.BuildLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, revision_id, build_type, status, started_at, completed_at, elapsed_ms, script, error
		FROM build_logs WHERE id = $1`, id)

	log, err := scanBuildLog(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build log not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build log: %w", err)
	}
	return log, nil
}

// ListBuildLogs filters build log entries; zero filter fields match all.
func (s *Store) ListBuildLogs(ctx context.Context, filter core.BuildLogFilter) ([]*core.BuildLog, error) {
	query := `
		SELECT id, revision_id, build_type, status, started_at, completed_at, elapsed_ms, script, error
		FROM build_logs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		query += " AND build_type = " + arg(string(filter.Type))
	}
	if filter.Status != "" {
		query += " AND status = " + arg(string(filter.Status))
	}
	if filter.RevisionID != nil {
		query += " AND revision_id = " + arg(*filter.RevisionID)
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list build logs: %w", err)
	}
	return scanBuildLogs(rows)
}

// ListActiveBuilds returns all non-terminal entries, optionally scoped to a
// revision. Callers consult this before starting a build so two builds for
// the same revision never run concurrently.
func (s *Store) ListActiveBuilds(ctx context.Context, revisionID *uuid.UUID) ([]*core.BuildLog, error) {
	query := `
		SELECT id, revision_id, build_type, status, started_at, completed_at, elapsed_ms, script, error
		FROM build_logs
		WHERE status NOT IN ($1, $2)`
	args := []any{string(core.BuildCompleted), string(core.BuildFailed)}
	if revisionID != nil {
		query += " AND revision_id = $3"
		args = append(args, *revisionID)
	}
	query += " ORDER BY started_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active builds: %w", err)
	}
	return scanBuildLogs(rows)
}

func scanBuildLogs(rows *sql.Rows) ([]*core.BuildLog, error) {
	defer func() { _ = rows.Close() }()

	var logs []*core.BuildLog
	for rows.Next() {
		log, err := scanBuildLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build logs: %w", err)
	}
	return logs, nil
}

func scanBuildLog(scan func(...any) error) (*core.BuildLog, error) {
	var (
		log       core.BuildLog
		revision  uuid.NullUUID
		buildType string
		status    string
		completed sql.NullTime
		elapsedMS int64
	)
	if err := scan(&log.ID, &revision, &buildType, &status, &log.StartedAt, &completed, &elapsedMS, &log.Script, &log.Error); err != nil {
		return nil, err
	}
	if revision.Valid {
		log.RevisionID = &revision.UUID
	}
	if completed.Valid {
		t := completed.Time
		log.CompletedAt = &t
	}
	log.Type = core.BuildType(buildType)
	log.Status = core.BuildStatus(status)
	log.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &log, nil
}
