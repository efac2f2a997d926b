package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// CreateDataset inserts a new dataset.
func (s *Store) CreateDataset(ctx context.Context, title string) (*core.Dataset, error) {
	ds := &core.Dataset{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: s.clock.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, title, created_at) VALUES ($1, $2, $3)`,
		ds.ID, ds.Title, ds.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	return ds, nil
}

// GetDataset retrieves a dataset by id.
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (*core.Dataset, error) {
	var ds core.Dataset
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM datasets WHERE id = $1`, id).
		Scan(&ds.ID, &ds.Title, &ds.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &ds, nil
}

// CreateRevision appends a revision to a dataset's lineage.
func (s *Store) CreateRevision(ctx context.Context, datasetID uuid.UUID) (*core.Revision, error) {
	rev := &core.Revision{
		ID:        uuid.New(),
		DatasetID: datasetID,
		CreatedAt: s.clock.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO revisions (id, dataset_id, revision_index, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(revision_index), 0) + 1 FROM revisions WHERE dataset_id = $2), $3)
		RETURNING revision_index`,
		rev.ID, datasetID, rev.CreatedAt).Scan(&rev.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to create revision: %w", err)
	}
	return rev, nil
}

// GetRevision retrieves a revision by id.
func (s *Store) GetRevision(ctx context.Context, id uuid.UUID) (*core.Revision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, revision_index, created_at, published_at
		FROM revisions WHERE id = $1`, id)

	rev, err := scanRevision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}
	return rev, nil
}

// ListAncestorRevisions returns the revision and every earlier revision of
// the same dataset, oldest first.
func (s *Store) ListAncestorRevisions(ctx context.Context, revisionID uuid.UUID) ([]*core.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.dataset_id, r.revision_index, r.created_at, r.published_at
		FROM revisions r
		JOIN revisions target ON target.dataset_id = r.dataset_id
		WHERE target.id = $1 AND r.revision_index <= target.revision_index
		ORDER BY r.revision_index`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ancestor revisions: %w", err)
	}
	return scanRevisions(rows)
}

// ListRevisions returns revisions, optionally only unpublished drafts.
func (s *Store) ListRevisions(ctx context.Context, draftsOnly bool) ([]*core.Revision, error) {
	query := `
		SELECT id, dataset_id, revision_index, created_at, published_at
		FROM revisions`
	if draftsOnly {
		query += ` WHERE published_at IS NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return scanRevisions(rows)
}

// FirstRevision returns a dataset's first revision.
func (s *Store) FirstRevision(ctx context.Context, datasetID uuid.UUID) (*core.Revision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, revision_index, created_at, published_at
		FROM revisions WHERE dataset_id = $1
		ORDER BY revision_index LIMIT 1`, datasetID)

	rev, err := scanRevision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewValidationError(core.ErrNoDraftRevision, "", "dataset %s has no revisions", datasetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first revision: %w", err)
	}
	return rev, nil
}

// PublishRevision stamps the revision published.
func (s *Store) PublishRevision(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE revisions SET published_at = $1 WHERE id = $2 AND published_at IS NULL`,
		s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to publish revision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("revision %s not found or already published", id)
	}
	return nil
}

func scanRevisions(rows *sql.Rows) ([]*core.Revision, error) {
	defer func() { _ = rows.Close() }()

	var revs []*core.Revision
	for rows.Next() {
		rev, err := scanRevision(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revisions: %w", err)
	}
	return revs, nil
}

func scanRevision(scan func(...any) error) (*core.Revision, error) {
	var (
		rev       core.Revision
		published sql.NullTime
	)
	if err := scan(&rev.ID, &rev.DatasetID, &rev.Index, &rev.CreatedAt, &published); err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time
		rev.PublishedAt = &t
	}
	return &rev, nil
}
