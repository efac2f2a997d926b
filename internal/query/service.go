package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/statcube/internal/cube"
	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// MetaStore is the slice of the metadata store the query service needs.
type MetaStore interface {
	GetRevision(ctx context.Context, id uuid.UUID) (*core.Revision, error)
	GetRoleMap(ctx context.Context, datasetID uuid.UUID) (core.RoleMap, error)
}

// Config carries the service's collaborators. CubeDB is the relational
// store holding the published cube schemas the generated SQL runs against.
type Config struct {
	Cache   *Cache
	CubeDB  *sql.DB
	Meta    MetaStore
	Locales *locale.Registry
	Logger  *slog.Logger
}

func (cfg *Config) Validate() error {
	if cfg.Cache == nil {
		return errors.New("query cache is required")
	}
	if cfg.CubeDB == nil {
		return errors.New("cube database is required")
	}
	if cfg.Meta == nil {
		return errors.New("metadata store is required")
	}
	if cfg.Locales == nil {
		return errors.New("locale registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Service generates and caches consumer queries against published cubes.
type Service struct {
	cfg Config
}

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg}, nil
}

// GetOrCreate returns the cached entry for the request, generating and
// persisting one on a miss.
func (s *Service) GetOrCreate(ctx context.Context, datasetID, revisionID uuid.UUID, opts core.QueryOptions) (*core.QueryEntry, error) {
	fp := Fingerprint(datasetID, revisionID, opts)
	if hit, err := s.cfg.Cache.GetByFingerprint(ctx, fp); err != nil {
		return nil, err
	} else if hit != nil {
		return hit, nil
	}

	gen, err := s.generate(ctx, datasetID, revisionID, opts)
	if err != nil {
		return nil, err
	}

	entry := &core.QueryEntry{
		ID:            newID(),
		DatasetID:     datasetID,
		RevisionID:    revisionID,
		Fingerprint:   fp,
		Options:       opts,
		SQLByLocale:   gen.sqlByLocale,
		TotalRows:     gen.totalRows,
		ColumnMapping: gen.columnMapping,
	}
	if err := s.cfg.Cache.Insert(ctx, entry); err != nil {
		return nil, err
	}
	s.cfg.Logger.Info("query generated", "entry", entry.ID, "revision", revisionID, "rows", entry.TotalRows)
	return entry, nil
}

// RebuildForRevisions regenerates every cached entry owned by the given
// revisions in place, keeping ids stable. An entry whose regeneration fails
// (typically because its schema was removed) is deleted rather than left
// stale.
func (s *Service) RebuildForRevisions(ctx context.Context, revisionIDs []uuid.UUID) error {
	entries, err := s.cfg.Cache.ListByRevisions(ctx, revisionIDs)
	if err != nil {
		return err
	}

	for _, e := range entries {
		gen, err := s.generate(ctx, e.DatasetID, e.RevisionID, e.Options)
		if err != nil {
			s.cfg.Logger.Warn("query regeneration failed, deleting entry",
				"entry", e.ID, "revision", e.RevisionID, "error", err)
			if delErr := s.cfg.Cache.Delete(ctx, e.ID); delErr != nil {
				return delErr
			}
			continue
		}
		e.SQLByLocale = gen.sqlByLocale
		e.TotalRows = gen.totalRows
		e.ColumnMapping = gen.columnMapping
		if err := s.cfg.Cache.Update(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// PurgeUnpublished deletes every cached entry whose owning revision is no
// longer published. Returns the number of entries removed.
func (s *Service) PurgeUnpublished(ctx context.Context) (int64, error) {
	revIDs, err := s.cfg.Cache.RevisionIDs(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, id := range revIDs {
		rev, err := s.cfg.Meta.GetRevision(ctx, id)
		if err == nil && rev.Published() {
			continue
		}
		n, err := s.cfg.Cache.DeleteByRevision(ctx, id)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

type generated struct {
	sqlByLocale   map[string]string
	totalRows     int64
	columnMapping map[string]string
}

// generate builds one SELECT per supported locale and counts each. All
// locale counts must agree; a disagreement signals stale lookup data and is
// logged as a warning rather than failing the request.
func (s *Service) generate(ctx context.Context, datasetID, revisionID uuid.UUID, opts core.QueryOptions) (*generated, error) {
	schema := engine.CubeSchemaName(revisionID)

	factCols, err := s.tableColumns(ctx, schema, cube.FactTableName)
	if err != nil {
		return nil, err
	}
	if len(factCols) == 0 {
		return nil, fmt.Errorf("revision %s has no published cube", revisionID)
	}
	roleMap, err := s.cfg.Meta.GetRoleMap(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	viewCols, err := s.tableColumns(ctx, schema, cube.CoreViewName(s.cfg.Locales.Default()))
	if err != nil {
		return nil, err
	}
	viewSet := make(map[string]bool, len(viewCols))
	for _, c := range viewCols {
		viewSet[c] = true
	}

	useView := (opts.DisplayValues || opts.DisplayColumnNames || opts.FormatValues) && len(viewCols) > 0
	if (opts.DisplayValues || opts.FormatValues) && len(viewCols) == 0 {
		s.cfg.Logger.Warn("display options requested but cube has no core views; serving raw values",
			"revision", revisionID)
	}

	columnMapping := make(map[string]string, len(factCols))
	for _, c := range factCols {
		if viewSet[cube.DescriptionColumn(c)] {
			columnMapping[c] = cube.DescriptionColumn(c)
		} else {
			columnMapping[c] = c
		}
	}

	sqlByLocale := make(map[string]string, len(s.cfg.Locales.Supported()))
	for _, tag := range s.cfg.Locales.Supported() {
		stmt, err := s.buildSelect(ctx, schema, tag, factCols, viewSet, roleMap, columnMapping, opts, useView)
		if err != nil {
			return nil, err
		}
		sqlByLocale[tag] = stmt
	}

	counts, err := s.countAll(ctx, sqlByLocale)
	if err != nil {
		return nil, err
	}
	total := counts[s.cfg.Locales.Default()]
	for tag, n := range counts {
		if n != total {
			s.cfg.Logger.Warn("locale row counts disagree; lookup data may be stale",
				"revision", revisionID, "locale", tag, "count", n, "expected", total)
		}
	}

	return &generated{sqlByLocale: sqlByLocale, totalRows: total, columnMapping: columnMapping}, nil
}

// buildSelect renders one locale's SELECT. Filters and sorts are given in
// either naming direction and either value direction; both resolve to raw
// fact columns and reference codes before rendering.
func (s *Service) buildSelect(ctx context.Context, schema, tag string, factCols []string, viewSet map[string]bool, roleMap core.RoleMap, columnMapping map[string]string, opts core.QueryOptions, useView bool) (string, error) {
	target := cube.FactTableName
	if useView {
		target = cube.CoreViewName(tag)
	}

	dataCol := roleMap.DataValuesColumn()
	measureCol := roleMap.MeasureColumn()
	decimalsCol := ""
	if measureCol != "" {
		decimalsCol = cube.DescriptionColumn(measureCol) + "_decimals"
	}

	var selects []string
	for _, col := range factCols {
		expr := sqlIdent(col)
		switch {
		case useView && opts.FormatValues && col == dataCol && viewSet[decimalsCol]:
			expr = fmt.Sprintf("round(%s::numeric, coalesce(%s, 0))::text",
				sqlIdent(col), sqlIdent(decimalsCol))
		case useView && opts.DisplayValues && viewSet[cube.DescriptionColumn(col)]:
			expr = sqlIdent(cube.DescriptionColumn(col))
		}

		alias := col
		if opts.DisplayColumnNames {
			alias = columnMapping[col]
		}
		selects = append(selects, expr+" AS "+sqlIdent(alias))
	}

	var where []string
	for _, f := range opts.Filters {
		col, err := resolveColumn(f.Column, factCols)
		if err != nil {
			return "", err
		}
		vals := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			vals = append(vals, sqlLit(s.resolveValue(ctx, schema, col, tag, v)))
		}
		if len(vals) == 0 {
			continue
		}
		where = append(where, fmt.Sprintf("%s::text IN (%s)", sqlIdent(col), strings.Join(vals, ", ")))
	}

	var order []string
	for _, axis := range append(append([]string{}, opts.PivotRows...), opts.PivotColumns...) {
		col, err := resolveColumn(axis, factCols)
		if err != nil {
			return "", err
		}
		order = append(order, sqlIdent(col))
	}
	for _, so := range opts.Sort {
		col, err := resolveColumn(so.Column, factCols)
		if err != nil {
			return "", err
		}
		dir := ""
		if so.Descending {
			dir = " DESC"
		}
		order = append(order, sqlIdent(col)+dir)
	}

	stmt := fmt.Sprintf("SELECT %s\nFROM %s.%s",
		strings.Join(selects, ",\n    "), sqlIdent(schema), target)
	if len(where) > 0 {
		stmt += "\nWHERE " + strings.Join(where, "\n  AND ")
	}
	if len(order) > 0 {
		stmt += "\nORDER BY " + strings.Join(order, ", ")
	}
	return stmt, nil
}

// countAll issues one COUNT(*) per locale concurrently; the per-locale
// queries are independent until the disagreement check.
func (s *Service) countAll(ctx context.Context, sqlByLocale map[string]string) (map[string]int64, error) {
	counts := make(map[string]int64, len(sqlByLocale))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for tag, stmt := range sqlByLocale {
		g.Go(func() error {
			var n int64
			q := fmt.Sprintf("SELECT count(*) FROM (%s) q", stmt)
			if err := s.cfg.CubeDB.QueryRowContext(gctx, q).Scan(&n); err != nil {
				return fmt.Errorf("count for locale %s failed: %w", tag, err)
			}
			mu.Lock()
			counts[tag] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// resolveValue maps a filter value to its reference code through the filter
// table: consumers may send either the code or the display label. Values
// absent from the filter table pass through unchanged and simply match
// nothing.
func (s *Service) resolveValue(ctx context.Context, schema, column, tag, value string) string {
	var resolved string
	err := s.cfg.CubeDB.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT value FROM %s.%s WHERE column_name = $1 AND locale = $2 AND (value = $3 OR label = $3) LIMIT 1",
		sqlIdent(schema), cube.FilterTableName),
		column, tag, value).Scan(&resolved)
	if err != nil {
		return value
	}
	return resolved
}

// resolveColumn maps a column reference in either direction (raw fact
// column or its display name) back to the raw fact column.
func resolveColumn(name string, factCols []string) (string, error) {
	for _, c := range factCols {
		if c == name {
			return c, nil
		}
	}
	for _, c := range factCols {
		if cube.DescriptionColumn(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown column %q in query options", name)
}

// tableColumns lists a relation's columns in ordinal order; empty when the
// relation does not exist.
func (s *Service) tableColumns(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := s.cfg.CubeDB.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s.%s: %w", schema, table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func sqlIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlLit(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
