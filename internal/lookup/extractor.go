package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/internal/ingest"
	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// MetaStore is the slice of the metadata store the extractor needs.
type MetaStore interface {
	GetRevision(ctx context.Context, id uuid.UUID) (*core.Revision, error)
	ListAncestorRevisions(ctx context.Context, revisionID uuid.UUID) ([]*core.Revision, error)
	ListDataTables(ctx context.Context, revisionIDs []uuid.UUID) ([]*core.DataTable, error)
	GetRoleMap(ctx context.Context, datasetID uuid.UUID) (core.RoleMap, error)
	ListDimensions(ctx context.Context, datasetID uuid.UUID) ([]*core.Dimension, error)
	UpdateDimension(ctx context.Context, id uuid.UUID, dimType core.DimensionType, lookupTableID *uuid.UUID) error
	ReplaceDimensionRows(ctx context.Context, dimensionID uuid.UUID, rows []core.DimensionRow) error
	UpsertMeasure(ctx context.Context, m *core.Measure) error
	GetMeasure(ctx context.Context, datasetID uuid.UUID) (*core.Measure, error)
	ReplaceMeasureRows(ctx context.Context, datasetID uuid.UUID, rows []core.MeasureRow) error
	CreateLookupTable(ctx context.Context, lt *core.LookupTable) error
}

// Config carries the extractor's collaborators.
type Config struct {
	Engine     *engine.Engine
	Meta       MetaStore
	Locales    *locale.Registry
	StagingDir string
	Logger     *slog.Logger
}

func (cfg *Config) Validate() error {
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Meta == nil {
		return errors.New("metadata store is required")
	}
	if cfg.Locales == nil {
		return errors.New("locale registry is required")
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Upload is the raw reference table handed to the extractor.
type Upload struct {
	Filename     string
	MimeType     string
	Data         []byte
	HeaderLocale string
	Override     *Override
}

// Extractor attaches lookup tables to dimensions and the measure.
type Extractor struct {
	cfg Config
}

func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg}, nil
}

// AttachToDimension parses an uploaded reference table, validates it against
// the dimension's fact column across the revision's lineage, and persists
// the per-locale rows. The dimension's type becomes lookup_table.
func (x *Extractor) AttachToDimension(ctx context.Context, revisionID, dimensionID uuid.UUID, up Upload) (*core.LookupTable, error) {
	rev, err := x.cfg.Meta.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	dims, err := x.cfg.Meta.ListDimensions(ctx, rev.DatasetID)
	if err != nil {
		return nil, err
	}
	var dim *core.Dimension
	for _, d := range dims {
		if d.ID == dimensionID {
			dim = d
			break
		}
	}
	if dim == nil {
		return nil, fmt.Errorf("dimension %s does not belong to dataset %s", dimensionID, rev.DatasetID)
	}

	lt, rows, err := x.load(ctx, rev, up, dim.ColumnName, false)
	if err != nil {
		return nil, err
	}
	if err := x.cfg.Meta.CreateLookupTable(ctx, lt); err != nil {
		return nil, err
	}

	dimRows := make([]core.DimensionRow, len(rows))
	for i, r := range rows {
		dimRows[i] = core.DimensionRow{
			Reference:   r.Reference,
			Locale:      r.Locale,
			Description: r.Description,
			Notes:       r.Notes,
			SortOrder:   r.SortOrder,
			Hierarchy:   r.Hierarchy,
		}
	}
	if err := x.cfg.Meta.ReplaceDimensionRows(ctx, dimensionID, dimRows); err != nil {
		return nil, err
	}
	if err := x.cfg.Meta.UpdateDimension(ctx, dimensionID, core.DimensionLookupTable, &lt.ID); err != nil {
		return nil, err
	}

	x.cfg.Logger.Info("lookup attached to dimension",
		"dimension", dim.ColumnName, "shape", lt.Shape, "rows", len(dimRows))
	return lt, nil
}

// AttachToMeasure parses an uploaded reference table for the dataset's
// measure column and persists the measure table rows, including display
// format and decimal count.
func (x *Extractor) AttachToMeasure(ctx context.Context, revisionID uuid.UUID, up Upload) (*core.LookupTable, error) {
	rev, err := x.cfg.Meta.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	roleMap, err := x.cfg.Meta.GetRoleMap(ctx, rev.DatasetID)
	if err != nil {
		return nil, err
	}
	measureCol := roleMap.MeasureColumn()
	if measureCol == "" {
		return nil, fmt.Errorf("dataset %s has no measure column", rev.DatasetID)
	}

	lt, rows, err := x.load(ctx, rev, up, measureCol, true)
	if err != nil {
		return nil, err
	}
	if err := x.cfg.Meta.CreateLookupTable(ctx, lt); err != nil {
		return nil, err
	}

	measure := &core.Measure{
		DatasetID:     rev.DatasetID,
		ColumnName:    measureCol,
		JoinColumn:    lt.JoinColumn,
		LookupTableID: &lt.ID,
	}
	if err := x.cfg.Meta.UpsertMeasure(ctx, measure); err != nil {
		return nil, err
	}
	if err := x.cfg.Meta.ReplaceMeasureRows(ctx, rev.DatasetID, rows); err != nil {
		return nil, err
	}

	x.cfg.Logger.Info("lookup attached to measure",
		"measure", measureCol, "shape", lt.Shape, "rows", len(rows))
	return lt, nil
}

// load stages the upload, reads it into the engine, detects the shape,
// validates it against the fact column's references, copies the table into
// the durable lookup schema and extracts its per-locale rows.
func (x *Extractor) load(ctx context.Context, rev *core.Revision, up Upload, factColumn string, forMeasure bool) (*core.LookupTable, []core.MeasureRow, error) {
	kind, err := ingest.DetectFileKind(up.MimeType, up.Filename)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.New()
	staged := filepath.Join(x.cfg.StagingDir, engine.LookupTableName(id)+ingest.Extension(kind))
	if err := os.WriteFile(staged, up.Data, 0o600); err != nil {
		return nil, nil, fmt.Errorf("failed to stage lookup upload: %w", err)
	}
	defer func() { _ = os.Remove(staged) }()

	sess, err := x.cfg.Engine.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = sess.Release() }()

	tempTable := "lookup_staging"
	if err := ingest.LoadTemp(ctx, sess, tempTable, kind, staged); err != nil {
		return nil, nil, err
	}

	cols, err := sess.TableColumns(ctx, tempTable)
	if err != nil {
		return nil, nil, err
	}
	lt, err := DetectShape(cols, up.HeaderLocale, x.cfg.Locales, up.Override)
	if err != nil {
		return nil, nil, err
	}
	lt.ID = id

	if err := x.validate(ctx, sess, rev, lt, tempTable, factColumn, forMeasure); err != nil {
		return nil, nil, err
	}

	durable := engine.LookupTableRef(id)
	if err := sess.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", engine.SchemaLookupTables)); err != nil {
		return nil, nil, err
	}
	if err := sess.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", durable, tempTable)); err != nil {
		return nil, nil, fmt.Errorf("failed to persist lookup table: %w", err)
	}

	rows, err := x.extractRows(ctx, sess, lt, tempTable)
	if err != nil {
		return nil, nil, err
	}
	return lt, rows, nil
}

// factUnion builds a UNIONed SELECT of the fact column over every ancestor
// data table of the revision.
func (x *Extractor) factUnion(ctx context.Context, rev *core.Revision, factColumn string) (string, error) {
	ancestors, err := x.cfg.Meta.ListAncestorRevisions(ctx, rev.ID)
	if err != nil {
		return "", err
	}
	ids := make([]uuid.UUID, len(ancestors))
	for i, a := range ancestors {
		ids[i] = a.ID
	}
	tables, err := x.cfg.Meta.ListDataTables(ctx, ids)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", core.NewValidationError(core.ErrNoDraftRevision, "",
			"revision %s has no ingested data tables", rev.ID)
	}
	parts := make([]string, len(tables))
	for i, dt := range tables {
		parts[i] = fmt.Sprintf("SELECT %s FROM %s",
			engine.QuoteIdent(factColumn), engine.DataTableRef(dt.ID))
	}
	return strings.Join(parts, " UNION "), nil
}

// validate runs the cross-table checks: every fact reference has a lookup
// row, references cast to the fact column's type, decimal declarations
// parse, and declared display formats are known.
func (x *Extractor) validate(ctx context.Context, sess *engine.Session, rev *core.Revision, lt *core.LookupTable, tempTable, factColumn string, forMeasure bool) error {
	facts, err := x.factUnion(ctx, rev, factColumn)
	if err != nil {
		return err
	}
	join := engine.QuoteIdent(lt.JoinColumn)
	factCol := engine.QuoteIdent(factColumn)

	// Fact references without a lookup row.
	missing, err := sampleStrings(ctx, sess, fmt.Sprintf(
		`SELECT DISTINCT f.%s::VARCHAR FROM (%s) f
		 LEFT JOIN %s l ON f.%s::VARCHAR = l.%s::VARCHAR
		 WHERE l.%s IS NULL LIMIT %d`,
		factCol, facts, tempTable, factCol, join, join, core.MaxSampleRows))
	if err != nil {
		return fmt.Errorf("lookup coverage check failed: %w", err)
	}
	if len(missing) > 0 {
		samples := make([]core.SampleRow, len(missing))
		for i, v := range missing {
			samples[i] = core.SampleRow{factColumn: v}
		}
		return core.NewValidationError(core.ErrLookupMissingValues, factColumn,
			"%d fact table value(s) have no lookup row", len(missing)).WithSamples(samples)
	}

	// The join column must cast to the fact column's inferred type, else
	// cube joins would silently drop rows.
	factType, err := columnType(ctx, sess, facts, factCol)
	if err != nil {
		return err
	}
	if factType != "" && !strings.EqualFold(factType, "varchar") {
		bad, err := sampleStrings(ctx, sess, fmt.Sprintf(
			`SELECT %s::VARCHAR FROM %s WHERE %s IS NOT NULL AND TRY_CAST(%s AS %s) IS NULL LIMIT %d`,
			join, tempTable, join, join, factType, core.MaxSampleRows))
		if err != nil {
			return fmt.Errorf("lookup type check failed: %w", err)
		}
		if len(bad) > 0 {
			samples := make([]core.SampleRow, len(bad))
			for i, v := range bad {
				samples[i] = core.SampleRow{lt.JoinColumn: v}
			}
			return core.NewValidationError(core.ErrWrongDataTypeInReference, lt.JoinColumn,
				"%d reference value(s) do not match the fact column type %s", len(bad), factType).WithSamples(samples)
		}
	}

	if lt.DecimalColumn != "" {
		dec := engine.QuoteIdent(lt.DecimalColumn)
		bad, err := sampleStrings(ctx, sess, fmt.Sprintf(
			`SELECT %s::VARCHAR FROM %s
			 WHERE %s IS NOT NULL AND (TRY_CAST(%s AS INTEGER) IS NULL OR TRY_CAST(%s AS INTEGER) < 0)
			 LIMIT %d`,
			dec, tempTable, dec, dec, dec, core.MaxSampleRows))
		if err != nil {
			return fmt.Errorf("decimal column check failed: %w", err)
		}
		if len(bad) > 0 {
			samples := make([]core.SampleRow, len(bad))
			for i, v := range bad {
				samples[i] = core.SampleRow{lt.DecimalColumn: v}
			}
			return core.NewValidationError(core.ErrBadDecimalColumn, lt.DecimalColumn,
				"%d value(s) are not non-negative integers", len(bad)).WithSamples(samples)
		}
	}

	if forMeasure && lt.FormatColumn != "" {
		fc := engine.QuoteIdent(lt.FormatColumn)
		formats, err := sampleStrings(ctx, sess, fmt.Sprintf(
			`SELECT DISTINCT %s::VARCHAR FROM %s WHERE %s IS NOT NULL`, fc, tempTable, fc))
		if err != nil {
			return fmt.Errorf("format column check failed: %w", err)
		}
		for _, f := range formats {
			if !locale.ValidDisplayFormat(f) {
				return core.NewValidationError(core.ErrBadDecimalColumn, lt.FormatColumn,
					"unknown display format %q", f)
			}
		}
	}

	if lt.Shape == core.LookupShapeLong {
		return x.validateLongCoverage(ctx, sess, lt, tempTable)
	}
	return nil
}

// validateLongCoverage enforces one row per reference per supported locale
// for the long shape.
func (x *Extractor) validateLongCoverage(ctx context.Context, sess *engine.Session, lt *core.LookupTable, tempTable string) error {
	lang := engine.QuoteIdent(lt.LanguageColumn)
	join := engine.QuoteIdent(lt.JoinColumn)

	for _, tag := range x.cfg.Locales.Supported() {
		preds := languagePredicates(x.cfg.Locales, lang, tag)
		missing, err := sampleStrings(ctx, sess, fmt.Sprintf(
			`SELECT DISTINCT %s::VARCHAR FROM %s
			 EXCEPT
			 SELECT DISTINCT %s::VARCHAR FROM %s WHERE %s
			 LIMIT %d`,
			join, tempTable, join, tempTable, preds, core.MaxSampleRows))
		if err != nil {
			return fmt.Errorf("language coverage check failed: %w", err)
		}
		if len(missing) > 0 {
			samples := make([]core.SampleRow, len(missing))
			for i, v := range missing {
				samples[i] = core.SampleRow{lt.JoinColumn: v}
			}
			return core.NewValidationError(core.ErrMissingLanguages, lt.LanguageColumn,
				"%d reference(s) have no row for locale %s", len(missing), tag).WithSamples(samples)
		}
	}
	return nil
}

// languagePredicates builds the WHERE clause matching one locale in a long
// table's language column. Publishers write "en", "en-GB", "English" or the
// language's own name, so all spellings are accepted.
func languagePredicates(reg *locale.Registry, langIdent, tag string) string {
	accepted := []string{
		strings.ToLower(tag),
		locale.Suffix(tag),
	}
	for _, supported := range reg.Supported() {
		vocab := reg.Vocabulary(supported)
		if name, ok := vocab.LanguageNames[tag]; ok {
			accepted = append(accepted, strings.ToLower(name))
		}
	}
	quoted := make([]string, len(accepted))
	for i, a := range accepted {
		quoted[i] = engine.QuoteLiteral(a)
	}
	return fmt.Sprintf("lower(trim(%s::VARCHAR)) IN (%s)", langIdent, strings.Join(quoted, ", "))
}

// extractRows reads the per-locale rows out of the staged lookup table.
func (x *Extractor) extractRows(ctx context.Context, sess *engine.Session, lt *core.LookupTable, tempTable string) ([]core.MeasureRow, error) {
	var out []core.MeasureRow
	switch lt.Shape {
	case core.LookupShapeWide:
		for _, tag := range x.cfg.Locales.Supported() {
			rows, err := x.readRows(ctx, sess, lt, tempTable, tag, lt.DescriptionColumns[tag], lt.NotesColumns[tag], "")
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
	case core.LookupShapeLong:
		desc := lt.DescriptionColumns[""]
		notes := lt.NotesColumns[""]
		lang := engine.QuoteIdent(lt.LanguageColumn)
		for _, tag := range x.cfg.Locales.Supported() {
			rows, err := x.readRows(ctx, sess, lt, tempTable, tag, desc, notes, languagePredicates(x.cfg.Locales, lang, tag))
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
	}
	return out, nil
}

func (x *Extractor) readRows(ctx context.Context, sess *engine.Session, lt *core.LookupTable, tempTable, tag, descCol, notesCol, where string) ([]core.MeasureRow, error) {
	sel := func(col, cast string) string {
		if col == "" {
			return "NULL"
		}
		return engine.QuoteIdent(col) + cast
	}
	q := fmt.Sprintf(
		`SELECT %s::VARCHAR, %s, %s, %s, %s, %s, %s, %s FROM %s`,
		engine.QuoteIdent(lt.JoinColumn),
		sel(descCol, "::VARCHAR"),
		sel(notesCol, "::VARCHAR"),
		sel(lt.SortColumn, "::INTEGER"),
		sel(lt.FormatColumn, "::VARCHAR"),
		sel(lt.DecimalColumn, "::INTEGER"),
		sel(lt.MeasureTypeColumn, "::VARCHAR"),
		sel(lt.HierarchyColumn, "::VARCHAR"),
		tempTable)
	if where != "" {
		q += " WHERE " + where
	}

	rows, err := sess.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.MeasureRow
	for rows.Next() {
		var (
			ref                              string
			desc, notes, format, mtype, hier *string
			sort, decimals                   *int
		)
		if err := rows.Scan(&ref, &desc, &notes, &sort, &format, &decimals, &mtype, &hier); err != nil {
			return nil, fmt.Errorf("failed to scan lookup row: %w", err)
		}
		r := core.MeasureRow{Reference: ref, Locale: tag}
		if desc != nil {
			r.Description = *desc
		}
		if notes != nil {
			r.Notes = *notes
		}
		if sort != nil {
			r.SortOrder = *sort
		}
		if format != nil {
			r.Format = *format
		}
		if decimals != nil {
			r.Decimals = *decimals
		}
		if mtype != nil {
			r.MeasureType = *mtype
		}
		if hier != nil {
			r.Hierarchy = *hier
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lookup rows: %w", err)
	}
	return out, nil
}

// sampleStrings runs a single-column query and returns the values as strings.
func sampleStrings(ctx context.Context, sess *engine.Session, q string) ([]string, error) {
	rows, err := sess.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, rows.Err()
}

// columnType reports the engine's inferred type for one column of an
// arbitrary SELECT. An empty table yields no type, which disables the
// cast check rather than failing it.
func columnType(ctx context.Context, sess *engine.Session, selectSQL, colIdent string) (string, error) {
	var t string
	err := sess.QueryRow(ctx, fmt.Sprintf(
		"SELECT typeof(%s) FROM (%s) LIMIT 1", colIdent, selectSQL)).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to infer fact column type: %w", err)
	}
	return t, nil
}
