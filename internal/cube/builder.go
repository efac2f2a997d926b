// Package cube orchestrates cube builds: concatenating a revision's data
// table lineage into one fact table, deriving description tables and
// per-locale views, and publishing the result atomically under the
// revision's canonical schema name.
package cube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/internal/factcheck"
	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// metaAttachAlias is the name the relational store is attached under in the
// engine for the duration of a build.
const metaAttachAlias = "metastore"

// ErrBuildFailed is returned to synchronous callers when a build fails; the
// detailed trace stays in the build log for operators.
var ErrBuildFailed = errors.New("cube build failed; see build log for details")

// MetaStore is the slice of the metadata store the builder needs.
type MetaStore interface {
	GetRevision(ctx context.Context, id uuid.UUID) (*core.Revision, error)
	ListAncestorRevisions(ctx context.Context, revisionID uuid.UUID) ([]*core.Revision, error)
	ListRevisions(ctx context.Context, draftsOnly bool) ([]*core.Revision, error)
	ListDataTables(ctx context.Context, revisionIDs []uuid.UUID) ([]*core.DataTable, error)
	GetRoleMap(ctx context.Context, datasetID uuid.UUID) (core.RoleMap, error)
	ListDimensions(ctx context.Context, datasetID uuid.UUID) ([]*core.Dimension, error)
	GetMeasure(ctx context.Context, datasetID uuid.UUID) (*core.Measure, error)

	StartBuild(ctx context.Context, buildType core.BuildType, revisionID *uuid.UUID) (*core.BuildLog, error)
	UpdateBuildStatus(ctx context.Context, id uuid.UUID, status core.BuildStatus, scriptAppend string) error
	CompleteBuild(ctx context.Context, id uuid.UUID, status core.BuildStatus, errMsg string) error
	GetBuildLog(ctx context.Context, id uuid.UUID) (*core.BuildLog, error)
	ListActiveBuilds(ctx context.Context, revisionID *uuid.UUID) ([]*core.BuildLog, error)

	CreateSchema(ctx context.Context, name string) error
	DropSchema(ctx context.Context, name string) error
	SchemaExists(ctx context.Context, name string) (bool, error)
	PublishSchema(ctx context.Context, scratch, canonical string) error
	ExecSchemaDDL(ctx context.Context, stmts []string) error
	DSN() string
}

// Config carries the builder's collaborators.
type Config struct {
	Engine  *engine.Engine
	Meta    MetaStore
	Locales *locale.Registry
	Logger  *slog.Logger
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
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Builder runs cube builds.
type Builder struct {
	cfg       Config
	validator *factcheck.Validator
}

func New(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, validator: factcheck.New(cfg.Logger)}, nil
}

// Build runs one build. For single-revision types revisionID is required;
// bulk types enumerate eligible revisions themselves and issue one
// sub-build per revision, each with its own build log.
func (b *Builder) Build(ctx context.Context, revisionID *uuid.UUID, buildType core.BuildType) (*core.BuildLog, error) {
	if !core.ValidBuildType(buildType) {
		return nil, fmt.Errorf("unknown build type %q", buildType)
	}
	if buildType.Bulk() {
		return b.buildBulk(ctx, buildType)
	}
	if revisionID == nil {
		return nil, fmt.Errorf("build type %s requires a revision", buildType)
	}
	return b.buildOne(ctx, *revisionID, buildType)
}

func (b *Builder) buildOne(ctx context.Context, revisionID uuid.UUID, buildType core.BuildType) (*core.BuildLog, error) {
	// Two builds for the same revision must never run concurrently.
	active, err := b.cfg.Meta.ListActiveBuilds(ctx, &revisionID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		b.cfg.Logger.Info("build already in flight, not starting another",
			"revision", revisionID, "build", active[0].ID)
		return active[0], nil
	}

	bl, err := b.cfg.Meta.StartBuild(ctx, buildType, &revisionID)
	if err != nil {
		return nil, err
	}
	if runErr := b.run(ctx, bl, revisionID, buildType); runErr != nil {
		if err := b.cfg.Meta.CompleteBuild(ctx, bl.ID, core.BuildFailed, runErr.Error()); err != nil {
			b.cfg.Logger.Error("failed to record build failure", "build", bl.ID, "error", err)
		}
		b.cfg.Logger.Error("cube build failed",
			"build", bl.ID, "revision", revisionID, "type", buildType, "error", runErr)
		final, getErr := b.cfg.Meta.GetBuildLog(ctx, bl.ID)
		if getErr != nil {
			return bl, ErrBuildFailed
		}
		return final, ErrBuildFailed
	}

	final, err := b.cfg.Meta.GetBuildLog(ctx, bl.ID)
	if err != nil {
		return bl, nil
	}
	return final, nil
}

// run executes the build stages. An error return leaves the scratch schema
// dropped and the canonical schema, if one existed, untouched; post-rename
// failures leave the renamed schema in place and are surfaced through the
// build log.
func (b *Builder) run(ctx context.Context, bl *core.BuildLog, revisionID uuid.UUID, buildType core.BuildType) error {
	rev, err := b.cfg.Meta.GetRevision(ctx, revisionID)
	if err != nil {
		return err
	}
	roleMap, err := b.cfg.Meta.GetRoleMap(ctx, rev.DatasetID)
	if err != nil {
		return err
	}

	var pending []string
	record := func(stmts ...string) { pending = append(pending, stmts...) }
	flush := func(status core.BuildStatus) error {
		script := ""
		if len(pending) > 0 {
			script = strings.Join(pending, ";\n") + ";\n"
			pending = pending[:0]
		}
		return b.cfg.Meta.UpdateBuildStatus(ctx, bl.ID, status, script)
	}
	transition := func(status core.BuildStatus) error {
		if err := flush(status); err != nil {
			return err
		}
		b.cfg.Logger.Info("build stage", "build", bl.ID, "revision", revisionID, "status", status)
		return nil
	}

	if err := transition(core.BuildBuilding); err != nil {
		return err
	}

	scratch := engine.ScratchSchemaName(bl.ID)
	if err := b.cfg.Meta.CreateSchema(ctx, scratch); err != nil {
		return err
	}
	published := false
	defer func() {
		if !published {
			if err := b.cfg.Meta.DropSchema(context.WithoutCancel(ctx), scratch); err != nil {
				b.cfg.Logger.Warn("failed to drop scratch schema", "schema", scratch, "error", err)
			}
		}
	}()

	sess, err := b.cfg.Engine.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Release() }()

	ancestors, err := b.cfg.Meta.ListAncestorRevisions(ctx, rev.ID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(ancestors))
	for i, a := range ancestors {
		ids[i] = a.ID
	}
	tables, err := b.cfg.Meta.ListDataTables(ctx, ids)
	if err != nil {
		return err
	}

	cols, err := factColumns(tables, roleMap)
	if err != nil {
		return err
	}
	noteCol := roleMap.NoteCodesColumn()
	if noteCol == "" && hasRevisions(tables) {
		return core.NewValidationError(core.ErrNoNoteCodes, "",
			"lineage contains revising tables but no note_codes column is classified")
	}

	concat := concatSQL(tables, cols, roleMap)
	if err := sess.Exec(ctx, concat); err != nil {
		return fmt.Errorf("fact table concatenation failed: %w", err)
	}
	record(concat)

	if noteCol != "" {
		strip := stripNoteCodesSQL(noteCol)
		if err := sess.Exec(ctx, strip); err != nil {
			return fmt.Errorf("note code maintenance failed: %w", err)
		}
		record(strip)
	}
	if err := sess.Exec(ctx, dropMarkerSQL()); err != nil {
		return err
	}

	// Safety net: the merged table must still satisfy the invariants even
	// though each source table was validated at ingestion.
	if err := b.validator.Validate(ctx, sess, stagingTable, roleMap); err != nil {
		return err
	}

	if err := sess.AttachPostgres(ctx, metaAttachAlias, b.cfg.Meta.DSN()); err != nil {
		return err
	}
	defer func() { _ = sess.Detach(context.WithoutCancel(ctx), metaAttachAlias) }()

	write := writeScratchSQL(metaAttachAlias, scratch)
	if err := sess.Exec(ctx, write); err != nil {
		return fmt.Errorf("failed to write fact table to scratch schema: %w", err)
	}
	record(write)

	// Flush the engine's WAL now that its writes through the attachment are
	// done; the rename must only ever see settled data.
	if err := b.cfg.Engine.Checkpoint(ctx); err != nil {
		return fmt.Errorf("engine checkpoint failed: %w", err)
	}

	// Views, description tables and the filter table are all created inside
	// the scratch schema so a failure here leaves any previously published
	// cube untouched. Postgres views bind their tables by OID, so they
	// survive the schema rename intact.
	if buildType == core.BuildFullCube {
		described, hasMeasureTable, err := b.buildDescriptions(ctx, rev.DatasetID, scratch, record)
		if err != nil {
			return err
		}
		var stmts []string
		for _, tag := range b.cfg.Locales.Supported() {
			stmts = append(stmts, coreViewSQL(scratch, tag, cols, roleMap, described, hasMeasureTable))
		}
		stmts = append(stmts, filterTableSQL(scratch, b.cfg.Locales.Supported(), cols, roleMap, described, hasMeasureTable)...)
		if err := b.cfg.Meta.ExecSchemaDDL(ctx, stmts); err != nil {
			return fmt.Errorf("failed to build views: %w", err)
		}
		record(stmts...)
	}

	if buildType == core.BuildValidationCube {
		// Validation builds never publish; the deferred drop discards the
		// scratch schema.
		if err := flush(core.BuildBuilding); err != nil {
			return err
		}
		return b.cfg.Meta.CompleteBuild(ctx, bl.ID, core.BuildCompleted, "")
	}

	if err := transition(core.BuildSchemaRename); err != nil {
		return err
	}
	exists, err := b.cfg.Meta.SchemaExists(ctx, scratch)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("scratch schema %s disappeared before publish", scratch)
	}
	canonical := engine.CubeSchemaName(rev.ID)
	if err := b.cfg.Meta.PublishSchema(ctx, scratch, canonical); err != nil {
		return err
	}
	published = true
	record(fmt.Sprintf("ALTER SCHEMA %s RENAME TO %s", pgIdent(scratch), pgIdent(canonical)))

	if err := transition(core.BuildMaterializing); err != nil {
		return err
	}
	exists, err = b.cfg.Meta.SchemaExists(ctx, canonical)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("canonical schema %s is not visible after publish", canonical)
	}
	if err := flush(core.BuildMaterializing); err != nil {
		return err
	}

	return b.cfg.Meta.CompleteBuild(ctx, bl.ID, core.BuildCompleted, "")
}

// buildDescriptions copies dimension and measure lookup rows into the
// scratch schema as description tables.
func (b *Builder) buildDescriptions(ctx context.Context, datasetID uuid.UUID, scratch string, record func(...string)) (map[string]bool, bool, error) {
	dims, err := b.cfg.Meta.ListDimensions(ctx, datasetID)
	if err != nil {
		return nil, false, err
	}

	described := map[string]bool{}
	var stmts []string
	for _, d := range dims {
		if d.Type != core.DimensionLookupTable || d.LookupTableID == nil {
			continue
		}
		described[d.ColumnName] = true
		stmts = append(stmts, descriptionTableSQL(scratch, d))
	}

	measure, err := b.cfg.Meta.GetMeasure(ctx, datasetID)
	if err != nil {
		return nil, false, err
	}
	hasMeasureTable := measure != nil && len(measure.Rows) > 0
	if hasMeasureTable {
		stmts = append(stmts, measureTableSQL(scratch, measure))
	}

	if len(stmts) > 0 {
		if err := b.cfg.Meta.ExecSchemaDDL(ctx, stmts); err != nil {
			return nil, false, fmt.Errorf("failed to build description tables: %w", err)
		}
		record(stmts...)
	}
	return described, hasMeasureTable, nil
}

// buildBulk enumerates eligible revisions and runs one full build per
// revision sequentially, bounding the shared engine's thread and memory
// budget. Per-revision failures are captured in their own build logs; the
// bulk log summarizes.
func (b *Builder) buildBulk(ctx context.Context, buildType core.BuildType) (*core.BuildLog, error) {
	parent, err := b.cfg.Meta.StartBuild(ctx, buildType, nil)
	if err != nil {
		return nil, err
	}
	if err := b.cfg.Meta.UpdateBuildStatus(ctx, parent.ID, core.BuildBuilding, ""); err != nil {
		return nil, err
	}

	revs, err := b.cfg.Meta.ListRevisions(ctx, buildType == core.BuildDraftCubes)
	if err != nil {
		_ = b.cfg.Meta.CompleteBuild(ctx, parent.ID, core.BuildFailed, err.Error())
		return nil, err
	}

	var failed []string
	for _, rev := range revs {
		if _, err := b.buildOne(ctx, rev.ID, core.BuildFullCube); err != nil {
			failed = append(failed, rev.ID.String())
		}
	}

	if len(failed) > 0 {
		msg := fmt.Sprintf("%d of %d revision build(s) failed: %s",
			len(failed), len(revs), strings.Join(failed, ", "))
		if err := b.cfg.Meta.CompleteBuild(ctx, parent.ID, core.BuildFailed, msg); err != nil {
			return nil, err
		}
	} else {
		if err := b.cfg.Meta.CompleteBuild(ctx, parent.ID, core.BuildCompleted, ""); err != nil {
			return nil, err
		}
	}
	return b.cfg.Meta.GetBuildLog(ctx, parent.ID)
}

// hasRevisions reports whether any lineage table amends earlier facts.
func hasRevisions(tables []*core.DataTable) bool {
	for _, dt := range tables {
		if dt.Action == core.ActionAddRevise {
			return true
		}
	}
	return false
}
