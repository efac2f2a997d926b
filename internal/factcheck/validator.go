// Package factcheck enforces the structural invariants of a built fact
// table: composite key uniqueness, completeness of key columns, and the
// note code vocabulary.
package factcheck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// noteCodes is the fixed footnote marker vocabulary. Every comma-separated
// entry of a note_codes cell must be a member.
var noteCodes = map[string]bool{
	"a": true, "c": true, "e": true, "f": true, "k": true,
	"low": true, "p": true, "r": true, "s": true, "t": true,
	"u": true, "w": true, "x": true, "z": true,
}

// ValidNoteCode reports whether a single code is in the vocabulary.
func ValidNoteCode(code string) bool {
	return noteCodes[strings.ToLower(strings.TrimSpace(code))]
}

// NoteCodeVocabulary returns the accepted codes, for error messages and
// docs. The returned slice is a copy.
func NoteCodeVocabulary() []string {
	out := make([]string, 0, len(noteCodes))
	for c := range noteCodes {
		out = append(out, c)
	}
	return out
}

// Validator checks a fact table that already exists in the engine.
type Validator struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{log: logger}
}

// Validate runs all structural checks over the fact table at tableRef
// (a qualified engine table or view name) using the role map. The first
// violated invariant is returned as a ValidationError with sample rows.
func (v *Validator) Validate(ctx context.Context, sess *engine.Session, tableRef string, roleMap core.RoleMap) error {
	keyCols := roleMap.KeyColumns()
	if len(keyCols) == 0 {
		return core.NewValidationError(core.ErrBadRoleAssignment, "",
			"no key columns classified; assign dimension roles first")
	}
	for col, role := range roleMap {
		if role == core.RoleUnknown {
			return core.NewValidationError(core.ErrUnknownSourcesStillPresent, col,
				"column %q still has role unknown", col)
		}
	}

	if err := v.checkComplete(ctx, sess, tableRef, keyCols); err != nil {
		return err
	}
	if err := v.checkUnique(ctx, sess, tableRef, keyCols); err != nil {
		return err
	}
	if nc := roleMap.NoteCodesColumn(); nc != "" {
		if err := v.checkNoteCodes(ctx, sess, tableRef, nc); err != nil {
			return err
		}
	}
	return nil
}

// checkComplete rejects rows with a NULL in any key column. The samples
// carry a synthetic line_number so the publisher can find the row in the
// source file.
func (v *Validator) checkComplete(ctx context.Context, sess *engine.Session, tableRef string, keyCols []string) error {
	var nullPreds []string
	for _, c := range keyCols {
		nullPreds = append(nullPreds, engine.QuoteIdent(c)+" IS NULL")
	}
	q := fmt.Sprintf(
		`SELECT * FROM (SELECT row_number() OVER () AS line_number, * FROM %s)
		 WHERE %s LIMIT %d`,
		tableRef, strings.Join(nullPreds, " OR "), core.MaxSampleRows)

	samples, err := sampleRows(ctx, sess, q)
	if err != nil {
		return fmt.Errorf("completeness check failed: %w", err)
	}
	if len(samples) > 0 {
		return core.NewValidationError(core.ErrIncompleteFact, strings.Join(keyCols, ", "),
			"%d row(s) are missing a value in a key column", len(samples)).WithSamples(samples)
	}
	return nil
}

// checkUnique rejects fact rows sharing a composite key.
func (v *Validator) checkUnique(ctx context.Context, sess *engine.Session, tableRef string, keyCols []string) error {
	quoted := make([]string, len(keyCols))
	for i, c := range keyCols {
		quoted[i] = engine.QuoteIdent(c)
	}
	keyList := strings.Join(quoted, ", ")

	q := fmt.Sprintf(
		`SELECT t.* FROM (SELECT row_number() OVER () AS line_number, * FROM %s) t
		 JOIN (SELECT %s FROM %s GROUP BY %s HAVING count(*) > 1) d USING (%s)
		 ORDER BY %s LIMIT %d`,
		tableRef, keyList, tableRef, keyList, keyList, keyList, core.MaxSampleRows)

	samples, err := sampleRows(ctx, sess, q)
	if err != nil {
		return fmt.Errorf("uniqueness check failed: %w", err)
	}
	if len(samples) > 0 {
		return core.NewValidationError(core.ErrDuplicateFact, strings.Join(keyCols, ", "),
			"%d row(s) share a composite key with another row", len(samples)).WithSamples(samples)
	}
	return nil
}

// checkNoteCodes validates every comma-separated entry of the note codes
// column against the vocabulary.
func (v *Validator) checkNoteCodes(ctx context.Context, sess *engine.Session, tableRef, noteCol string) error {
	nc := engine.QuoteIdent(noteCol)

	var members []string
	for c := range noteCodes {
		members = append(members, engine.QuoteLiteral(c))
	}
	q := fmt.Sprintf(
		`SELECT * FROM (SELECT row_number() OVER () AS line_number, * FROM %s)
		 WHERE %s IS NOT NULL AND trim(%s::VARCHAR) <> ''
		 AND EXISTS (
		     SELECT 1 FROM unnest(string_split(%s::VARCHAR, ',')) AS u(code)
		     WHERE lower(trim(code)) NOT IN (%s)
		 )
		 LIMIT %d`,
		tableRef, nc, nc, nc, strings.Join(members, ", "), core.MaxSampleRows)

	samples, err := sampleRows(ctx, sess, q)
	if err != nil {
		return fmt.Errorf("note code check failed: %w", err)
	}
	if len(samples) > 0 {
		return core.NewValidationError(core.ErrBadNoteCodes, noteCol,
			"%d row(s) contain a note code outside the vocabulary", len(samples)).WithSamples(samples)
	}
	return nil
}

// sampleRows materializes a query's rows as column-keyed maps.
func sampleRows(ctx context.Context, sess *engine.Session, q string) ([]core.SampleRow, error) {
	rows, err := sess.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []core.SampleRow
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(core.SampleRow, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
