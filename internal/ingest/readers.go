package ingest

// readers.go - kind-specific engine readers with encoding fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/statcube/internal/engine"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// fallbackEncoding is retried once when the primary utf-8 read of a text
// format fails. Legacy exports from desktop tools are the usual culprit.
const fallbackEncoding = "latin-1"

// LoadTemp creates tempTable from the staged file using the reader that
// matches the file kind. Text formats are retried once with the fallback
// byte encoding before failing with InvalidUnicode. The lookup extractor
// shares this path so reference tables accept the same formats as fact
// tables.
func LoadTemp(ctx context.Context, sess *engine.Session, tempTable string, kind core.FileType, path string) error {
	lit := engine.QuoteLiteral(path)

	switch kind {
	case core.FileTypeCSV, core.FileTypeGzipCSV:
		primary := fmt.Sprintf(
			"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM read_csv(%s, header = true, auto_detect = true)",
			tempTable, lit)
		if err := sess.Exec(ctx, primary); err == nil {
			return nil
		} else if !encodingError(err) {
			return core.NewValidationError(core.ErrInvalidCsv, "file", "csv could not be read: %v", err)
		}

		retry := fmt.Sprintf(
			"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM read_csv(%s, header = true, auto_detect = true, encoding = '%s')",
			tempTable, lit, fallbackEncoding)
		if err := sess.Exec(ctx, retry); err != nil {
			return core.NewValidationError(core.ErrInvalidUnicode, "file",
				"file is not valid utf-8 and the %s fallback also failed", fallbackEncoding)
		}
		return nil

	case core.FileTypeJSON, core.FileTypeGzipJSON:
		stmt := fmt.Sprintf(
			"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM read_json_auto(%s)",
			tempTable, lit)
		if err := sess.Exec(ctx, stmt); err != nil {
			if encodingError(err) {
				return core.NewValidationError(core.ErrInvalidUnicode, "file", "json file is not valid utf-8")
			}
			return core.NewValidationError(core.ErrInvalidJson, "file", "json could not be read: %v", err)
		}
		return nil

	case core.FileTypeParquet:
		stmt := fmt.Sprintf(
			"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM read_parquet(%s)",
			tempTable, lit)
		if err := sess.Exec(ctx, stmt); err != nil {
			return core.NewValidationError(core.ErrUnknownFileFormat, "file", "parquet could not be read: %v", err)
		}
		return nil

	case core.FileTypeSpreadsheet:
		stmt := fmt.Sprintf(
			"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM read_xlsx(%s, header = true)",
			tempTable, lit)
		if err := sess.Exec(ctx, stmt); err != nil {
			return core.NewValidationError(core.ErrUnknownFileFormat, "file", "spreadsheet could not be read: %v", err)
		}
		return nil
	}

	return core.NewValidationError(core.ErrUnknownFileFormat, "file", "no reader for file kind %q", kind)
}

// encodingError recognises DuckDB's invalid byte sequence failures.
func encodingError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid unicode") ||
		strings.Contains(msg, "invalid utf-8") ||
		strings.Contains(msg, "byte sequence")
}
