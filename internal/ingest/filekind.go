package ingest

import (
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/statcube/pkg/core"
)

// mimeKinds maps declared MIME types to file kinds. Gzip is resolved
// through the secondary extension, see DetectFileKind.
var mimeKinds = map[string]core.FileType{
	"text/csv":                       core.FileTypeCSV,
	"application/csv":                core.FileTypeCSV,
	"text/json":                      core.FileTypeJSON,
	"application/json":               core.FileTypeJSON,
	"application/vnd.apache.parquet": core.FileTypeParquet,
	"application/parquet":            core.FileTypeParquet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": core.FileTypeSpreadsheet,
}

var gzipMimes = map[string]bool{
	"application/gzip":   true,
	"application/x-gzip": true,
}

// extKinds maps bare filename extensions to file kinds, used when the
// uploader declared no MIME type.
var extKinds = map[string]core.FileType{
	".csv":     core.FileTypeCSV,
	".json":    core.FileTypeJSON,
	".parquet": core.FileTypeParquet,
	".xlsx":    core.FileTypeSpreadsheet,
}

// DetectFileKind resolves the declared MIME type, plus the secondary
// extension for gzip uploads, to a supported file kind. When no MIME type
// was declared the kind is inferred from the filename extension instead.
func DetectFileKind(mimeType, filename string) (core.FileType, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	if gzipMimes[mt] {
		return gzipKind(filename)
	}
	if kind, ok := mimeKinds[mt]; ok {
		return kind, nil
	}

	if mt == "" {
		lower := strings.ToLower(filename)
		if strings.HasSuffix(lower, ".gz") {
			return gzipKind(filename)
		}
		if kind, ok := extKinds[filepath.Ext(lower)]; ok {
			return kind, nil
		}
		return core.FileTypeUnknown, core.NewValidationError(core.ErrUnknownMimeType, "file",
			"no mime type declared and the extension of %q is not recognised", filename)
	}
	return core.FileTypeUnknown, core.NewValidationError(core.ErrUnknownMimeType, "file",
		"unsupported mime type %q", mimeType)
}

// gzipKind resolves a gzip upload through its secondary extension.
func gzipKind(filename string) (core.FileType, error) {
	inner := strings.TrimSuffix(strings.ToLower(filename), ".gz")
	switch filepath.Ext(inner) {
	case ".csv":
		return core.FileTypeGzipCSV, nil
	case ".json":
		return core.FileTypeGzipJSON, nil
	}
	return core.FileTypeUnknown, core.NewValidationError(core.ErrUnknownFileFormat, "file",
		"gzip upload %q does not contain a recognised csv or json file", filename)
}

// Extension returns the staging-file extension the engine readers key off.
func Extension(kind core.FileType) string {
	return "." + string(kind)
}
