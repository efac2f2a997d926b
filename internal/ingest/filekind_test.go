package ingest

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/statcube/pkg/core"
)

func TestDetectFileKind(t *testing.T) {
	tests := []struct {
		mime, filename string
		want           core.FileType
	}{
		{"text/csv", "data.csv", core.FileTypeCSV},
		{"application/csv", "data.csv", core.FileTypeCSV},
		{"text/csv; charset=utf-8", "data.csv", core.FileTypeCSV},
		{"application/json", "data.json", core.FileTypeJSON},
		{"application/vnd.apache.parquet", "data.parquet", core.FileTypeParquet},
		{"application/gzip", "data.csv.gz", core.FileTypeGzipCSV},
		{"application/x-gzip", "data.JSON.GZ", core.FileTypeGzipJSON},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "data.xlsx", core.FileTypeSpreadsheet},
	}
	for _, tt := range tests {
		got, err := DetectFileKind(tt.mime, tt.filename)
		if err != nil {
			t.Errorf("DetectFileKind(%q, %q): %v", tt.mime, tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFileKind(%q, %q) = %s, want %s", tt.mime, tt.filename, got, tt.want)
		}
	}
}

func TestDetectFileKindInfersFromExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     core.FileType
	}{
		{"data.csv", core.FileTypeCSV},
		{"Data.CSV", core.FileTypeCSV},
		{"data.json", core.FileTypeJSON},
		{"data.parquet", core.FileTypeParquet},
		{"data.xlsx", core.FileTypeSpreadsheet},
		{"data.csv.gz", core.FileTypeGzipCSV},
		{"data.json.gz", core.FileTypeGzipJSON},
	}
	for _, tt := range tests {
		got, err := DetectFileKind("", tt.filename)
		if err != nil {
			t.Errorf("DetectFileKind(\"\", %q): %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFileKind(\"\", %q) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}

func TestDetectFileKindNoMimeUnknownExtension(t *testing.T) {
	_, err := DetectFileKind("", "report.pdf")
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Kind != core.ErrUnknownMimeType {
		t.Fatalf("want UnknownMimeType, got %v", err)
	}
}

func TestDetectFileKindUnknownMime(t *testing.T) {
	_, err := DetectFileKind("application/pdf", "report.pdf")
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Kind != core.ErrUnknownMimeType {
		t.Fatalf("want UnknownMimeType, got %v", err)
	}
}

func TestDetectFileKindGzipUnknownInner(t *testing.T) {
	_, err := DetectFileKind("application/gzip", "data.parquet.gz")
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Kind != core.ErrUnknownFileFormat {
		t.Fatalf("want UnknownFileFormat, got %v", err)
	}
}

func TestExtension(t *testing.T) {
	if got := Extension(core.FileTypeCSV); got != ".csv" {
		t.Fatalf("want .csv, got %q", got)
	}
	if got := Extension(core.FileTypeGzipJSON); got != ".json.gz" {
		t.Fatalf("want .json.gz, got %q", got)
	}
}
