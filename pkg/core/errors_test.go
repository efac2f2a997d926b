package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError(ErrDuplicateFact, "fact table", "%d duplicated rows", 3)
	if got, want := err.Error(), "DuplicateFact: fact table: 3 duplicated rows"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = NewValidationError(ErrNoDraftRevision, "", "dataset has no draft revision")
	if got, want := err.Error(), "NoDraftRevision: dataset has no draft revision"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("ingest: %w", NewValidationError(ErrInvalidCsv, "file", "ragged rows"))

	var verr *ValidationError
	if !errors.As(wrapped, &verr) {
		t.Fatal("errors.As failed to unwrap ValidationError")
	}
	if verr.Kind != ErrInvalidCsv {
		t.Errorf("Kind = %s, want %s", verr.Kind, ErrInvalidCsv)
	}
}

func TestWithSamplesTruncates(t *testing.T) {
	rows := make([]SampleRow, MaxSampleRows+40)
	for i := range rows {
		rows[i] = SampleRow{"line_number": i + 1}
	}
	err := NewValidationError(ErrIncompleteFact, "fact table", "empty key cells").WithSamples(rows)
	if len(err.Samples) != MaxSampleRows {
		t.Errorf("Samples length = %d, want %d", len(err.Samples), MaxSampleRows)
	}
}

func TestStatusCode(t *testing.T) {
	if got := NewValidationError(ErrBadNoteCodes, "NoteCodes", "bad codes").StatusCode(); got != 400 {
		t.Errorf("data-shape error status = %d, want 400", got)
	}
	if got := NewValidationError(ErrBadRoleAssignment, "Ghost", "no such column").StatusCode(); got != 400 {
		t.Errorf("role assignment error status = %d, want 400", got)
	}
	if got := NewValidationError(ErrUnknownError, "", "boom").StatusCode(); got != 500 {
		t.Errorf("infrastructure error status = %d, want 500", got)
	}
}
