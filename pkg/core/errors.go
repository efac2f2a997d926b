package core

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable tag identifying what went wrong, returned
// to callers so a publisher can correct the source file.
type ErrorKind string

const (
	// Ingestion kinds.
	ErrUnknownMimeType   ErrorKind = "UnknownMimeType"
	ErrUnknownFileFormat ErrorKind = "UnknownFileFormat"
	ErrInvalidUnicode    ErrorKind = "InvalidUnicode"
	ErrInvalidCsv        ErrorKind = "InvalidCsv"
	ErrInvalidJson       ErrorKind = "InvalidJson"

	// Lookup validation kinds.
	ErrMissingLanguages         ErrorKind = "MissingLanguages"
	ErrLookupNoJoinColumn       ErrorKind = "LookupNoJoinColumn"
	ErrLookupMissingValues      ErrorKind = "LookupMissingValues"
	ErrBadDecimalColumn         ErrorKind = "BadDecimalColumn"
	ErrWrongDataTypeInReference ErrorKind = "WrongDataTypeInReference"

	// Classification kinds.
	ErrBadRoleAssignment ErrorKind = "BadRoleAssignment"

	// Fact structure kinds.
	ErrIncompleteFact             ErrorKind = "IncompleteFact"
	ErrDuplicateFact              ErrorKind = "DuplicateFact"
	ErrBadNoteCodes               ErrorKind = "BadNoteCodes"
	ErrNoNoteCodes                ErrorKind = "NoNoteCodes"
	ErrUnknownSourcesStillPresent ErrorKind = "UnknownSourcesStillPresent"

	// Infrastructure kinds.
	ErrNoDraftRevision ErrorKind = "NoDraftRevision"
	ErrUnknownError    ErrorKind = "UnknownError"
)

// MaxSampleRows bounds how many offending rows a validation error carries.
const MaxSampleRows = 500

// SampleRow is one offending source row, keyed by column name. Rows sampled
// by the fact table validator include a synthetic "line_number" key.
type SampleRow map[string]any

// ValidationError is a recoverable data-shape failure. It carries the field
// or column at fault and, for fact structure errors, up to MaxSampleRows
// offending rows.
type ValidationError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Headers []string
	Samples []SampleRow
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// StatusCode maps the error to an HTTP status for API callers. Data-shape
// errors are client errors.
func (e *ValidationError) StatusCode() int {
	switch e.Kind {
	case ErrNoDraftRevision, ErrUnknownError:
		return 500
	}
	return 400
}

// NewValidationError builds a ValidationError without samples.
func NewValidationError(kind ErrorKind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// WithHeaders attaches the source header row so the publisher can see what
// was actually detected.
func (e *ValidationError) WithHeaders(headers []string) *ValidationError {
	e.Headers = headers
	return e
}

// WithSamples attaches offending rows, capped at MaxSampleRows.
func (e *ValidationError) WithSamples(rows []SampleRow) *ValidationError {
	if len(rows) > MaxSampleRows {
		rows = rows[:MaxSampleRows]
	}
	e.Samples = rows
	return e
}

// AsValidationError unwraps err into a *ValidationError, or returns nil.
func AsValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ve := AsValidationError(err)
	return ve != nil && ve.Kind == kind
}
