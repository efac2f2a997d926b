// Package lookup parses uploaded reference tables, validates them against
// the fact table they describe, and persists their per-locale rows onto a
// dimension or the measure.
package lookup

import (
	"github.com/leapstack-labs/statcube/internal/locale"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// Override lets the caller pin columns the header vocabulary would otherwise
// have to detect. Any empty field falls back to detection.
type Override struct {
	JoinColumn         string
	DescriptionColumns map[string]string
	NotesColumns       map[string]string
}

// DetectShape classifies the columns of an uploaded reference table using
// the header vocabulary of headerLocale. It decides between the wide shape
// (one description/notes pair per supported locale, no language column) and
// the long shape (a language column plus a single description/notes pair).
func DetectShape(cols []core.ColumnDescriptor, headerLocale string, reg *locale.Registry, ov *Override) (*core.LookupTable, error) {
	vocab := reg.Vocabulary(headerLocale)

	lt := &core.LookupTable{
		DescriptionColumns: map[string]string{},
		NotesColumns:       map[string]string{},
	}
	claimed := map[string]bool{}
	claim := func(name string) { claimed[name] = true }

	var plainDescription, plainNotes string
	for _, col := range cols {
		h := col.Name
		switch {
		case lt.LanguageColumn == "" && locale.Matches(vocab.Language, h):
			lt.LanguageColumn = h
			claim(h)
		case lt.SortColumn == "" && locale.Matches(vocab.Sort, h):
			lt.SortColumn = h
			claim(h)
		case lt.FormatColumn == "" && locale.Matches(vocab.Format, h):
			lt.FormatColumn = h
			claim(h)
		case lt.DecimalColumn == "" && locale.Matches(vocab.Decimal, h):
			lt.DecimalColumn = h
			claim(h)
		case lt.MeasureTypeColumn == "" && locale.Matches(vocab.MeasureType, h):
			lt.MeasureTypeColumn = h
			claim(h)
		case lt.HierarchyColumn == "" && locale.Matches(vocab.Hierarchy, h):
			lt.HierarchyColumn = h
			claim(h)
		case plainDescription == "" && locale.Matches(vocab.Description, h):
			plainDescription = h
			claim(h)
		case plainNotes == "" && locale.Matches(vocab.Notes, h):
			plainNotes = h
			claim(h)
		default:
			// Suffixed description/notes columns of a wide table, matched
			// per supported locale so "disgrifiad_cy" and "description_en"
			// both land.
			for _, tag := range reg.Supported() {
				suffix := locale.Suffix(tag)
				if _, ok := lt.DescriptionColumns[tag]; !ok && locale.MatchesWithSuffix(vocab.Description, h, suffix) {
					lt.DescriptionColumns[tag] = h
					claim(h)
					break
				}
				if _, ok := lt.NotesColumns[tag]; !ok && locale.MatchesWithSuffix(vocab.Notes, h, suffix) {
					lt.NotesColumns[tag] = h
					claim(h)
					break
				}
			}
		}
	}

	if ov != nil {
		for tag, col := range ov.DescriptionColumns {
			lt.DescriptionColumns[tag] = col
			claim(col)
		}
		for tag, col := range ov.NotesColumns {
			lt.NotesColumns[tag] = col
			claim(col)
		}
		if plainDescription != "" && len(ov.DescriptionColumns) > 0 {
			plainDescription = ""
		}
	}

	if lt.LanguageColumn != "" {
		lt.Shape = core.LookupShapeLong
		if plainDescription == "" {
			return nil, core.NewValidationError(core.ErrMissingLanguages, "description",
				"a lookup table with a language column needs a single description column").
				WithHeaders(headerNames(cols))
		}
		lt.DescriptionColumns = map[string]string{"": plainDescription}
		if plainNotes != "" {
			lt.NotesColumns = map[string]string{"": plainNotes}
		} else {
			lt.NotesColumns = map[string]string{}
		}
	} else {
		lt.Shape = core.LookupShapeWide
		// A bare description column counts for the header locale itself.
		if plainDescription != "" {
			if tag, err := reg.Resolve(headerLocale); err == nil {
				if _, ok := lt.DescriptionColumns[tag]; !ok {
					lt.DescriptionColumns[tag] = plainDescription
				}
			}
		}
		if plainNotes != "" {
			if tag, err := reg.Resolve(headerLocale); err == nil {
				if _, ok := lt.NotesColumns[tag]; !ok {
					lt.NotesColumns[tag] = plainNotes
				}
			}
		}
		var missing []string
		for _, tag := range reg.Supported() {
			if _, ok := lt.DescriptionColumns[tag]; !ok {
				missing = append(missing, tag)
			}
		}
		if len(missing) > 0 {
			return nil, core.NewValidationError(core.ErrMissingLanguages, "description",
				"no description column found for locales %v", missing).
				WithHeaders(headerNames(cols))
		}
	}

	if ov != nil && ov.JoinColumn != "" {
		lt.JoinColumn = ov.JoinColumn
		if !hasColumn(cols, ov.JoinColumn) {
			return nil, core.NewValidationError(core.ErrLookupNoJoinColumn, ov.JoinColumn,
				"join column %q does not exist in the lookup table", ov.JoinColumn)
		}
	} else {
		// The join column is the first column the vocabulary did not claim,
		// in source order. Reference tables conventionally lead with the code.
		for _, col := range cols {
			if !claimed[col.Name] {
				lt.JoinColumn = col.Name
				break
			}
		}
	}
	if lt.JoinColumn == "" {
		return nil, core.NewValidationError(core.ErrLookupNoJoinColumn, "",
			"could not determine a join column").WithHeaders(headerNames(cols))
	}
	return lt, nil
}

func headerNames(cols []core.ColumnDescriptor) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func hasColumn(cols []core.ColumnDescriptor, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}
