package locale

// Vocabulary is the set of header words used to detect lookup table columns
// for one language. All entries are pre-normalized (see NormalizeHeader).
type Vocabulary struct {
	Sort        []string
	Format      []string
	Decimal     []string
	MeasureType []string
	Hierarchy   []string
	Language    []string
	Description []string
	Notes       []string
	// LanguageNames maps a locale tag to that language's display name in
	// this vocabulary's language.
	LanguageNames map[string]string
}

// Matches reports whether the header cell matches any of the candidates.
func Matches(candidates []string, header string) bool {
	n := NormalizeHeader(header)
	for _, c := range candidates {
		if n == c {
			return true
		}
	}
	return false
}

// MatchesWithSuffix reports whether the header matches candidate+suffix,
// as in "description_cy" for the Welsh description column of a wide table.
func MatchesWithSuffix(candidates []string, header, suffix string) bool {
	n := NormalizeHeader(header)
	for _, c := range candidates {
		if n == c+suffix {
			return true
		}
	}
	return false
}

// Header vocabularies keyed by base language. Welsh is carried alongside
// English because published lookup tables arrive in either language.
var vocabularies = map[string]Vocabulary{
	"en": {
		Sort:        []string{"sort", "sortorder", "order"},
		Format:      []string{"format", "displayformat"},
		Decimal:     []string{"decimal", "decimals", "decimalplaces"},
		MeasureType: []string{"type", "measuretype"},
		Hierarchy:   []string{"hierarchy", "parent", "parentcode"},
		Language:    []string{"lang", "language", "locale"},
		Description: []string{"description", "label", "name"},
		Notes:       []string{"note", "notes"},
		LanguageNames: map[string]string{
			"en-GB": "English",
			"cy-GB": "Welsh",
		},
	},
	"cy": {
		Sort:        []string{"trefn", "trefnu"},
		Format:      []string{"fformat"},
		Decimal:     []string{"degol", "llefydddegol"},
		MeasureType: []string{"math", "mathofesur"},
		Hierarchy:   []string{"hierarchaeth", "rhiant"},
		Language:    []string{"iaith"},
		Description: []string{"disgrifiad", "enw"},
		Notes:       []string{"nodyn", "nodiadau"},
		LanguageNames: map[string]string{
			"en-GB": "Saesneg",
			"cy-GB": "Cymraeg",
		},
	},
}

// DisplayFormats enumerates the measure display formats a lookup table may
// declare. Formats outside this set fail lookup validation.
var DisplayFormats = []string{
	"decimal", "float", "integer", "long", "percentage", "string", "text", "date", "datetime", "time",
}

// ValidDisplayFormat reports whether f (case-insensitive) is a known format.
func ValidDisplayFormat(f string) bool {
	n := NormalizeHeader(f)
	for _, d := range DisplayFormats {
		if n == d {
			return true
		}
	}
	return false
}
