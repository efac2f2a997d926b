// Package locale resolves locale tags to the header vocabularies used for
// lookup table detection and to the display strings used when rendering
// cube output.
package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Registry holds the supported locales for a deployment. The cube builder
// materializes one core view per supported locale and lookup validation
// requires every supported locale to be covered.
type Registry struct {
	supported []language.Tag
	def       language.Tag
	matcher   language.Matcher
}

// NewRegistry parses the supported locale tags. The first tag is the
// default unless def names another supported tag.
func NewRegistry(tags []string, def string) (*Registry, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one supported locale is required")
	}

	parsed := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		tag, err := language.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", t, err)
		}
		parsed = append(parsed, tag)
	}

	defTag := parsed[0]
	if def != "" {
		tag, err := language.Parse(def)
		if err != nil {
			return nil, fmt.Errorf("invalid default locale %q: %w", def, err)
		}
		defTag = tag
	}

	return &Registry{
		supported: parsed,
		def:       defTag,
		matcher:   language.NewMatcher(parsed),
	}, nil
}

// Supported returns the canonical supported locale tags in declaration order.
func (r *Registry) Supported() []string {
	out := make([]string, len(r.supported))
	for i, t := range r.supported {
		out[i] = t.String()
	}
	return out
}

// Default returns the default locale tag.
func (r *Registry) Default() string {
	return r.def.String()
}

// Resolve matches an arbitrary tag to the closest supported locale.
func (r *Registry) Resolve(tag string) (string, error) {
	requested, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", tag, err)
	}
	_, idx, conf := r.matcher.Match(requested)
	if conf == language.No {
		return "", fmt.Errorf("unsupported locale %q", tag)
	}
	return r.supported[idx].String(), nil
}

// Vocabulary returns the header vocabulary for a supported locale. Unknown
// locales fall back to the English vocabulary so detection degrades rather
// than fails.
func (r *Registry) Vocabulary(tag string) Vocabulary {
	resolved, err := r.Resolve(tag)
	if err != nil {
		return vocabularies["en"]
	}
	base, _ := language.Parse(resolved)
	for {
		if v, ok := vocabularies[base.String()]; ok {
			return v
		}
		parent := base.Parent()
		if parent == language.Und || parent == base {
			return vocabularies["en"]
		}
		base = parent
	}
}

// Suffix returns the short language code used as a column suffix in wide
// lookup tables, e.g. "en" for en-GB.
func Suffix(tag string) string {
	base, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	b, _ := base.Base()
	return b.String()
}

// NormalizeHeader canonicalizes a header cell for vocabulary matching:
// lower case, surrounding space trimmed, separators removed.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
	return h
}
