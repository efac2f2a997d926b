package locale

import (
	"reflect"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry([]string{"en-GB", "cy-GB"}, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Supported(); !reflect.DeepEqual(got, []string{"en-GB", "cy-GB"}) {
		t.Errorf("Supported = %v", got)
	}
	if got := reg.Default(); got != "en-GB" {
		t.Errorf("Default = %q", got)
	}
}

func TestNewRegistryExplicitDefault(t *testing.T) {
	reg, err := NewRegistry([]string{"en-GB", "cy-GB"}, "cy-GB")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Default(); got != "cy-GB" {
		t.Errorf("Default = %q", got)
	}
}

func TestNewRegistryRejectsBadInput(t *testing.T) {
	if _, err := NewRegistry(nil, ""); err == nil {
		t.Error("expected error for empty locale list")
	}
	if _, err := NewRegistry([]string{"not a tag"}, ""); err == nil {
		t.Error("expected error for malformed tag")
	}
}

func TestResolve(t *testing.T) {
	reg, err := NewRegistry([]string{"en-GB", "cy-GB"}, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		in, want string
	}{
		{"en-GB", "en-GB"},
		{"cy-GB", "cy-GB"},
		{"en", "en-GB"},
		{"cy", "cy-GB"},
		{"en-US", "en-GB"},
	}
	for _, tt := range tests {
		got, err := reg.Resolve(tt.in)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := reg.Resolve("???"); err == nil {
		t.Error("expected error for malformed tag")
	}
}

func TestVocabularyLookup(t *testing.T) {
	reg, err := NewRegistry([]string{"en-GB", "cy-GB"}, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	en := reg.Vocabulary("en-GB")
	if !Matches(en.Description, "Description") || !Matches(en.Description, "LABEL") {
		t.Error("English description vocabulary did not match")
	}

	cy := reg.Vocabulary("cy-GB")
	if !Matches(cy.Description, "Disgrifiad") {
		t.Error("Welsh description vocabulary did not match")
	}
	if !Matches(cy.Language, "Iaith") {
		t.Error("Welsh language vocabulary did not match")
	}
}

func TestMatchesNormalizes(t *testing.T) {
	v := vocabularies["en"]
	for _, h := range []string{"Sort Order", "sort_order", "SORT-ORDER", " SortOrder "} {
		if !Matches(v.Sort, h) {
			t.Errorf("Matches(Sort, %q) = false", h)
		}
	}
	if Matches(v.Sort, "sorted") {
		t.Error("Matches accepted a near-miss")
	}
}

func TestMatchesWithSuffix(t *testing.T) {
	v := vocabularies["en"]
	if !MatchesWithSuffix(v.Description, "Description_cy", "cy") {
		t.Error("suffixed description did not match")
	}
	if MatchesWithSuffix(v.Description, "Description_cy", "en") {
		t.Error("wrong suffix matched")
	}
}

func TestSuffix(t *testing.T) {
	if got := Suffix("en-GB"); got != "en" {
		t.Errorf("Suffix(en-GB) = %q", got)
	}
	if got := Suffix("cy-GB"); got != "cy" {
		t.Errorf("Suffix(cy-GB) = %q", got)
	}
}

func TestValidDisplayFormat(t *testing.T) {
	for _, f := range []string{"decimal", "Percentage", "STRING"} {
		if !ValidDisplayFormat(f) {
			t.Errorf("ValidDisplayFormat(%q) = false", f)
		}
	}
	if ValidDisplayFormat("currency") {
		t.Error("unknown format accepted")
	}
}
