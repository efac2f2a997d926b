package factcheck

import (
	"testing"
)

func TestValidNoteCode(t *testing.T) {
	for _, c := range []string{"a", "c", "e", "f", "k", "low", "p", "r", "s", "t", "u", "w", "x", "z"} {
		if !ValidNoteCode(c) {
			t.Errorf("ValidNoteCode(%q) = false", c)
		}
	}
	// Case and surrounding space are forgiven; unknown codes are not.
	if !ValidNoteCode(" P ") || !ValidNoteCode("LOW") {
		t.Error("normalization failed")
	}
	for _, c := range []string{"", "q", "pp", "lo", "1"} {
		if ValidNoteCode(c) {
			t.Errorf("ValidNoteCode(%q) = true", c)
		}
	}
}

func TestNoteCodeVocabulary(t *testing.T) {
	vocab := NoteCodeVocabulary()
	if len(vocab) != 14 {
		t.Fatalf("vocabulary size = %d, want 14", len(vocab))
	}
	for _, c := range vocab {
		if !ValidNoteCode(c) {
			t.Errorf("vocabulary entry %q not valid", c)
		}
	}
}
