package bionic

import "testing"

func TestExpandLigatures(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ﬁrst", "first"},
		{"ﬂight", "flight"},
		{"oﬀer", "offer"},
		{"eﬃcient", "efficient"},
		{"baﬄe", "baffle"},
		{"oﬅen", "often"},
		{"ﬆyle", "style"},
		{"plain text untouched", "plain text untouched"},
		{"", ""},
		{"ﬁﬂﬀ", "fiflff"},
	}
	for _, tt := range tests {
		if got := ExpandLigatures(tt.in); got != tt.want {
			t.Errorf("ExpandLigatures(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandLigaturesThenSplit(t *testing.T) {
	// The expanded form must be splittable mid-ligature; the composed
	// glyph would have pinned "fi" to one side.
	bold, regular := Split(ExpandLigatures("ﬁrst"), 0.5)
	if bold != "fi" || regular != "rst" {
		t.Errorf("got (%q, %q), want (\"fi\", \"rst\")", bold, regular)
	}
}
