package bionic

import "strings"

// Typographic ligatures found in extracted PDF text. A ligature is a
// single glyph in the source font: it cannot straddle the bold/regular
// boundary, and widths must be measured on the letters the regenerated
// page will actually carry.
var ligatures = strings.NewReplacer(
	"ﬀ", "ff",
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬅ", "ft",
	"ﬆ", "st",
)

// ExpandLigatures rewrites ligature code points into their multi-letter
// equivalents. Must be applied before Split/Format on the paginated path.
func ExpandLigatures(text string) string {
	return ligatures.Replace(text)
}
