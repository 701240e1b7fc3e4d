package bionic

import "strings"

// Segment is the emphasis decision for one token of a text run.
type Segment struct {
	Bold    string
	Regular string
}

// Format computes the emphasis split for every token of text. Tokens are
// delimited by single ASCII spaces - runs of several spaces or tabs are
// not collapsed, the extra characters travel with their tokens. Every
// token except the last carries one trailing space in Regular, so
// concatenating Bold+Regular over all segments reproduces text
// byte-for-byte.
func Format(text string, ratio float64) []Segment {
	words := strings.Split(text, " ")
	segments := make([]Segment, 0, len(words))
	for i, w := range words {
		bold, regular := Split(w, ratio)
		if i < len(words)-1 {
			regular += " "
		}
		segments = append(segments, Segment{Bold: bold, Regular: regular})
	}
	return segments
}
