// Package bionic implements the word emphasis algorithm behind "bionic
// reading": a deterministic prefix of every word is rendered in a bold
// face to guide the eye, the rest stays regular.
package bionic

import "unicode"

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// boldCount returns the number of core runes to emphasize. Words of up to
// two characters get one, up to five get two, everything longer gets a
// share controlled by ratio. The result is always within [1, n] no matter
// what ratio the caller passed.
func boldCount(n int, ratio float64) int {
	switch {
	case n <= 2:
		return 1
	case n <= 5:
		return 2
	}
	count := int(float64(n) * ratio)
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	return count
}

// Decompose slices a token into its maximal non-alphanumeric prefix, the
// alphanumeric-bounded core and the maximal non-alphanumeric suffix.
// Interior punctuation (apostrophes, hyphens) is part of the core: only
// the edges are scanned. lead+core+trail always reconstructs the token
// exactly; a token with no alphanumeric rune comes back as (token, "", "").
func Decompose(word string) (lead, core, trail string) {
	runes := []rune(word)

	i := 0
	for i < len(runes) && !isAlnum(runes[i]) {
		i++
	}
	j := len(runes) - 1
	for j >= i && !isAlnum(runes[j]) {
		j--
	}
	if i > j {
		return word, "", ""
	}
	return string(runes[:i]), string(runes[i : j+1]), string(runes[j+1:])
}

// Split separates a whitespace-delimited token into the emphasized prefix
// and the remainder. Leading and trailing runs of non-alphanumeric runes
// (punctuation, but also any exterior whitespace) stay attached to their
// side of the split, so bold+regular always reconstructs the token
// exactly. Tokens without an alphanumeric core are returned unchanged as
// (token, ""). Split is total over any string and any ratio.
func Split(word string, ratio float64) (bold, regular string) {
	lead, core, trail := Decompose(word)
	if core == "" {
		// nothing to emphasize
		return word, ""
	}

	runes := []rune(core)
	count := boldCount(len(runes), ratio)

	return lead + string(runes[:count]), string(runes[count:]) + trail
}
