// Package preprocess implements the text preprocessing pipeline (C1):
// noise detection, sentence splitting, chunking, and symbol masking/
// unmasking, deterministically transforming a raw input string into
// inference-ready chunks and inverting that transform on outputs.
package preprocess

import "unicode"

// StripControlChars removes characters below U+0020 except the common
// whitespace ones (tab, newline, carriage return); DEL and other control
// characters above U+007E are kept.
func StripControlChars(s string) string {
	out := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\t' || ch == '\n' || ch == '\r' || ch >= 32 {
			out = append(out, ch)
		}
	}
	return string(out)
}

// IsNoise reports whether text is noise: too short after stripping control
// characters, or with an alphanumeric ratio below minAlnumRatio. Noise
// inputs are short-circuited to a placeholder rather than translated.
func IsNoise(text string, minChars int, minAlnumRatio float64) bool {
	s := trimSpace(StripControlChars(text))
	if len([]rune(s)) < minChars {
		return true
	}

	var noSpace []rune
	for _, ch := range s {
		if !unicode.IsSpace(ch) {
			noSpace = append(noSpace, ch)
		}
	}
	if len(noSpace) == 0 {
		return true
	}

	alnum := 0
	for _, ch := range noSpace {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			alnum++
		}
	}
	if alnum == 0 {
		return true
	}

	ratio := float64(alnum) / float64(max(1, len(noSpace)))
	return ratio < minAlnumRatio
}

// SanitizeList filters noise out of a list of strings. Returns the kept
// items and how many were skipped.
func SanitizeList(items []string, enabled bool, minChars int, minAlnumRatio float64) ([]string, int) {
	if !enabled {
		return items, 0
	}
	kept := make([]string, 0, len(items))
	skipped := 0
	for _, t := range items {
		if IsNoise(t, minChars, minAlnumRatio) {
			skipped++
			continue
		}
		kept = append(kept, t)
	}
	return kept, skipped
}

func trimSpace(s string) string {
	r := []rune(s)
	start, end := 0, len(r)
	for start < end && unicode.IsSpace(r[start]) {
		start++
	}
	for end > start && unicode.IsSpace(r[end-1]) {
		end--
	}
	return string(r[start:end])
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
