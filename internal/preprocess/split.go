package preprocess

import (
	"regexp"
	"strings"
)

var (
	sentBoundaryRe = regexp.MustCompile(`([.!?\x{2026}]+)(\s+)`)
	wordSplitRe    = regexp.MustCompile(`(,|;|:|\s+)`)
)

// SplitSentences splits text into sentences on ". ! ? …" boundaries,
// preserving the terminator with the preceding sentence. Any resulting
// sentence longer than maxSentenceChars is further cut at the nearest
// whitespace/punctuation boundary within the window.
func SplitSentences(text string, maxSentenceChars int) []string {
	cleaned := strings.TrimSpace(StripControlChars(text))
	if cleaned == "" {
		return nil
	}

	var parts []string
	last := 0
	for _, loc := range sentBoundaryRe.FindAllStringIndex(cleaned, -1) {
		end := loc[1]
		parts = append(parts, strings.TrimSpace(cleaned[last:end]))
		last = end
	}
	if last < len(cleaned) {
		parts = append(parts, strings.TrimSpace(cleaned[last:]))
	}
	if len(parts) == 0 {
		parts = []string{cleaned}
	}

	enforced := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) <= maxSentenceChars {
			if p != "" {
				enforced = append(enforced, p)
			}
			continue
		}

		var buffer strings.Builder
		curLen := 0
		tokens := wordSplitRe.Split(p, -1)
		seps := wordSplitRe.FindAllString(p, -1)
		// Recombine tokens with their trailing separators so word boundaries
		// are not lost, mirroring re.split's token/separator interleaving.
		interleaved := interleave(tokens, seps)

		for _, tok := range interleaved {
			if tok == "" {
				continue
			}
			tl := len([]rune(tok))
			if curLen+tl > maxSentenceChars && buffer.Len() > 0 {
				if s := strings.TrimSpace(buffer.String()); s != "" {
					enforced = append(enforced, s)
				}
				buffer.Reset()
				buffer.WriteString(tok)
				curLen = tl
			} else {
				buffer.WriteString(tok)
				curLen += tl
			}
		}
		if buffer.Len() > 0 {
			if s := strings.TrimSpace(buffer.String()); s != "" {
				enforced = append(enforced, s)
			}
		}
	}

	return enforced
}

// interleave recombines the N tokens and N-1 separators produced by
// splitting a string on a capturing regex back into submission order.
func interleave(tokens, seps []string) []string {
	out := make([]string, 0, len(tokens)+len(seps))
	for i, tok := range tokens {
		out = append(out, tok)
		if i < len(seps) {
			out = append(out, seps[i])
		}
	}
	return out
}
