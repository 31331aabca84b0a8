package preprocess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"nmtd/pkg/types"
)

const (
	maskPrefix = "⟪MSK"
	maskSuffix = "⟫"
)

// emojiRanges mirrors the original implementation's curated emoji blocks;
// unicode.So (Symbol, other) catches most of the remainder.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1FAFF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x1F900, 0x1F9FF},
}

// IsEmojiChar reports whether ch falls in a known emoji range or the
// Unicode "Symbol, other" category.
func IsEmojiChar(ch rune) bool {
	for _, r := range emojiRanges {
		if ch >= r[0] && ch <= r[1] {
			return true
		}
	}
	return unicode.Is(unicode.So, ch)
}

// MaskOptions toggles which character classes MaskSymbols/UnmaskSymbols
// treat as maskable.
type MaskOptions struct {
	Enabled     bool
	MaskDigits  bool
	MaskPunct   bool
	MaskEmoji   bool
}

// IsMaskableChar reports whether ch should be replaced by a sentinel
// before translation, per the configured options.
func IsMaskableChar(ch rune, opt MaskOptions) bool {
	if opt.MaskDigits && unicode.IsDigit(ch) {
		return true
	}
	if opt.MaskPunct && (unicode.IsPunct(ch) || unicode.IsSymbol(ch)) {
		return true
	}
	if opt.MaskEmoji && IsEmojiChar(ch) {
		return true
	}
	return false
}

// MaskSymbols replaces contiguous runs of maskable characters with
// sentinel tokens "⟪MSKi⟫" in insertion order, returning the masked text
// and the MaskingRecord needed to invert it.
func MaskSymbols(text string, opt MaskOptions) (string, types.MaskingRecord) {
	if !opt.Enabled || text == "" {
		return text, types.MaskingRecord{}
	}

	runes := []rune(text)
	var originals []string
	var out strings.Builder

	i := 0
	for i < len(runes) {
		ch := runes[i]
		if IsMaskableChar(ch, opt) {
			j := i + 1
			for j < len(runes) && IsMaskableChar(runes[j], opt) {
				j++
			}
			seg := string(runes[i:j])
			idx := len(originals)
			originals = append(originals, seg)
			out.WriteString(fmt.Sprintf("%s%d%s", maskPrefix, idx, maskSuffix))
			i = j
		} else {
			out.WriteRune(ch)
			i++
		}
	}

	return out.String(), types.MaskingRecord{Originals: originals}
}

// UnmaskSymbols substitutes each sentinel in text with its positional
// original from rec, tolerating the mangled forms a translation model may
// introduce (added quotes/brackets, internal spacing, case changes, missing
// brackets) via a three-tier fallback: exact token, quoted/bracketed regex,
// then bare regex. Exact-form sentinels with no original left after that
// are removed.
func UnmaskSymbols(text string, rec types.MaskingRecord) string {
	if text == "" {
		return text
	}

	out := text
	for idx, orig := range rec.Originals {
		token := fmt.Sprintf("%s%d%s", maskPrefix, idx, maskSuffix)
		if pos := strings.Index(out, token); pos != -1 {
			out = out[:pos] + orig + out[pos+len(token):]
			continue
		}

		quoted := regexp.MustCompile(
			`["'«»⟪\[\(]\s*[Mm][Ss][Kk]\s*` + fmt.Sprint(idx) + `\s*["'»⟫\]\)]`,
		)
		if loc := quoted.FindStringIndex(out); loc != nil {
			out = out[:loc[0]] + orig + out[loc[1]:]
			continue
		}

		if replaced, ok := unmaskBare(out, idx, orig); ok {
			out = replaced
		}
	}

	return regexp.MustCompile(`⟪MSK\d+⟫`).ReplaceAllString(out, "")
}

// RemoveRepeatingNewSymbols drops runs of ≥2 identical symbol/punctuation
// characters in out that never appear in src at all — a common decoder
// artifact ("!!!!", repeated emoji) — then collapses any resulting run of
// 3+ whitespace characters down to two spaces.
func RemoveRepeatingNewSymbols(src, out string) string {
	if out == "" {
		return out
	}

	allowed := make(map[rune]bool)
	for _, ch := range src {
		if isSymbolChar(ch) {
			allowed[ch] = true
		}
	}

	runes := []rune(out)
	var buf strings.Builder
	i := 0
	for i < len(runes) {
		ch := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == ch {
			j++
		}
		runLen := j - i

		if runLen >= 2 && isSymbolChar(ch) && !allowed[ch] {
			// drop the whole run
		} else {
			buf.WriteString(string(runes[i:j]))
		}
		i = j
	}

	cleaned := buf.String()
	return collapseWhitespace(cleaned)
}

// unmaskBare finds a bare "MSK<idx>" occurrence not immediately followed by
// another digit (which would mean it's really MSK<idx><more digits>, e.g.
// avoiding "MSK1" matching inside "MSK12") and replaces it with orig.
func unmaskBare(out string, idx int, orig string) (string, bool) {
	pattern := regexp.MustCompile(`[Mm][Ss][Kk]\s*` + strconv.Itoa(idx) + `([0-9]?)`)
	for _, loc := range pattern.FindAllStringSubmatchIndex(out, -1) {
		if loc[2] == loc[3] { // trailing digit group is empty: genuine match
			return out[:loc[0]] + orig + out[loc[1]:], true
		}
	}
	return out, false
}

func isSymbolChar(ch rune) bool {
	if unicode.IsSpace(ch) || unicode.IsLetter(ch) || unicode.IsDigit(ch) {
		return false
	}
	return unicode.IsPunct(ch) || unicode.IsSymbol(ch)
}

var excessWhitespaceRe = regexp.MustCompile(`\s{3,}`)

func collapseWhitespace(s string) string {
	return excessWhitespaceRe.ReplaceAllString(s, "  ")
}
