// Package family holds the static knowledge about each model family: its
// code mapper, model-id builder, and (for the multilingual families) its
// known supported language set. internal/router, internal/pivot and
// internal/discovery are built on top of it.
package family

import (
	"fmt"
	"sort"

	"nmtd/pkg/types"
)

// mbart50Langs lists the 49 languages this gateway treats as mBART-50
// languages; it is not the model's complete language list (ISO 639-1
// codes; the real model uses XX-code/_XX-script suffixes internally, which
// CodeFor below appends).
var mbart50Langs = []string{
	"ar", "cs", "de", "en", "es", "et", "fi", "fr", "gu",
	"he", "hi", "hr", "id", "it", "ja", "kk", "ko", "lt", "lv",
	"mk", "ml", "mn", "mr", "ne", "nl", "pl", "pt", "ro", "ru",
	"si", "sl", "sv", "sw", "ta", "te", "th", "tl", "tr", "uk",
	"ur", "vi", "xh", "zh", "af", "az", "bn", "fa", "gl", "ka",
}

// m2m100Langs is the 100-language set M2M-100 was trained on.
var m2m100Langs = []string{
	"af", "am", "ar", "ast", "az", "ba", "be", "bg", "bn", "br",
	"bs", "ca", "ceb", "cs", "cy", "da", "de", "el", "en", "es",
	"et", "fa", "ff", "fi", "fr", "fy", "ga", "gd", "gl", "gu",
	"ha", "he", "hi", "hr", "ht", "hu", "hy", "id", "ig", "ilo",
	"is", "it", "ja", "jv", "ka", "kk", "km", "kn", "ko", "lb",
	"lg", "ln", "lo", "lt", "lv", "mg", "mk", "ml", "mn", "mr",
	"ms", "my", "ne", "nl", "no", "ns", "oc", "or", "pa", "pl",
	"ps", "pt", "ro", "ru", "sd", "si", "sk", "sl", "so", "sq",
	"sr", "ss", "su", "sv", "sw", "ta", "th", "tl", "tn", "tr",
	"uk", "ur", "uz", "vi", "wo", "xh", "yi", "yo", "zh", "zu",
}

// indicPivotPriority lists the preferred pivot languages for Indic-script
// targets, per spec.md §4.5's "static priority order per target-script
// family" ranking rule.
var indicPivotPriority = []string{"hi", "bn", "ta"}

var indicTargets = map[string]bool{
	"hi": true, "bn": true, "ta": true, "te": true, "ml": true,
	"mr": true, "gu": true, "kn": true, "pa": true, "ne": true,
	"si": true, "ur": true,
}

// Known returns the static supported-language set of a multilingual
// family. opus-mt has no fixed set: its pairs are discovered dynamically
// (internal/discovery), so Known returns nil for it.
func Known(f types.Family) []string {
	switch f {
	case types.FamilyMBart50:
		return dedupSorted(mbart50Langs)
	case types.FamilyM2M100:
		return dedupSorted(m2m100Langs)
	default:
		return nil
	}
}

func dedupSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// SupportsPairStatically reports whether a multilingual family's known
// language set nominally supports (src,tgt). opus-mt is checked
// dynamically elsewhere (its model either exists on the registry or not),
// so this always returns true for it — the loader is the real gate.
func SupportsPairStatically(f types.Family, src, tgt string) bool {
	switch f {
	case types.FamilyMBart50, types.FamilyM2M100:
		set := knownSet(f)
		return set[src] && set[tgt] && src != tgt
	default:
		return src != tgt
	}
}

func knownSet(f types.Family) map[string]bool {
	out := make(map[string]bool)
	for _, l := range Known(f) {
		out[l] = true
	}
	return out
}

// CodeFor maps a plain language code to the family-specific code, e.g.
// mbart50 appends "_XX" script suffixes (simplified here to the same "_XX"
// suffix for every language, since exact script tags are a
// runtime-collaborator detail the model-id builder and inference runtime
// own together).
func CodeFor(f types.Family, lang string) string {
	switch f {
	case types.FamilyMBart50:
		return lang + "_XX"
	default:
		return lang
	}
}

// ModelID builds the concrete model identifier for (family, src, tgt).
// opus-mt loads one model per pair; mbart50/m2m100 share one multilingual
// model across all pairs.
func ModelID(f types.Family, src, tgt string) string {
	switch f {
	case types.FamilyOpusMT:
		return fmt.Sprintf("Helsinki-NLP/opus-mt-%s-%s", src, tgt)
	case types.FamilyMBart50:
		return "facebook/mbart-large-50-many-to-many-mmt"
	case types.FamilyM2M100:
		return "facebook/m2m100_418M"
	default:
		return ""
	}
}

// PivotPriority ranks pivot candidate languages for a given target
// language: PIVOT_LANG first if present in the candidate set, then a
// static per-script priority list, then alphabetical. See spec.md §4.5.
func PivotPriority(candidates []string, pivotLang, targetLang string) []string {
	set := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		set[c] = true
	}

	ranked := make([]string, 0, len(candidates))
	used := make(map[string]bool, len(candidates))

	if pivotLang != "" && set[pivotLang] {
		ranked = append(ranked, pivotLang)
		used[pivotLang] = true
	}

	if indicTargets[targetLang] {
		for _, p := range indicPivotPriority {
			if set[p] && !used[p] {
				ranked = append(ranked, p)
				used[p] = true
			}
		}
	}

	rest := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !used[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(ranked, rest...)
}
