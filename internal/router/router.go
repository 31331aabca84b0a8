// Package router implements the Model Router (C4): mapping
// (src, tgt, preferredFamily) to an ordered list of concrete translation
// candidates, applying preferred-family precedence and MODEL_FALLBACK_ORDER.
package router

import (
	"nmtd/internal/family"
	"nmtd/pkg/types"
)

// Router produces candidate lists per spec.md §4.4.
type Router struct {
	FallbackOrder     []types.Family
	AutoModelFallback bool
	// SupportsPair overrides static family support checks, letting the
	// caller wire in discovery-backed dynamic opus-mt pair checks. If nil,
	// family.SupportsPairStatically is used.
	SupportsPair func(f types.Family, src, tgt string) bool
}

// Candidates returns the ordered candidate list for (src, tgt), honoring
// an optional preferred family. The router never returns a list of length
// 1 when AutoModelFallback is enabled and more than one family nominally
// supports the pair — see spec.md §4.4 point 2.
func (r Router) Candidates(src, tgt string, preferredFamily types.Family) []types.Candidate {
	order := r.order(preferredFamily)

	var out []types.Candidate
	for _, f := range order {
		if !r.supports(f, src, tgt) {
			continue
		}
		out = append(out, types.Candidate{
			ModelID: family.ModelID(f, src, tgt),
			Family:  f,
			SrcCode: family.CodeFor(f, src),
			TgtCode: family.CodeFor(f, tgt),
		})
	}
	return out
}

func (r Router) order(preferredFamily types.Family) []types.Family {
	base := r.FallbackOrder
	if len(base) == 0 {
		base = []types.Family{types.FamilyOpusMT, types.FamilyMBart50, types.FamilyM2M100}
	}

	seen := make(map[types.Family]bool, len(base)+1)
	var order []types.Family

	if preferredFamily != "" {
		order = append(order, preferredFamily)
		seen[preferredFamily] = true
	}

	if preferredFamily == "" || r.AutoModelFallback {
		for _, f := range base {
			if !seen[f] {
				order = append(order, f)
				seen[f] = true
			}
		}
	}
	return order
}

func (r Router) supports(f types.Family, src, tgt string) bool {
	if r.SupportsPair != nil {
		return r.SupportsPair(f, src, tgt)
	}
	return family.SupportsPairStatically(f, src, tgt)
}
