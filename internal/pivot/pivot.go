// Package pivot implements the Pivot Planner (C5): when a direct pair is
// unavailable in any family, find a shortest two-hop path through a
// bridging language via set intersection over each family's known pairs.
// The planner is deterministic and pure: the same pair sets always yield
// the same plan.
package pivot

import (
	"nmtd/internal/family"
	"nmtd/pkg/types"
)

// Planner picks a PivotPlan given per-family AvailablePairs, trying
// families in fallback order and falling back to scanning other families
// per hop when same-family sets don't intersect (mixed-family hops are
// permitted — see SPEC_FULL.md §4's Open Question decision).
type Planner struct {
	FallbackOrder []types.Family
	PivotLang     string
}

// Plan returns a pivot plan for (src,tgt) given each family's known pairs,
// or false if no bridging language exists in any family.
func (p Planner) Plan(pairsByFamily map[types.Family][]types.Pair, src, tgt string) (types.PivotPlan, bool) {
	order := p.FallbackOrder
	if len(order) == 0 {
		order = []types.Family{types.FamilyOpusMT, types.FamilyMBart50, types.FamilyM2M100}
	}

	// Same-family hops first: cheaper (one fewer model swap).
	for _, f := range order {
		pairs := pairsByFamily[f]
		if candidates := intersect(pairs, src, tgt); len(candidates) > 0 {
			mid := family.PivotPriority(candidates, p.PivotLang, tgt)[0]
			return buildPlan(src, mid, tgt, f, f), true
		}
	}

	// Cross-family: hop1 from one family's R set, hop2 from another
	// family's L set, intersected.
	for _, f1 := range order {
		r := reachableFrom(pairsByFamily[f1], src)
		if len(r) == 0 {
			continue
		}
		for _, f2 := range order {
			l := reachableTo(pairsByFamily[f2], tgt)
			if len(l) == 0 {
				continue
			}
			candidates := intersectSets(r, l)
			if len(candidates) > 0 {
				mid := family.PivotPriority(candidates, p.PivotLang, tgt)[0]
				return buildPlan(src, mid, tgt, f1, f2), true
			}
		}
	}

	return types.PivotPlan{}, false
}

func buildPlan(src, mid, tgt string, f1, f2 types.Family) types.PivotPlan {
	return types.PivotPlan{
		Hops:          []types.Pair{{Src: src, Tgt: mid}, {Src: mid, Tgt: tgt}},
		FamilyForHop1: f1,
		FamilyForHop2: f2,
	}
}

// intersect computes {m : (src,m) in pairs} ∩ {m : (m,tgt) in pairs},
// returned in map iteration order; PivotPriority sorts it when ranking.
func intersect(pairs []types.Pair, src, tgt string) []string {
	return intersectSets(reachableFrom(pairs, src), reachableTo(pairs, tgt))
}

func reachableFrom(pairs []types.Pair, src string) map[string]bool {
	out := make(map[string]bool)
	for _, p := range pairs {
		if p.Src == src {
			out[p.Tgt] = true
		}
	}
	return out
}

func reachableTo(pairs []types.Pair, tgt string) map[string]bool {
	out := make(map[string]bool)
	for _, p := range pairs {
		if p.Tgt == tgt {
			out[p.Src] = true
		}
	}
	return out
}

func intersectSets(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	return out
}

// Valid reports whether plan's two legs are both present in at least one
// family's AvailablePairs — the invariant spec.md §8 names "pivot
// validity".
func Valid(plan types.PivotPlan, pairsByFamily map[types.Family][]types.Pair) bool {
	if len(plan.Hops) != 2 {
		return false
	}
	return containsPair(pairsByFamily[plan.FamilyForHop1], plan.Hops[0]) &&
		containsPair(pairsByFamily[plan.FamilyForHop2], plan.Hops[1])
}

func containsPair(pairs []types.Pair, want types.Pair) bool {
	for _, p := range pairs {
		if p == want {
			return true
		}
	}
	return false
}
