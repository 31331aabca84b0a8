package pivot

import (
	"testing"

	"nmtd/pkg/types"
)

func opusPairs(pairs ...[2]string) []types.Pair {
	out := make([]types.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = types.Pair{Src: p[0], Tgt: p[1]}
	}
	return out
}

func TestPlanFindsSameFamilyBridge(t *testing.T) {
	pairsByFamily := map[types.Family][]types.Pair{
		types.FamilyOpusMT: opusPairs(
			[2]string{"hi", "en"}, [2]string{"en", "bn"},
		),
	}
	p := Planner{}
	plan, ok := p.Plan(pairsByFamily, "hi", "bn")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.Mid() != "en" {
		t.Errorf("expected mid=en, got %q", plan.Mid())
	}
	if !Valid(plan, pairsByFamily) {
		t.Error("plan should validate against the same pair sets it was built from")
	}
}

func TestPlanNoBridgeReturnsFalse(t *testing.T) {
	pairsByFamily := map[types.Family][]types.Pair{
		types.FamilyOpusMT: opusPairs([2]string{"hi", "en"}),
	}
	p := Planner{}
	if _, ok := p.Plan(pairsByFamily, "hi", "zz"); ok {
		t.Error("expected no plan when no bridge exists")
	}
}

func TestPlanCrossFamilyBridge(t *testing.T) {
	pairsByFamily := map[types.Family][]types.Pair{
		types.FamilyOpusMT:  opusPairs([2]string{"hi", "fr"}),
		types.FamilyMBart50: opusPairs([2]string{"fr", "bn"}),
	}
	p := Planner{FallbackOrder: []types.Family{types.FamilyOpusMT, types.FamilyMBart50}}
	plan, ok := p.Plan(pairsByFamily, "hi", "bn")
	if !ok {
		t.Fatal("expected a cross-family plan")
	}
	if plan.Mid() != "fr" {
		t.Errorf("expected mid=fr, got %q", plan.Mid())
	}
	if plan.FamilyForHop1 != types.FamilyOpusMT || plan.FamilyForHop2 != types.FamilyMBart50 {
		t.Errorf("unexpected family assignment: %v %v", plan.FamilyForHop1, plan.FamilyForHop2)
	}
}

func TestPlanPrefersPivotLang(t *testing.T) {
	pairsByFamily := map[types.Family][]types.Pair{
		types.FamilyOpusMT: opusPairs(
			[2]string{"hi", "fr"}, [2]string{"fr", "ta"},
			[2]string{"hi", "en"}, [2]string{"en", "ta"},
		),
	}
	p := Planner{PivotLang: "en"}
	plan, ok := p.Plan(pairsByFamily, "hi", "ta")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.Mid() != "en" {
		t.Errorf("expected configured pivot lang en to win, got %q", plan.Mid())
	}
}

func TestValidRejectsFabricatedPlan(t *testing.T) {
	pairsByFamily := map[types.Family][]types.Pair{
		types.FamilyOpusMT: opusPairs([2]string{"hi", "en"}),
	}
	fake := types.PivotPlan{
		Hops:          []types.Pair{{Src: "hi", Tgt: "en"}, {Src: "en", Tgt: "bn"}},
		FamilyForHop1: types.FamilyOpusMT,
		FamilyForHop2: types.FamilyOpusMT,
	}
	if Valid(fake, pairsByFamily) {
		t.Error("expected fabricated second hop to fail validation")
	}
}
