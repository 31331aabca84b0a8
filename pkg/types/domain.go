// Package types holds the data model shared across the gateway: language
// pairs, model families, cache handles, and the wire-level request/response
// shapes of the HTTP surface.
package types

import "time"

// Family identifies a group of translation models sharing a code/ID
// convention.
type Family string

const (
	FamilyOpusMT  Family = "opus-mt"
	FamilyMBart50 Family = "mbart50"
	FamilyM2M100  Family = "m2m100"
)

// UndeterminedCode is the reserved language code for text whose language
// could not be determined.
const UndeterminedCode = "und"

// Pair is an ordered (src,tgt) language tuple. Language codes are opaque
// lowercase ASCII tokens; "und" is reserved for "undetermined".
type Pair struct {
	Src string
	Tgt string
}

// CacheKey uniquely identifies a loaded Pipeline: one per (pair, family).
type CacheKey struct {
	Src    string
	Tgt    string
	Family Family
}

// String renders the key in the canonical "{src}->{tgt}:{family}" form.
func (k CacheKey) String() string {
	return k.Src + "->" + k.Tgt + ":" + string(k.Family)
}

// PipelineMeta is the metadata the Pipeline Cache attaches to every loaded
// pipeline handle. The handle itself is opaque to everything but the
// inference runtime collaborator (internal/runtime).
type PipelineMeta struct {
	ModelID    string
	Family     Family
	Device     string
	LastAccess time.Time
	SizeHintMB int
}

// TranslationJob is the normalized, per-request unit of work the
// Orchestrator drives to completion.
type TranslationJob struct {
	Texts                     []string
	SourceLang                string // "" or "auto" triggers detection
	TargetLang                string
	BeamSize                  int
	PerformSentenceSplitting  bool
	PreferredFamily           Family
	IncludeMetadata           bool
	WasScalar                 bool // request body carried a single string, not a list
}

// Chunk is one translation unit: a run of sentences belonging to a single
// input item, kept under the configured character budget.
type Chunk struct {
	ParentIndex int
	Sentences   []string
	CharTotal   int
}

// PivotPlan describes a two-hop translation path through a bridging
// language. Single-hop plans (Hops has length 1) degenerate to a direct
// candidate and are never constructed by the pivot planner itself.
type PivotPlan struct {
	Hops          []Pair
	FamilyForHop1 Family
	FamilyForHop2 Family
}

// Mid returns the bridging language of a two-hop plan.
func (p PivotPlan) Mid() string {
	if len(p.Hops) == 0 {
		return ""
	}
	return p.Hops[0].Tgt
}

// String renders the plan as "src->mid->tgt" for metadata/logging.
func (p PivotPlan) String() string {
	if len(p.Hops) != 2 {
		return ""
	}
	return p.Hops[0].Src + "->" + p.Hops[0].Tgt + "->" + p.Hops[1].Tgt
}

// MaskingRecord is the ordered list of original substrings captured during
// symbol masking. Occurrence i of the sentinel "⟪MSKi⟫" in model output maps
// positionally to Originals[i].
type MaskingRecord struct {
	Originals []string
}

// QueueMetrics is a point-in-time snapshot of the Queue & Slot Manager.
type QueueMetrics struct {
	Inflight         int
	Waiting          int
	CapacityInflight int
	CapacityWait     int
	EMADurationSec   float64
}

// Candidate is one concrete resolution target produced by the Model Router:
// a specific family with its family-specific language codes and model id.
type Candidate struct {
	ModelID  string
	Family   Family
	SrcCode  string
	TgtCode  string
}
