// Package orchestrator implements the Translation Orchestrator (C7): the
// end-to-end request driver composing the Text Preprocessor (C1), Model
// Router (C4), Pivot Planner (C5), Pipeline Cache (C3) and the inference
// runtime collaborator into per-item translation with alignment
// guarantees. Grounded on
// original_source/src/services/translation_service.py's
// TranslationService (sanitize → direct-translate-with-pivot-fallback →
// per-item isolation), generalized from a single hard-coded pivot hop to
// the full candidate/family-fallback and multi-family pivot machinery
// spec.md §4.4/§4.5 describe.
package orchestrator

import (
	"context"

	"nmtd/internal/cache"
	"nmtd/internal/detect"
	"nmtd/internal/discovery"
	"nmtd/internal/family"
	"nmtd/internal/pivot"
	"nmtd/internal/preprocess"
	"nmtd/internal/router"
	"nmtd/internal/runtime"
	"nmtd/pkg/types"

	"github.com/rs/zerolog"
)

// Config carries the subset of internal/config.Config the orchestrator
// needs, kept as its own struct so this package doesn't import
// internal/config (cmd/nmtd wires the two together).
type Config struct {
	FallbackOrder     []types.Family
	AutoModelFallback bool

	MaxSentenceChars int
	MaxChunkChars    int
	JoinSentencesWith string
	AutoChunkEnabled  bool
	AutoChunkMaxChars int

	InputSanitize     bool
	InputMinChars     int
	InputMinAlnumRatio float64
	SanitizePlaceholder string

	MaskOptions preprocess.MaskOptions

	AlignResponses bool

	PivotFallback bool
	PivotLang     string

	EasyNMTBatchSize    int
	EasyNMTMaxBeamSize  *int
	EasyNMTMaxTextLen   *int

	Device string
}

// Orchestrator drives translation jobs to completion.
type Orchestrator struct {
	cfg       Config
	cache     *cache.PipelineCache
	rt        runtime.Runtime
	router    router.Router
	planner   pivot.Planner
	discovery *discovery.Service
	detector  detect.Detector
	log       zerolog.Logger
}

// New builds an Orchestrator from its collaborators.
func New(cfg Config, pc *cache.PipelineCache, rt runtime.Runtime, disc *discovery.Service, det detect.Detector, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		cache: pc,
		rt:    rt,
		router: router.Router{
			FallbackOrder:     cfg.FallbackOrder,
			AutoModelFallback: cfg.AutoModelFallback,
		},
		planner:   pivot.Planner{FallbackOrder: cfg.FallbackOrder, PivotLang: cfg.PivotLang},
		discovery: disc,
		detector:  det,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// ItemResult is the per-item outcome of a translation job, before response
// assembly.
type ItemResult struct {
	Translated  string
	DetectedSrc string
	UsedFamily  types.Family
	UsedModelID string
	PivotPath   string
	ChunksUsed  int
	Err         error
}

// Result is the full outcome of Translate: one ItemResult per input item,
// aligned by index whatever Config.AlignResponses is set to.
type Result struct {
	Items []ItemResult
}

// Translate runs job to completion, translating every item independently
// so a single item's failure never affects the others (spec.md §7: "Per-
// item failures never cascade").
func (o *Orchestrator) Translate(ctx context.Context, job types.TranslationJob) Result {
	pairsByFamily := o.pairsForFallbackOrder(ctx)

	items := make([]ItemResult, len(job.Texts))
	for i, text := range job.Texts {
		items[i] = o.translateItem(ctx, text, job, pairsByFamily)
	}
	return Result{Items: items}
}

// pairsForFallbackOrder discovers pairs only for the families the router
// is configured to fall back across, so the pivot planner never has to
// reach for a family this deployment never uses.
func (o *Orchestrator) pairsForFallbackOrder(ctx context.Context) map[types.Family][]types.Pair {
	order := o.cfg.FallbackOrder
	if len(order) == 0 {
		order = []types.Family{types.FamilyOpusMT, types.FamilyMBart50, types.FamilyM2M100}
	}
	out := make(map[types.Family][]types.Pair, len(order))
	for _, f := range order {
		out[f] = o.discovery.AvailablePairs(ctx, f)
	}
	return out
}

func (o *Orchestrator) translateItem(ctx context.Context, text string, job types.TranslationJob, pairsByFamily map[types.Family][]types.Pair) ItemResult {
	src := job.SourceLang
	if src == "" || src == "auto" {
		src = o.detector.Detect(text)
	}

	if o.cfg.InputSanitize && preprocess.IsNoise(text, o.cfg.InputMinChars, o.cfg.InputMinAlnumRatio) {
		return ItemResult{
			Translated:  o.cfg.SanitizePlaceholder,
			DetectedSrc: types.UndeterminedCode,
		}
	}

	beam := job.BeamSize
	if o.cfg.EasyNMTMaxBeamSize != nil && beam > *o.cfg.EasyNMTMaxBeamSize {
		beam = *o.cfg.EasyNMTMaxBeamSize
	}
	if beam < 1 {
		beam = 1
	}

	candidates := o.router.Candidates(src, job.TargetLang, job.PreferredFamily)
	for _, c := range candidates {
		out, chunksUsed, err := o.translateWithCandidate(ctx, text, c, beam, job.PerformSentenceSplitting)
		if err == nil {
			return ItemResult{
				Translated:  out,
				DetectedSrc: src,
				UsedFamily:  c.Family,
				UsedModelID: c.ModelID,
				ChunksUsed:  chunksUsed,
			}
		}
		o.log.Warn().Err(err).Str("family", string(c.Family)).Str("model", c.ModelID).Msg("candidate failed, trying next")
	}

	if o.cfg.PivotFallback && src != o.cfg.PivotLang && job.TargetLang != o.cfg.PivotLang {
		if plan, ok := o.planner.Plan(pairsByFamily, src, job.TargetLang); ok {
			out, chunksUsed, err := o.translateViaPivot(ctx, text, plan, beam, job.PerformSentenceSplitting)
			if err == nil {
				return ItemResult{
					Translated:  out,
					DetectedSrc: src,
					UsedFamily:  plan.FamilyForHop1,
					PivotPath:   plan.String(),
					ChunksUsed:  chunksUsed,
				}
			}
			o.log.Warn().Err(err).Str("plan", plan.String()).Msg("pivot translation failed")
		}
	}

	if o.cfg.AlignResponses {
		return ItemResult{Translated: o.cfg.SanitizePlaceholder, DetectedSrc: src, Err: ErrUnsupportedPair}
	}
	return ItemResult{DetectedSrc: src, Err: ErrUnsupportedPair}
}

// translateWithCandidate runs the split->chunk->mask->infer->unmask->join
// pipeline against a single router candidate (noise screening happens
// earlier, in translateItem).
func (o *Orchestrator) translateWithCandidate(ctx context.Context, text string, c types.Candidate, beam int, splitSentences bool) (string, int, error) {
	var chunkTexts []string
	if splitSentences {
		sentences := preprocess.SplitSentences(text, o.cfg.MaxSentenceChars)
		chunkTexts = preprocess.ChunkSentences(sentences, o.cfg.MaxChunkChars, o.cfg.JoinSentencesWith)
	} else {
		auto, _ := preprocess.AutoChunkIfEnabled(text, o.cfg.AutoChunkEnabled, o.cfg.AutoChunkMaxChars, o.cfg.MaxSentenceChars)
		chunkTexts = auto
	}
	if len(chunkTexts) == 0 {
		chunkTexts = []string{text}
	}

	key := types.CacheKey{Src: c.SrcCode, Tgt: c.TgtCode, Family: c.Family}
	pipeline, err := o.cache.GetOrLoad(ctx, key, o.loaderFor(c))
	if err != nil {
		return "", 0, err
	}

	masked := make([]string, len(chunkTexts))
	records := make([]types.MaskingRecord, len(chunkTexts))
	for i, ch := range chunkTexts {
		masked[i], records[i] = preprocess.MaskSymbols(ch, o.cfg.MaskOptions)
	}

	translatedChunks, err := o.runBatched(ctx, pipeline, masked, beam, c)
	if err != nil {
		return "", 0, err
	}

	unmasked := make([]string, len(translatedChunks))
	for i, out := range translatedChunks {
		unmasked[i] = preprocess.UnmaskSymbols(out, records[i])
	}

	joined := joinStrings(unmasked, o.cfg.JoinSentencesWith)
	joined = preprocess.RemoveRepeatingNewSymbols(text, joined)
	return joined, len(chunkTexts), nil
}

// translateViaPivot runs translateWithCandidate twice: src->mid via hop1's
// family, mid->tgt via hop2's family. Each hop uses only the family the
// plan assigned to it; no other family is tried when a hop fails.
func (o *Orchestrator) translateViaPivot(ctx context.Context, text string, plan types.PivotPlan, beam int, splitSentences bool) (string, int, error) {
	hop1 := types.Candidate{
		ModelID: family.ModelID(plan.FamilyForHop1, plan.Hops[0].Src, plan.Hops[0].Tgt),
		Family:  plan.FamilyForHop1,
		SrcCode: family.CodeFor(plan.FamilyForHop1, plan.Hops[0].Src),
		TgtCode: family.CodeFor(plan.FamilyForHop1, plan.Hops[0].Tgt),
	}
	mid, chunks1, err := o.translateWithCandidate(ctx, text, hop1, beam, splitSentences)
	if err != nil {
		return "", 0, err
	}

	hop2 := types.Candidate{
		ModelID: family.ModelID(plan.FamilyForHop2, plan.Hops[1].Src, plan.Hops[1].Tgt),
		Family:  plan.FamilyForHop2,
		SrcCode: family.CodeFor(plan.FamilyForHop2, plan.Hops[1].Src),
		TgtCode: family.CodeFor(plan.FamilyForHop2, plan.Hops[1].Tgt),
	}
	final, chunks2, err := o.translateWithCandidate(ctx, mid, hop2, beam, splitSentences)
	if err != nil {
		return "", 0, err
	}
	return final, chunks1 + chunks2, nil
}

func (o *Orchestrator) loaderFor(c types.Candidate) cache.Loader {
	return func(ctx context.Context, key types.CacheKey) (cache.Pipeline, error) {
		handle, err := o.rt.Load(ctx, runtime.LoadArgs{ModelID: c.ModelID, Device: o.cfg.Device})
		if err != nil {
			return cache.Pipeline{}, err
		}
		rt := o.rt
		return cache.Pipeline{
			Meta:   types.PipelineMeta{ModelID: c.ModelID, Family: c.Family, Device: o.cfg.Device},
			Handle: handle,
			Release: func() {
				_ = rt.Release(handle)
			},
		}, nil
	}
}

func (o *Orchestrator) runBatched(ctx context.Context, p cache.Pipeline, chunks []string, beam int, c types.Candidate) ([]string, error) {
	batchSize := o.cfg.EasyNMTBatchSize
	if batchSize < 1 {
		batchSize = len(chunks)
		if batchSize < 1 {
			batchSize = 1
		}
	}

	maxLen := 0
	if o.cfg.EasyNMTMaxTextLen != nil {
		maxLen = *o.cfg.EasyNMTMaxTextLen
	}

	out := make([]string, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		res, err := o.rt.Translate(ctx, p.Handle, batch, runtime.TranslateOptions{
			BatchSize: len(batch),
			BeamSize:  beam,
			MaxLength: maxLen,
			SrcCode:   c.SrcCode,
			TgtCode:   c.TgtCode,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func joinStrings(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += sep + p
	}
	return out
}
