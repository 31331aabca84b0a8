// Package httpapi implements the API Edge (C10): the chi-based HTTP
// surface fronting the Translation Orchestrator, Queue & Slot Manager,
// Pipeline Cache, Model Discovery and language Detector. Grounded on the
// teacher's internal/httpapi/server.go (router assembly, middleware
// stack, writeJSONError/HTTPError conventions), generalized from a
// single-service Infer/Status/ListModels surface to the translation
// surface spec.md §6.1 describes, and with CORS actually wired via
// github.com/go-chi/cors (the teacher imports it in config.go but never
// mounts it).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nmtd/internal/cache"
	"nmtd/internal/detect"
	"nmtd/internal/device"
	"nmtd/internal/discovery"
	"nmtd/internal/orchestrator"
	"nmtd/internal/queue"
	"nmtd/pkg/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ModelSnapshot is the runtime configuration snapshot the edge reports on
// GET /model_name, kept separate from internal/config.Config so this
// package doesn't import it (cmd/nmtd builds the snapshot at startup).
type ModelSnapshot struct {
	DefaultFamily            string
	EasyNMTBatchSize         int
	MaxTextLen               *int
	MaxBeamSize              *int
	MaxWorkersBackend        int
	MaxWorkersFrontend       int
	InputSanitize            bool
	InputMinAlnumRatio       float64
	InputMinChars            int
	UndeterminedLangCode     string
	AlignResponses           bool
	SanitizePlaceholder      string
	SentenceSplittingDefault bool
	MaxSentenceChars         int
	MaxChunkChars            int
	JoinSentencesWith        string
	PivotFallback            bool
	PivotLang                string
	LogLevel                 string
}

// Server bundles every collaborator the HTTP edge drives. It holds no
// business logic of its own beyond request parsing, admission, response
// assembly and error mapping.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Queue        *queue.Gate
	Cache        *cache.PipelineCache
	Discovery    *discovery.Service
	Detector     detect.Detector
	Device       device.Device
	Snapshot     ModelSnapshot
	Log          zerolog.Logger
}

// NewMux builds the full chi router for the Server.
func NewMux(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
			MaxAge:         300,
		}))
	}

	r.Post("/translate", s.handleTranslatePost)
	r.Get("/translate", s.handleTranslateGet)
	r.Get("/lang_pairs", s.handleLangPairs)
	r.Get("/get_languages", s.handleGetLanguages)
	r.Get("/language_detection", s.handleLanguageDetectionGet)
	r.Post("/language_detection", s.handleLanguageDetectionPost)
	r.Get("/model_name", s.handleModelName)
	r.Get("/discover/all", s.handleDiscoverAll)
	r.Get("/discover/{family}", s.handleDiscoverFamily)
	r.Post("/discover/clear-cache", s.handleDiscoverClearCache)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/cache", s.handleCacheStatus)

	r.Get("/compat/translate", s.handleCompatTranslateGet)
	r.Post("/compat/translate", s.handleCompatTranslatePost)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// jobFromPost builds a TranslationJob from a parsed POST body.
func jobFromPost(body types.TranslatePostBody) types.TranslationJob {
	splitting := true
	if body.PerformSentenceSplitting != nil {
		splitting = *body.PerformSentenceSplitting
	}
	beam := body.BeamSize
	if beam < 1 {
		beam = 1
	}
	return types.TranslationJob{
		Texts:                    body.Text.Values,
		SourceLang:               strings.TrimSpace(body.SourceLang),
		TargetLang:               strings.TrimSpace(body.TargetLang),
		BeamSize:                 beam,
		PerformSentenceSplitting: splitting,
		PreferredFamily:          types.Family(body.ModelFamily),
		IncludeMetadata:          true,
		WasScalar:                body.Text.WasScalar,
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return errUnsupportedMediaType
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

var errUnsupportedMediaType = &mediaTypeError{}

type mediaTypeError struct{}

func (*mediaTypeError) Error() string { return "Content-Type must be application/json" }

// acquireAndTranslate runs the full admission->translate->release cycle
// shared by every translate handler, recording the observed duration
// against the queue's EMA (C6 acquires, C7 drives, C6 records) per
// spec.md §5's control-flow diagram.
func (s *Server) acquireAndTranslate(r *http.Request, job types.TranslationJob) (orchestrator.Result, time.Duration, error) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	handle, err := s.Queue.Acquire(ctx)
	if err != nil {
		return orchestrator.Result{}, 0, err
	}

	start := time.Now()
	res := s.Orchestrator.Translate(ctx, job)
	dur := time.Since(start)
	handle.Release(dur.Seconds())
	for _, item := range res.Items {
		if item.PivotPath != "" {
			pivotUsedTotal.Inc()
		}
	}
	return res, dur, nil
}

func (s *Server) handleTranslatePost(w http.ResponseWriter, r *http.Request) {
	var body types.TranslatePostBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", 0)
		return
	}
	if len(body.Text.Values) == 0 {
		sourceLang := strings.TrimSpace(body.SourceLang)
		if sourceLang == "" {
			sourceLang = "auto"
		}
		writeJSON(w, http.StatusOK, types.TranslatePostResponse{
			TargetLang: strings.TrimSpace(body.TargetLang),
			SourceLang: sourceLang,
			Translated: []string{},
		})
		logRequestEnd(r, http.StatusOK, nil)
		return
	}
	if strings.TrimSpace(body.TargetLang) == "" {
		writeJSONError(w, http.StatusBadRequest, "target_lang is required", 0)
		return
	}

	job := jobFromPost(body)
	res, dur, err := s.acquireAndTranslate(r, job)
	if err != nil {
		status, retryAfter := mapAcquireError(err)
		if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
			IncrementBackpressure(strings.ToLower(http.StatusText(status)))
		}
		writeJSONError(w, status, err.Error(), retryAfter)
		logRequestEnd(r, status, err)
		return
	}

	resp := types.TranslatePostResponse{
		TargetLang:      job.TargetLang,
		SourceLang:      job.SourceLang,
		Translated:      []string{},
		TranslationTime: dur.Seconds(),
	}
	if resp.SourceLang == "" {
		resp.SourceLang = "auto"
	}

	var errs []string
	var pivotPath string
	var lastFamily, lastModel string
	chunksTotal := 0
	autoChunked := false
	for i, item := range res.Items {
		if item.Err != nil {
			errs = append(errs, itemErrorMessage(i, item.Err))
			if !s.Snapshot.AlignResponses {
				continue
			}
		}
		resp.Translated = append(resp.Translated, item.Translated)
		if job.SourceLang == "" || job.SourceLang == "auto" {
			resp.DetectedLangs = append(resp.DetectedLangs, item.DetectedSrc)
		}
		if item.PivotPath != "" {
			pivotPath = item.PivotPath
		}
		if item.UsedFamily != "" {
			lastFamily = string(item.UsedFamily)
		}
		if item.UsedModelID != "" {
			lastModel = item.UsedModelID
		}
		chunksTotal += item.ChunksUsed
		if item.ChunksUsed > 1 {
			autoChunked = true
		}
	}
	resp.PivotPath = pivotPath
	resp.Metadata = &types.ResponseMetadata{
		ModelName:       lastModel,
		Family:          lastFamily,
		ChunksProcessed: chunksTotal,
		ChunkSize:       s.Snapshot.MaxChunkChars,
		AutoChunked:     autoChunked,
		PivotPath:       pivotPath,
		Errors:          errs,
	}

	writeJSON(w, http.StatusOK, resp)
	logRequestEnd(r, http.StatusOK, nil)
	logTranslateDebug(r, job.Texts, resp.Translated)
}

func (s *Server) handleTranslateGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	texts := q["text"]
	if len(texts) == 0 {
		writeJSON(w, http.StatusOK, types.TranslateGetResponse{Translations: []string{}})
		logRequestEnd(r, http.StatusOK, nil)
		return
	}
	targetLang := strings.TrimSpace(q.Get("target_lang"))
	if targetLang == "" {
		writeJSONError(w, http.StatusBadRequest, "target_lang is required", 0)
		return
	}
	beam := 5
	if v := q.Get("beam_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			beam = n
		}
	}
	splitting := true
	if v := q.Get("perform_sentence_splitting"); v != "" {
		splitting = v == "1" || strings.EqualFold(v, "true")
	}

	job := types.TranslationJob{
		Texts:                    texts,
		SourceLang:               strings.TrimSpace(q.Get("source_lang")),
		TargetLang:               targetLang,
		BeamSize:                 beam,
		PerformSentenceSplitting: splitting,
	}

	res, _, err := s.acquireAndTranslate(r, job)
	if err != nil {
		status, retryAfter := mapAcquireError(err)
		writeJSONError(w, status, err.Error(), retryAfter)
		logRequestEnd(r, status, err)
		return
	}

	resp := types.TranslateGetResponse{Translations: []string{}}
	for _, item := range res.Items {
		if item.Err != nil && !s.Snapshot.AlignResponses {
			continue
		}
		resp.Translations = append(resp.Translations, item.Translated)
		if item.PivotPath != "" {
			resp.PivotPath = item.PivotPath
		}
	}
	writeJSON(w, http.StatusOK, resp)
	logRequestEnd(r, http.StatusOK, nil)
	logTranslateDebug(r, job.Texts, resp.Translations)
}

func (s *Server) handleLangPairs(w http.ResponseWriter, r *http.Request) {
	all := s.Discovery.AllPairs(r.Context())
	seen := make(map[[2]string]bool)
	var out [][2]string
	for _, pairs := range all {
		for _, p := range pairs {
			key := [2]string{p.Src, p.Tgt}
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	writeJSON(w, http.StatusOK, types.LanguagePairsResponse{LanguagePairs: out})
}

func (s *Server) handleGetLanguages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	srcFilter := strings.TrimSpace(q.Get("source_lang"))
	tgtFilter := strings.TrimSpace(q.Get("target_lang"))

	all := s.Discovery.AllPairs(r.Context())
	seen := make(map[string]bool)
	var langs []string
	for _, pairs := range all {
		for _, p := range pairs {
			if srcFilter != "" && p.Src != srcFilter {
				continue
			}
			if tgtFilter != "" && p.Tgt != tgtFilter {
				continue
			}
			for _, lang := range []string{p.Src, p.Tgt} {
				if !seen[lang] {
					seen[lang] = true
					langs = append(langs, lang)
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, types.LanguagesResponse{Languages: langs})
}

func (s *Server) handleLanguageDetectionGet(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	writeJSON(w, http.StatusOK, types.LanguageDetectionResponse{Language: s.Detector.Detect(text)})
}

func (s *Server) handleLanguageDetectionPost(w http.ResponseWriter, r *http.Request) {
	var body types.LanguageDetectionPostBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", 0)
		return
	}
	// language_detection reports the language of the first item; batches
	// are a convenience for /translate, not this diagnostic endpoint. An
	// empty list has no first item to report on, so it reports
	// types.UndeterminedCode rather than rejecting the request.
	lang := types.UndeterminedCode
	if len(body.Text.Values) > 0 {
		lang = s.Detector.Detect(body.Text.Values[0])
	}
	writeJSON(w, http.StatusOK, types.LanguageDetectionResponse{Language: lang})
}

func (s *Server) handleModelName(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot
	writeJSON(w, http.StatusOK, types.ModelInfoResponse{
		ModelName:                  snap.DefaultFamily,
		Device:                     s.Device.String(),
		EasyNMTModel:               snap.DefaultFamily,
		BatchSize:                  snap.EasyNMTBatchSize,
		MaxTextLen:                 snap.MaxTextLen,
		MaxBeamSize:                snap.MaxBeamSize,
		Workers:                    map[string]int{"backend": snap.MaxWorkersBackend, "frontend": snap.MaxWorkersFrontend},
		InputSanitize:              snap.InputSanitize,
		InputSanitizeMinAlnumRatio: snap.InputMinAlnumRatio,
		InputSanitizeMinChars:      snap.InputMinChars,
		UndeterminedLangCode:       snap.UndeterminedLangCode,
		AlignResponses:             snap.AlignResponses,
		SanitizePlaceholder:        snap.SanitizePlaceholder,
		SentenceSplittingDefault:   snap.SentenceSplittingDefault,
		MaxSentenceChars:           snap.MaxSentenceChars,
		MaxChunkChars:              snap.MaxChunkChars,
		JoinSentencesWith:          snap.JoinSentencesWith,
		PivotFallback:              snap.PivotFallback,
		PivotLang:                  snap.PivotLang,
		Logging:                    map[string]any{"level": snap.LogLevel},
	})
}

func (s *Server) handleDiscoverFamily(w http.ResponseWriter, r *http.Request) {
	family := types.Family(chi.URLParam(r, "family"))
	pairs := s.Discovery.AvailablePairs(r.Context(), family)
	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		out[i] = [2]string{p.Src, p.Tgt}
	}
	writeJSON(w, http.StatusOK, types.DiscoverResponse{
		Family:        string(family),
		LanguagePairs: out,
		CachedAt:      time.Now().Unix(),
	})
}

func (s *Server) handleDiscoverAll(w http.ResponseWriter, r *http.Request) {
	all := s.Discovery.AllPairs(r.Context())
	var out [][2]string
	for _, pairs := range all {
		for _, p := range pairs {
			out = append(out, [2]string{p.Src, p.Tgt})
		}
	}
	writeJSON(w, http.StatusOK, types.DiscoverResponse{LanguagePairs: out, CachedAt: time.Now().Unix()})
}

func (s *Server) handleDiscoverClearCache(w http.ResponseWriter, r *http.Request) {
	s.Discovery.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	metrics := s.Queue.Metrics()
	writeJSON(w, http.StatusOK, types.ReadinessResponse{
		Status:       "ready",
		Device:       s.Device.String(),
		QueueEnabled: metrics.CapacityWait > 0,
		MaxInflight:  metrics.CapacityInflight,
	})
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.Queue.Metrics()
	keys := s.Cache.Keys()
	cacheSizeGauge.Set(float64(len(keys)))
	queueDepthGauge.Set(float64(metrics.Waiting))
	queueInflightGauge.Set(float64(metrics.Inflight))
	writeJSON(w, http.StatusOK, types.CacheStatusResponse{
		Capacity:     metrics.CapacityInflight,
		Size:         len(keys),
		Keys:         keys,
		Device:       s.Device.String(),
		Inflight:     metrics.Inflight,
		QueueEnabled: metrics.CapacityWait > 0,
	})
}

// Compat namespace: strict EasyNMT-shaped responses, no metadata/pivot
// diagnostics, per spec.md §6.1.

func (s *Server) handleCompatTranslateGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	texts := q["text"]
	if len(texts) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"translations": []string{}})
		return
	}
	targetLang := strings.TrimSpace(q.Get("target_lang"))
	if targetLang == "" {
		writeJSONError(w, http.StatusBadRequest, "target_lang is required", 0)
		return
	}
	job := types.TranslationJob{
		Texts:                    texts,
		SourceLang:               strings.TrimSpace(q.Get("source_lang")),
		TargetLang:               targetLang,
		BeamSize:                 5,
		PerformSentenceSplitting: true,
	}
	res, _, err := s.acquireAndTranslate(r, job)
	if err != nil {
		status, retryAfter := mapAcquireError(err)
		writeJSONError(w, status, err.Error(), retryAfter)
		return
	}
	translations := []string{}
	for _, item := range res.Items {
		if item.Err != nil && !s.Snapshot.AlignResponses {
			continue
		}
		translations = append(translations, item.Translated)
	}
	writeJSON(w, http.StatusOK, map[string]any{"translations": translations})
}

func (s *Server) handleCompatTranslatePost(w http.ResponseWriter, r *http.Request) {
	var body types.TranslatePostBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", 0)
		return
	}
	if len(body.Text.Values) == 0 {
		sourceLang := strings.TrimSpace(body.SourceLang)
		if sourceLang == "" {
			sourceLang = "auto"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"target_lang":      strings.TrimSpace(body.TargetLang),
			"source_lang":      sourceLang,
			"detected_langs":   []string{},
			"translated":       []string{},
			"translation_time": 0.0,
		})
		return
	}
	if strings.TrimSpace(body.TargetLang) == "" {
		writeJSONError(w, http.StatusBadRequest, "target_lang is required", 0)
		return
	}

	job := jobFromPost(body)
	res, dur, err := s.acquireAndTranslate(r, job)
	if err != nil {
		status, retryAfter := mapAcquireError(err)
		writeJSONError(w, status, err.Error(), retryAfter)
		return
	}

	translated := []string{}
	var detected []string
	for _, item := range res.Items {
		if item.Err != nil && !s.Snapshot.AlignResponses {
			continue
		}
		translated = append(translated, item.Translated)
		if job.SourceLang == "" || job.SourceLang == "auto" {
			detected = append(detected, item.DetectedSrc)
		}
	}

	sourceLang := job.SourceLang
	if sourceLang == "" {
		sourceLang = "auto"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_lang":      job.TargetLang,
		"source_lang":      sourceLang,
		"detected_langs":   detected,
		"translated":       translated,
		"translation_time": dur.Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
