package types

import "encoding/json"

// TextOrList unmarshals a JSON value that is either a single string or a
// list of strings into a normalized slice, remembering which shape the
// caller used so the response can mirror it where the surface calls for
// that (the compat namespace in particular).
type TextOrList struct {
	Values   []string
	WasScalar bool
}

func (t *TextOrList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Values = []string{s}
		t.WasScalar = true
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	t.Values = list
	t.WasScalar = false
	return nil
}

func (t TextOrList) MarshalJSON() ([]byte, error) {
	if t.WasScalar && len(t.Values) == 1 {
		return json.Marshal(t.Values[0])
	}
	return json.Marshal(t.Values)
}

// TranslatePostBody is the body of POST /translate.
// example: {"text":"Hello world","target_lang":"de","source_lang":"en"}
type TranslatePostBody struct {
	Text                     TextOrList `json:"text"`
	TargetLang               string     `json:"target_lang" example:"de"`
	SourceLang               string     `json:"source_lang,omitempty" example:"en"`
	BeamSize                 int        `json:"beam_size,omitempty" example:"5"`
	PerformSentenceSplitting *bool      `json:"perform_sentence_splitting,omitempty"`
	ModelFamily              string     `json:"model_family,omitempty" example:"opus-mt"`
}

// TranslatePostResponse is the 200 response of POST /translate.
type TranslatePostResponse struct {
	TargetLang      string            `json:"target_lang"`
	SourceLang      string            `json:"source_lang"`
	DetectedLangs   []string          `json:"detected_langs,omitempty"`
	Translated      []string          `json:"translated"`
	TranslationTime float64           `json:"translation_time"`
	PivotPath       string            `json:"pivot_path,omitempty"`
	Metadata        *ResponseMetadata `json:"metadata,omitempty"`
}

// ResponseMetadata carries the per-request diagnostics named in spec §4.7.
type ResponseMetadata struct {
	ModelName      string   `json:"model_name,omitempty"`
	Family         string   `json:"family,omitempty"`
	LanguagesUsed  []string `json:"languages_used,omitempty"`
	ChunksProcessed int     `json:"chunks_processed,omitempty"`
	ChunkSize      int      `json:"chunk_size,omitempty"`
	AutoChunked    bool     `json:"auto_chunked,omitempty"`
	PivotPath      string   `json:"pivot_path,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// TranslateGetResponse is the response of GET /translate.
type TranslateGetResponse struct {
	Translations []string `json:"translations"`
	PivotPath    string   `json:"pivot_path,omitempty"`
}

// LanguagePairsResponse is the response of GET /lang_pairs.
type LanguagePairsResponse struct {
	LanguagePairs [][2]string `json:"language_pairs"`
}

// LanguagesResponse is the response of GET /get_languages.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// LanguageDetectionPostBody is the body of POST /language_detection.
type LanguageDetectionPostBody struct {
	Text TextOrList `json:"text"`
}

// LanguageDetectionResponse is the response of GET/POST /language_detection.
type LanguageDetectionResponse struct {
	Language string `json:"language"`
}

// ModelInfoResponse is the response of GET /model_name: a runtime snapshot
// of the currently-effective configuration and device, for operators
// diagnosing a fleet.
type ModelInfoResponse struct {
	ModelName                  string         `json:"model_name"`
	Device                     string         `json:"device"`
	EasyNMTModel               string         `json:"easynmt_model"`
	BatchSize                  int            `json:"batch_size"`
	MaxTextLen                 *int           `json:"max_text_len"`
	MaxBeamSize                *int           `json:"max_beam_size"`
	Workers                    map[string]int `json:"workers"`
	InputSanitize              bool           `json:"input_sanitize"`
	InputSanitizeMinAlnumRatio float64        `json:"input_sanitize_min_alnum_ratio"`
	InputSanitizeMinChars      int            `json:"input_sanitize_min_chars"`
	UndeterminedLangCode       string         `json:"undetermined_lang_code"`
	AlignResponses             bool           `json:"align_responses"`
	SanitizePlaceholder        string         `json:"sanitize_placeholder"`
	SentenceSplittingDefault   bool           `json:"sentence_splitting_default"`
	MaxSentenceChars           int            `json:"max_sentence_chars"`
	MaxChunkChars              int            `json:"max_chunk_chars"`
	JoinSentencesWith          string         `json:"join_sentences_with"`
	PivotFallback              bool           `json:"pivot_fallback"`
	PivotLang                  string         `json:"pivot_lang"`
	Logging                    map[string]any `json:"logging"`
}

// CacheStatusResponse is the response of GET /cache.
type CacheStatusResponse struct {
	Capacity     int      `json:"capacity"`
	Size         int      `json:"size"`
	Keys         []string `json:"keys"`
	Device       string   `json:"device"`
	Inflight     int      `json:"inflight"`
	QueueEnabled bool     `json:"queue_enabled"`
}

// HealthResponse is the response of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse is the response of GET /readyz.
type ReadinessResponse struct {
	Status       string `json:"status"`
	Device       string `json:"device"`
	QueueEnabled bool   `json:"queue_enabled"`
	MaxInflight  int    `json:"max_inflight"`
}

// DiscoverResponse is the response of GET /discover/{family} and
// GET /discover/all.
type DiscoverResponse struct {
	Family        string      `json:"family,omitempty"`
	LanguagePairs [][2]string `json:"language_pairs"`
	CachedAt      int64       `json:"cached_at_unix"`
}

// ErrorResponse is the consistent JSON error payload used across the edge.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          int    `json:"code"`
	RetryAfterSec int    `json:"retry_after_sec,omitempty"`
}
