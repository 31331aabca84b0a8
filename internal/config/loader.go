// Package config centralizes runtime configuration for the gateway. The
// primary surface is typed environment variables (mirroring the original
// Marian Translator API's env-var config); an optional file overlay can
// supply defaults that the environment then takes precedence over.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec.md §6.3. Fields are grouped to
// match the categories the spec lists them under.
type Config struct {
	// Application
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Logging
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat     string `json:"log_format" yaml:"log_format" toml:"log_format"` // plain|json
	LogIncludeText bool  `json:"log_include_text" yaml:"log_include_text" toml:"log_include_text"`

	// Device selection
	UseGPU string `json:"use_gpu" yaml:"use_gpu" toml:"use_gpu"` // true|false|auto
	Device string `json:"device" yaml:"device" toml:"device"`    // auto|cpu|cuda|cuda:N

	// Model family + fallback
	DefaultFamily     string   `json:"default_family" yaml:"default_family" toml:"default_family"`
	ModelFallbackOrder []string `json:"model_fallback_order" yaml:"model_fallback_order" toml:"model_fallback_order"`
	AutoModelFallback bool     `json:"auto_model_fallback" yaml:"auto_model_fallback" toml:"auto_model_fallback"`

	// Cache
	MaxCachedModels    int `json:"max_cached_models" yaml:"max_cached_models" toml:"max_cached_models"`
	ModelIdleTimeoutSec int `json:"model_idle_timeout_sec" yaml:"model_idle_timeout_sec" toml:"model_idle_timeout_sec"`
	IdleCheckIntervalSec int `json:"idle_check_interval_sec" yaml:"idle_check_interval_sec" toml:"idle_check_interval_sec"`

	// Memory pressure thresholds (percent, 0-100)
	MemoryWarningThreshold   float64 `json:"memory_warning_threshold" yaml:"memory_warning_threshold" toml:"memory_warning_threshold"`
	MemoryCriticalThreshold  float64 `json:"memory_critical_threshold" yaml:"memory_critical_threshold" toml:"memory_critical_threshold"`
	GPUMemoryWarningThreshold  float64 `json:"gpu_memory_warning_threshold" yaml:"gpu_memory_warning_threshold" toml:"gpu_memory_warning_threshold"`
	GPUMemoryCriticalThreshold float64 `json:"gpu_memory_critical_threshold" yaml:"gpu_memory_critical_threshold" toml:"gpu_memory_critical_threshold"`
	MemoryHysteresisMargin     float64 `json:"memory_hysteresis_margin" yaml:"memory_hysteresis_margin" toml:"memory_hysteresis_margin"`

	// Queueing & backpressure
	EnableQueue              bool `json:"enable_queue" yaml:"enable_queue" toml:"enable_queue"`
	MaxInflightTranslationsRaw string `json:"max_inflight_translations" yaml:"max_inflight_translations" toml:"max_inflight_translations"`
	MaxQueueSize             int  `json:"max_queue_size" yaml:"max_queue_size" toml:"max_queue_size"`
	TranslateTimeoutSec      int  `json:"translate_timeout_sec" yaml:"translate_timeout_sec" toml:"translate_timeout_sec"`
	MaxWorkersBackend        int  `json:"max_workers_backend" yaml:"max_workers_backend" toml:"max_workers_backend"`
	MaxWorkersFrontend       int  `json:"max_workers_frontend" yaml:"max_workers_frontend" toml:"max_workers_frontend"`

	// Retry-After EMA
	RetryAfterMaxSec float64 `json:"retry_after_max_sec" yaml:"retry_after_max_sec" toml:"retry_after_max_sec"`
	RetryAfterMinSec float64 `json:"retry_after_min_sec" yaml:"retry_after_min_sec" toml:"retry_after_min_sec"`
	RetryAfterAlpha  float64 `json:"retry_after_alpha" yaml:"retry_after_alpha" toml:"retry_after_alpha"`

	// Input sanitization
	InputSanitize       bool    `json:"input_sanitize" yaml:"input_sanitize" toml:"input_sanitize"`
	InputMinAlnumRatio  float64 `json:"input_min_alnum_ratio" yaml:"input_min_alnum_ratio" toml:"input_min_alnum_ratio"`
	InputMinChars       int     `json:"input_min_chars" yaml:"input_min_chars" toml:"input_min_chars"`
	UndeterminedLangCode string `json:"undetermined_lang_code" yaml:"undetermined_lang_code" toml:"undetermined_lang_code"`

	// Response alignment & sentence/chunk sizing
	AlignResponses                 bool   `json:"align_responses" yaml:"align_responses" toml:"align_responses"`
	SanitizePlaceholder            string `json:"sanitize_placeholder" yaml:"sanitize_placeholder" toml:"sanitize_placeholder"`
	PerformSentenceSplittingDefault bool  `json:"perform_sentence_splitting_default" yaml:"perform_sentence_splitting_default" toml:"perform_sentence_splitting_default"`
	MaxSentenceChars               int    `json:"max_sentence_chars" yaml:"max_sentence_chars" toml:"max_sentence_chars"`
	MaxChunkChars                  int    `json:"max_chunk_chars" yaml:"max_chunk_chars" toml:"max_chunk_chars"`
	JoinSentencesWith              string `json:"join_sentences_with" yaml:"join_sentences_with" toml:"join_sentences_with"`
	AutoChunkEnabled                bool  `json:"auto_chunk_enabled" yaml:"auto_chunk_enabled" toml:"auto_chunk_enabled"`
	AutoChunkMaxChars               int   `json:"auto_chunk_max_chars" yaml:"auto_chunk_max_chars" toml:"auto_chunk_max_chars"`

	// Symbol masking
	SymbolMasking bool `json:"symbol_masking" yaml:"symbol_masking" toml:"symbol_masking"`
	MaskDigits    bool `json:"mask_digits" yaml:"mask_digits" toml:"mask_digits"`
	MaskPunct     bool `json:"mask_punct" yaml:"mask_punct" toml:"mask_punct"`
	MaskEmoji     bool `json:"mask_emoji" yaml:"mask_emoji" toml:"mask_emoji"`

	// Pivot
	PivotFallback bool   `json:"pivot_fallback" yaml:"pivot_fallback" toml:"pivot_fallback"`
	PivotLang     string `json:"pivot_lang" yaml:"pivot_lang" toml:"pivot_lang"`

	// Discovery
	DiscoveryTTLSec int `json:"discovery_ttl_sec" yaml:"discovery_ttl_sec" toml:"discovery_ttl_sec"`

	// Inference
	EasyNMTBatchSize      int `json:"easynmt_batch_size" yaml:"easynmt_batch_size" toml:"easynmt_batch_size"`
	EasyNMTMaxTextLenRaw  string `json:"easynmt_max_text_len" yaml:"easynmt_max_text_len" toml:"easynmt_max_text_len"`
	EasyNMTMaxBeamSizeRaw string `json:"easynmt_max_beam_size" yaml:"easynmt_max_beam_size" toml:"easynmt_max_beam_size"`

	// Maintenance
	DeviceCacheClearIntervalSec int `json:"device_cache_clear_interval_sec" yaml:"device_cache_clear_interval_sec" toml:"device_cache_clear_interval_sec"`

	// Preloading
	PreloadModels string `json:"preload_models" yaml:"preload_models" toml:"preload_models"`

	// CORS
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`

	// Graceful shutdown
	GracefulTimeoutSec int `json:"graceful_timeout_sec" yaml:"graceful_timeout_sec" toml:"graceful_timeout_sec"`
}

// Load reads a configuration file based on its extension and returns its
// values layered over Defaults(): fields the file does not set keep their
// default. Supports .yaml/.yml, .json, .toml — same dispatch the
// teacher's internal/config/loader.go uses.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Defaults returns the built-in defaults, lifted 1:1 from the original
// Marian Translator API's src/config.py.
func Defaults() Config {
	return Config{
		Addr: ":8000",

		LogLevel:       "INFO",
		LogFormat:      "plain",
		LogIncludeText: false,

		UseGPU: "auto",
		Device: "auto",

		DefaultFamily:      "opus-mt",
		ModelFallbackOrder: []string{"opus-mt", "mbart50", "m2m100"},
		AutoModelFallback:  true,

		MaxCachedModels:      6,
		ModelIdleTimeoutSec:  1800,
		IdleCheckIntervalSec: 300,

		MemoryWarningThreshold:     80,
		MemoryCriticalThreshold:    95,
		GPUMemoryWarningThreshold:  80,
		GPUMemoryCriticalThreshold: 95,
		MemoryHysteresisMargin:     10,

		EnableQueue:         true,
		MaxQueueSize:        1000,
		TranslateTimeoutSec: 0,
		MaxWorkersBackend:   1,
		MaxWorkersFrontend:  2,

		RetryAfterMaxSec: 120,
		RetryAfterMinSec: 1,
		RetryAfterAlpha:  0.2,

		InputSanitize:        true,
		InputMinAlnumRatio:   0.2,
		InputMinChars:        1,
		UndeterminedLangCode: "und",

		AlignResponses:                  true,
		SanitizePlaceholder:             "",
		PerformSentenceSplittingDefault: true,
		MaxSentenceChars:                500,
		MaxChunkChars:                   900,
		JoinSentencesWith:               " ",
		AutoChunkEnabled:                true,
		AutoChunkMaxChars:               4000,

		SymbolMasking: true,
		MaskDigits:    true,
		MaskPunct:     true,
		MaskEmoji:     true,

		PivotFallback: true,
		PivotLang:     "en",

		DiscoveryTTLSec: 3600,

		EasyNMTBatchSize: 16,

		DeviceCacheClearIntervalSec: 0,

		PreloadModels: "",

		CORSEnabled:        false,
		CORSAllowedOrigins: []string{"*"},

		GracefulTimeoutSec: 5,
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envStringList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// FromEnv layers environment variables over base (typically Defaults(), or
// a file-loaded overlay). The environment always wins, matching the
// original implementation's os.getenv(..., default) pattern.
func FromEnv(base Config) Config {
	c := base
	c.Addr = envString("NMTD_ADDR", c.Addr)

	c.LogLevel = strings.ToUpper(envString("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(envString("LOG_FORMAT", c.LogFormat))
	c.LogIncludeText = envBool("LOG_INCLUDE_TEXT", c.LogIncludeText)

	c.UseGPU = strings.ToLower(envString("USE_GPU", c.UseGPU))
	c.Device = envString("DEVICE", c.Device)

	c.DefaultFamily = envString("EASYNMT_MODEL", c.DefaultFamily)
	c.ModelFallbackOrder = envStringList("MODEL_FALLBACK_ORDER", c.ModelFallbackOrder)
	c.AutoModelFallback = envBool("AUTO_MODEL_FALLBACK", c.AutoModelFallback)

	c.MaxCachedModels = envInt("MAX_CACHED_MODELS", c.MaxCachedModels)
	c.ModelIdleTimeoutSec = envInt("MODEL_IDLE_TIMEOUT", c.ModelIdleTimeoutSec)
	c.IdleCheckIntervalSec = envInt("IDLE_CHECK_INTERVAL", c.IdleCheckIntervalSec)

	c.MemoryWarningThreshold = envFloat("MEMORY_WARNING_THRESHOLD", c.MemoryWarningThreshold)
	c.MemoryCriticalThreshold = envFloat("MEMORY_CRITICAL_THRESHOLD", c.MemoryCriticalThreshold)
	c.GPUMemoryWarningThreshold = envFloat("GPU_MEMORY_WARNING_THRESHOLD", c.GPUMemoryWarningThreshold)
	c.GPUMemoryCriticalThreshold = envFloat("GPU_MEMORY_CRITICAL_THRESHOLD", c.GPUMemoryCriticalThreshold)
	c.MemoryHysteresisMargin = envFloat("MEMORY_HYSTERESIS_MARGIN", c.MemoryHysteresisMargin)

	c.EnableQueue = envBool("ENABLE_QUEUE", c.EnableQueue)
	c.MaxInflightTranslationsRaw = envString("MAX_INFLIGHT_TRANSLATIONS", c.MaxInflightTranslationsRaw)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.TranslateTimeoutSec = envInt("TRANSLATE_TIMEOUT_SEC", c.TranslateTimeoutSec)
	c.MaxWorkersBackend = envInt("MAX_WORKERS_BACKEND", c.MaxWorkersBackend)
	c.MaxWorkersFrontend = envInt("MAX_WORKERS_FRONTEND", c.MaxWorkersFrontend)

	c.RetryAfterMaxSec = envFloat("RETRY_AFTER_MAX_SEC", c.RetryAfterMaxSec)
	c.RetryAfterMinSec = envFloat("RETRY_AFTER_MIN_SEC", c.RetryAfterMinSec)
	c.RetryAfterAlpha = envFloat("RETRY_AFTER_ALPHA", c.RetryAfterAlpha)

	c.InputSanitize = envBool("INPUT_SANITIZE", c.InputSanitize)
	c.InputMinAlnumRatio = envFloat("INPUT_MIN_ALNUM_RATIO", c.InputMinAlnumRatio)
	c.InputMinChars = envInt("INPUT_MIN_CHARS", c.InputMinChars)
	c.UndeterminedLangCode = envString("UNDETERMINED_LANG_CODE", c.UndeterminedLangCode)

	c.AlignResponses = envBool("ALIGN_RESPONSES", c.AlignResponses)
	c.SanitizePlaceholder = envString("SANITIZE_PLACEHOLDER", c.SanitizePlaceholder)
	c.PerformSentenceSplittingDefault = envBool("PERFORM_SENTENCE_SPLITTING_DEFAULT", c.PerformSentenceSplittingDefault)
	c.MaxSentenceChars = envInt("MAX_SENTENCE_CHARS", c.MaxSentenceChars)
	c.MaxChunkChars = envInt("MAX_CHUNK_CHARS", c.MaxChunkChars)
	c.JoinSentencesWith = envString("JOIN_SENTENCES_WITH", c.JoinSentencesWith)
	c.AutoChunkEnabled = envBool("AUTO_CHUNK_ENABLED", c.AutoChunkEnabled)
	c.AutoChunkMaxChars = envInt("AUTO_CHUNK_MAX_CHARS", c.AutoChunkMaxChars)

	c.SymbolMasking = envBool("SYMBOL_MASKING", c.SymbolMasking)
	c.MaskDigits = envBool("MASK_DIGITS", c.MaskDigits)
	c.MaskPunct = envBool("MASK_PUNCT", c.MaskPunct)
	c.MaskEmoji = envBool("MASK_EMOJI", c.MaskEmoji)

	c.PivotFallback = envBool("PIVOT_FALLBACK", c.PivotFallback)
	c.PivotLang = envString("PIVOT_LANG", c.PivotLang)

	c.DiscoveryTTLSec = envInt("DISCOVERY_TTL_SEC", c.DiscoveryTTLSec)

	c.EasyNMTBatchSize = envInt("EASYNMT_BATCH_SIZE", c.EasyNMTBatchSize)
	c.EasyNMTMaxTextLenRaw = envString("EASYNMT_MAX_TEXT_LEN", c.EasyNMTMaxTextLenRaw)
	c.EasyNMTMaxBeamSizeRaw = envString("EASYNMT_MAX_BEAM_SIZE", c.EasyNMTMaxBeamSizeRaw)

	c.DeviceCacheClearIntervalSec = envInt("CUDA_CACHE_CLEAR_INTERVAL_SEC", c.DeviceCacheClearIntervalSec)

	c.PreloadModels = envString("PRELOAD_MODELS", c.PreloadModels)

	c.CORSEnabled = envBool("CORS_ENABLED", c.CORSEnabled)
	c.CORSAllowedOrigins = envStringList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.GracefulTimeoutSec = envInt("GRACEFUL_TIMEOUT_SEC", c.GracefulTimeoutSec)

	return c
}

// MaxTextLen returns EasyNMTMaxTextLenRaw parsed as *int, nil if unset or
// not a valid non-negative integer (mirrors EASYNMT_MAX_TEXT_LEN_INT).
func (c Config) MaxTextLen() *int {
	return parseOptionalInt(c.EasyNMTMaxTextLenRaw)
}

// MaxBeamSize returns EasyNMTMaxBeamSizeRaw parsed as *int.
func (c Config) MaxBeamSize() *int {
	return parseOptionalInt(c.EasyNMTMaxBeamSizeRaw)
}

func parseOptionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
