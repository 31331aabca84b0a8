// Package detect provides language detection as a pluggable external
// collaborator, mirroring internal/device.GPUProbe and
// internal/runtime.Runtime: the orchestrator depends on a small Detector
// interface, not a specific detection library. The original service
// (src/services/language_detection.py) wraps the statistical langdetect
// n-gram library; whatlanggo is its Go equivalent (same n-gram/trigram
// statistical family, no training step, no cgo), so Detector's shipped
// implementation wraps it rather than reimplementing script/stopword
// heuristics by hand.
package detect

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"nmtd/pkg/types"
)

// Detector maps free text to a language code, or types.UndeterminedCode
// when it cannot decide.
type Detector interface {
	Detect(text string) string
	DetectBatch(texts []string) []string
}

// Statistical is a Detector backed by whatlanggo's n-gram frequency model.
// Short inputs and low-confidence results both fall back to
// types.UndeterminedCode, matching the original service's treatment of
// langdetect's LangDetectException as "und" rather than propagating an
// error.
type Statistical struct {
	MinChars      int
	MinConfidence float64
}

// NewStatistical builds a Statistical detector with defaults tuned for
// short chat-style inputs: langdetect-family detectors are unreliable
// under a handful of characters, so very short text is reported as
// undetermined rather than guessed.
func NewStatistical() Statistical {
	return Statistical{MinChars: 3, MinConfidence: 0.1}
}

// Detect returns the best-guess ISO 639-1 language code for text.
func (d Statistical) Detect(text string) string {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < d.MinChars {
		return types.UndeterminedCode
	}

	info := whatlanggo.Detect(trimmed)
	if info.Lang == whatlanggo.Lang(-1) || info.Confidence < d.MinConfidence {
		return types.UndeterminedCode
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return types.UndeterminedCode
	}
	return code
}

// DetectBatch runs Detect over each item, preserving order and length.
func (d Statistical) DetectBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = d.Detect(t)
	}
	return out
}
