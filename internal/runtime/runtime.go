// Package runtime defines the inference runtime collaborator contract
// (spec.md §6.2) the Pipeline Cache loads handles from, mirroring the
// teacher's small Adapter/InferSession interface shape
// (internal/manager/adapter_iface.go, internal/llm/adapter.go) generalized
// from a streaming-token LLM contract to a batch sequence-to-sequence
// translate call. Building a real Marian/mBART/M2M100 decoder binding is
// out of scope (spec.md §1 Non-goals: "implementing the transformer
// inference itself"); Stub below is a deterministic placeholder runtime
// that lets the rest of the system (cache, orchestrator, queue) be built
// and tested against a real interface today.
package runtime

import (
	"context"
	"fmt"
	"strings"
)

// LoadArgs are passed to Load when instantiating a pipeline.
type LoadArgs struct {
	ModelID string
	Device  string
	Extra   map[string]string
}

// TranslateOptions configures a single Translate call.
type TranslateOptions struct {
	BatchSize int
	BeamSize  int
	MaxLength int // 0 means unset
	SrcCode   string
	TgtCode   string
}

// Handle is an opaque pipeline handle returned by Load and consumed by
// Translate/Release. Concrete runtimes embed whatever state they need.
type Handle interface{}

// Runtime is the inference collaborator contract: load a model, run
// batched translation, release device memory. No other behavior is
// assumed of it (spec.md §6.2).
type Runtime interface {
	Load(ctx context.Context, args LoadArgs) (Handle, error)
	Translate(ctx context.Context, h Handle, texts []string, opt TranslateOptions) ([]string, error)
	Release(h Handle) error
}

// Stub is a deterministic Runtime with no real model weights: Translate
// returns each input prefixed with the target code, which is enough for
// the orchestrator, cache, and HTTP-edge tests to exercise the full
// pipeline shape without a real decoder.
type Stub struct{}

type stubHandle struct {
	modelID string
	device  string
}

// Load "loads" a pipeline by recording the model id and device; no
// weights are actually read.
func (Stub) Load(ctx context.Context, args LoadArgs) (Handle, error) {
	if args.ModelID == "" {
		return nil, fmt.Errorf("runtime: empty model id")
	}
	return &stubHandle{modelID: args.ModelID, device: args.Device}, nil
}

// Translate returns each input transformed deterministically: trimmed of
// surrounding whitespace and tagged with the target code, e.g. "hello" ->
// "[de] hello". Order
// and length are preserved per spec.md §6.2's contract.
func (Stub) Translate(ctx context.Context, h Handle, texts []string, opt TranslateOptions) ([]string, error) {
	if _, ok := h.(*stubHandle); !ok {
		return nil, fmt.Errorf("runtime: handle not produced by Stub.Load")
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		tag := opt.TgtCode
		if tag == "" {
			tag = "und"
		}
		out[i] = fmt.Sprintf("[%s] %s", tag, strings.TrimSpace(t))
	}
	return out, nil
}

// Release is a no-op for Stub: there is no device memory to free.
func (Stub) Release(h Handle) error {
	return nil
}
