// Package discovery implements Model Discovery (C8): per-family
// enumeration of available (src,tgt) pairs, cached with a TTL for opus-mt
// (fetched from the Hugging Face model registry) and computed statically
// for mbart50/m2m100 (cartesian square of their known language sets).
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"nmtd/internal/family"
	"nmtd/pkg/types"

	"github.com/rs/zerolog"
)

const hfAPIBase = "https://huggingface.co/api/models"

// httpClient is a pooled, package-level client, mirroring the pooled
// *http.Client idiom the retrieved pack uses for outbound registry calls
// (anilpdv-video-dubber's translator.go; dasmlab-iskoces's libretranslate
// client) in place of Python's httpx.AsyncClient.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

type cacheEntry struct {
	pairs     []types.Pair
	updatedAt time.Time
}

// Service enumerates available pairs per family, caching the opus-mt
// registry fetch for TTL and computing the static families on demand.
type Service struct {
	mu     sync.RWMutex
	cache  map[types.Family]cacheEntry
	ttl    time.Duration
	log    zerolog.Logger
}

// New builds a discovery Service with the given cache TTL.
func New(ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		cache: make(map[types.Family]cacheEntry),
		ttl:   ttl,
		log:   log.With().Str("component", "discovery").Logger(),
	}
}

// AvailablePairs returns the known pairs for a family, serving a cached
// value within TTL (opus-mt) or computing deterministically (mbart50,
// m2m100). On a discovery failure for opus-mt it serves the last known
// value if present (spec.md §7: "DiscoveryFail ... serves stale TTL
// value"), or an empty set if nothing has ever been fetched.
func (s *Service) AvailablePairs(ctx context.Context, f types.Family) []types.Pair {
	switch f {
	case types.FamilyMBart50, types.FamilyM2M100:
		return staticSquare(family.Known(f))
	case types.FamilyOpusMT:
		return s.opusMTPairs(ctx, false)
	default:
		return nil
	}
}

// AllPairs discovers pairs for every known family.
func (s *Service) AllPairs(ctx context.Context) map[types.Family][]types.Pair {
	out := make(map[types.Family][]types.Pair, 3)
	for _, f := range []types.Family{types.FamilyOpusMT, types.FamilyMBart50, types.FamilyM2M100} {
		out[f] = s.AvailablePairs(ctx, f)
	}
	return out
}

// ClearCache drops all cached discovery results, forcing the next
// opus-mt lookup to re-fetch.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[types.Family]cacheEntry)
	s.log.Info().Msg("discovery cache cleared")
}

func (s *Service) opusMTPairs(ctx context.Context, forceRefresh bool) []types.Pair {
	s.mu.RLock()
	entry, ok := s.cache[types.FamilyOpusMT]
	s.mu.RUnlock()

	if ok && !forceRefresh && time.Since(entry.updatedAt) < s.ttl {
		return entry.pairs
	}

	pairs, err := s.fetchOpusMTModels(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("opus-mt discovery fetch failed, serving stale value")
		if ok {
			return entry.pairs
		}
		return nil
	}

	s.mu.Lock()
	s.cache[types.FamilyOpusMT] = cacheEntry{pairs: pairs, updatedAt: time.Now()}
	s.mu.Unlock()

	s.log.Info().Int("pairs", len(pairs)).Msg("discovered opus-mt language pairs")
	return pairs
}

type hfModel struct {
	ModelID string `json:"modelId"`
}

func (s *Service) fetchOpusMTModels(ctx context.Context) ([]types.Pair, error) {
	url := fmt.Sprintf("%s?author=Helsinki-NLP&search=opus-mt&limit=1000&full=false", hfAPIBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface registry returned status %d", resp.StatusCode)
	}

	var models []hfModel
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, err
	}

	const prefix = "Helsinki-NLP/opus-mt-"
	seen := make(map[types.Pair]bool)
	var pairs []types.Pair
	for _, m := range models {
		if len(m.ModelID) <= len(prefix) || m.ModelID[:len(prefix)] != prefix {
			continue
		}
		rest := m.ModelID[len(prefix):]
		src, tgt, ok := splitPairPart(rest)
		if !ok {
			continue
		}
		p := types.Pair{Src: src, Tgt: tgt}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Src != pairs[j].Src {
			return pairs[i].Src < pairs[j].Src
		}
		return pairs[i].Tgt < pairs[j].Tgt
	})
	return pairs, nil
}

// splitPairPart parses "{src}-{tgt}" from an opus-mt model suffix, skipping
// group codes like ROMANCE/CELTIC (all-uppercase) the way the original
// discovery service does.
func splitPairPart(rest string) (src, tgt string, ok bool) {
	dash := -1
	for i, ch := range rest {
		if ch == '-' {
			if dash != -1 {
				return "", "", false // more than one dash: multi-part code, skip
			}
			dash = i
		}
	}
	if dash <= 0 || dash >= len(rest)-1 {
		return "", "", false
	}
	src, tgt = rest[:dash], rest[dash+1:]
	if isAllUpper(src) || isAllUpper(tgt) {
		return "", "", false
	}
	return src, tgt, true
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, ch := range s {
		if ch >= 'a' && ch <= 'z' {
			return false
		}
		if ch >= 'A' && ch <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func staticSquare(langs []string) []types.Pair {
	out := make([]types.Pair, 0, len(langs)*(len(langs)-1))
	for _, src := range langs {
		for _, tgt := range langs {
			if src != tgt {
				out = append(out, types.Pair{Src: src, Tgt: tgt})
			}
		}
	}
	return out
}
