package preprocess

import (
	"strings"

	"nmtd/pkg/types"
)

// ChunkSentences greedily packs sentences, in order, into strings never
// crossing maxChars. A single sentence larger than the limit (already cut
// by SplitSentences) becomes its own chunk.
func ChunkSentences(sentences []string, maxChars int, joinWith string) []string {
	var chunks []string
	var cur []string
	curLen := 0

	for _, s := range sentences {
		addLen := len([]rune(s))
		if len(cur) > 0 {
			addLen += len([]rune(joinWith))
		}

		if len(cur) > 0 && curLen+addLen > maxChars {
			chunks = append(chunks, strings.Join(cur, joinWith))
			cur = []string{s}
			curLen = len([]rune(s))
		} else {
			cur = append(cur, s)
			if curLen > 0 {
				curLen += addLen
			} else {
				curLen = len([]rune(s))
			}
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, joinWith))
	}
	return chunks
}

// BuildChunks turns one input item's sentences into ordered Chunk values.
func BuildChunks(parentIndex int, sentences []string, maxChars int, joinWith string) []types.Chunk {
	packed := ChunkSentences(sentences, maxChars, joinWith)
	out := make([]types.Chunk, 0, len(packed))
	for _, p := range packed {
		out = append(out, types.Chunk{
			ParentIndex: parentIndex,
			Sentences:   []string{p},
			CharTotal:   len([]rune(p)),
		})
	}
	return out
}

// AutoChunkIfEnabled splits s on sentence boundaries (falling back to
// hard cuts at autoChunkMaxChars if no boundary is found) when s exceeds
// autoChunkMaxChars. Used for items where PerformSentenceSplitting is
// false but the text is too long to submit as a single unit.
func AutoChunkIfEnabled(s string, enabled bool, autoChunkMaxChars, maxSentenceChars int) (chunks []string, autoChunked bool) {
	if !enabled || len([]rune(s)) <= autoChunkMaxChars {
		return []string{s}, false
	}

	sentences := SplitSentences(s, maxSentenceChars)
	if len(sentences) <= 1 {
		// No sentence boundary found: hard-cut on rune boundaries.
		r := []rune(s)
		var out []string
		for i := 0; i < len(r); i += autoChunkMaxChars {
			end := i + autoChunkMaxChars
			if end > len(r) {
				end = len(r)
			}
			out = append(out, string(r[i:end]))
		}
		return out, true
	}

	return ChunkSentences(sentences, autoChunkMaxChars, " "), true
}
