// Package chunker groups aligned sentence pairs into token-bounded
// windows with configurable overlap, and provides the sentence-splitting
// primitive shared with the aligner plus a character-level splitter used
// to recover from oversized model inputs.
package chunker

import (
	"strings"
	"unicode"

	"github.com/litera-ai/litera/internal/align"
)

const (
	// bytesPerToken is the estimation coefficient:
	// tokens ≈ ceil(utf8 bytes / bytesPerToken).
	bytesPerToken = 4

	// DefaultMinChunk is the minimum child length Split enforces so a
	// boundary search cannot emit a fragment too small to translate.
	DefaultMinChunk = 80
)

// EstimateTokens returns a cheap token-count estimate for text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// Chunk is a token-bounded window of consecutive aligned pairs. The
// first OverlapPairCount pairs repeat the tail of the previous chunk so
// downstream consumers can de-duplicate shared context.
type Chunk struct {
	Pairs            []align.Pair
	OverlapPairCount int
}

// pairTokens is the budget cost of one pair: the larger of its two
// sides, matching the per-chunk budget rule.
func pairTokens(p align.Pair) int {
	s, t := EstimateTokens(p.Source), EstimateTokens(p.Translated)
	if t > s {
		return t
	}
	return s
}

// BuildChunks greedily accumulates consecutive pairs into chunks while
// max(sourceTokens, targetTokens) stays within tokenBudget. Budgets are
// soft caps at pair granularity: a chunk always holds at least one pair
// even when that pair alone exceeds the budget, and pairs are never
// split. Each chunk after the first carries an overlap prefix taken
// from the previous chunk's pairs, bounded by overlapTokenBudget.
func BuildChunks(pairs []align.Pair, tokenBudget, overlapTokenBudget int) []Chunk {
	if len(pairs) == 0 {
		return nil
	}
	if tokenBudget <= 0 {
		tokenBudget = 1
	}

	// First pass: pure windows, no overlap.
	type window struct{ start, end int } // half-open
	var windows []window
	start := 0
	srcTok, tgtTok := 0, 0
	for i, p := range pairs {
		s, t := EstimateTokens(p.Source), EstimateTokens(p.Translated)
		over := srcTok+s > tokenBudget || tgtTok+t > tokenBudget
		if over && i > start {
			windows = append(windows, window{start, i})
			start = i
			srcTok, tgtTok = 0, 0
		}
		srcTok += s
		tgtTok += t
	}
	windows = append(windows, window{start, len(pairs)})

	// Second pass: prepend the overlap prefix from the previous window.
	chunks := make([]Chunk, 0, len(windows))
	for wi, w := range windows {
		overlapStart := w.start
		if wi > 0 && overlapTokenBudget > 0 {
			budget := overlapTokenBudget
			for overlapStart > windows[wi-1].start {
				cost := pairTokens(pairs[overlapStart-1])
				if cost > budget {
					break
				}
				budget -= cost
				overlapStart--
			}
		}
		chunks = append(chunks, Chunk{
			Pairs:            append([]align.Pair(nil), pairs[overlapStart:w.end]...),
			OverlapPairCount: w.start - overlapStart,
		})
	}
	return chunks
}

// SplitSentences splits text into sentences at terminal punctuation
// (including CJK full stops) followed by whitespace or end of text, and
// at newlines. Whitespace-only fragments are dropped.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

// Split divides text into pieces of at most maxChars runes, preferring
// (in order) paragraph boundaries, sentence-ending punctuation, and
// whitespace, with a hard cut as last resort. A tail shorter than
// minChunk is merged into its predecessor rather than emitted; pass
// minChunk ≤ 0 for DefaultMinChunk. A maxChars ≤ 0 returns the whole
// text unsplit.
//
// This is the oversize-input recovery splitter; it is deliberately
// separate from the token-budgeted BuildChunks, which never splits
// below pair granularity.
func Split(text string, maxChars, minChunk int) []string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []string{text}
	}
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}
	if minChunk > maxChars {
		minChunk = maxChars
	}

	var chunks []string
	remaining := text
	for len([]rune(remaining)) > maxChars {
		cut := findSplit(remaining, maxChars, minChunk)
		piece := strings.TrimSpace(remaining[:cut])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if remaining != "" {
		if len([]rune(remaining)) < minChunk && len(chunks) > 0 {
			chunks[len(chunks)-1] = chunks[len(chunks)-1] + " " + remaining
		} else {
			chunks = append(chunks, remaining)
		}
	}
	return chunks
}

// findSplit returns the byte index at which to cut, searching backwards
// within the first maxChars runes for the best boundary no earlier than
// minChunk runes in.
func findSplit(text string, maxChars, minChunk int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}
	candidate := runes[:maxChars]
	minByte := len(string(candidate[:minChunk]))

	// 1. Paragraph boundary.
	prefix := string(candidate)
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if idx := strings.LastIndex(prefix, sep); idx >= minByte {
			return idx + len(sep)
		}
	}

	// 2. Sentence-ending punctuation followed by a space.
	for i := len(candidate) - 2; i > 0; i-- {
		if isSentenceEnd(candidate[i]) && unicode.IsSpace(candidate[i+1]) {
			byteOffset := len(string(candidate[:i+1]))
			if byteOffset < minByte {
				break
			}
			return byteOffset
		}
	}

	// 3. Whitespace word boundary.
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			byteOffset := len(string(candidate[:i]))
			if byteOffset < minByte {
				break
			}
			return byteOffset
		}
	}

	// 4. Hard cut.
	return len(string(candidate))
}
