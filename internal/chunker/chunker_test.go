package chunker

import (
	"strings"
	"testing"

	"github.com/litera-ai/litera/internal/align"
)

func TestEstimateTokens(t *testing.T) {
	if n := EstimateTokens(""); n != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", n)
	}
	if n := EstimateTokens("abcd"); n != 1 {
		t.Errorf("expected 1 token for 4 bytes, got %d", n)
	}
	if n := EstimateTokens("abcde"); n != 2 {
		t.Errorf("expected 2 tokens for 5 bytes, got %d", n)
	}
}

func TestBuildChunks_Empty(t *testing.T) {
	if chunks := BuildChunks(nil, 100, 10); chunks != nil {
		t.Errorf("expected nil for empty pairs, got %d chunks", len(chunks))
	}
}

func TestBuildChunks_SinglePairOverBudget(t *testing.T) {
	pairs := []align.Pair{{
		Source:     strings.Repeat("x", 400),
		Translated: strings.Repeat("y", 400),
	}}

	chunks := BuildChunks(pairs, 10, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Pairs) != 1 {
		t.Errorf("expected the oversized pair kept whole, got %d pairs", len(chunks[0].Pairs))
	}
}

func TestBuildChunks_SplitsAtBudget(t *testing.T) {
	// Each pair costs 10 tokens per side; budget 25 fits two pairs.
	var pairs []align.Pair
	for i := 0; i < 5; i++ {
		pairs = append(pairs, align.Pair{
			Source:      strings.Repeat("s", 40),
			Translated:  strings.Repeat("t", 40),
			SourceIndex: i,
			TargetIndex: i,
		})
	}

	chunks := BuildChunks(pairs, 25, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Pairs) != 2 || len(chunks[1].Pairs) != 2 || len(chunks[2].Pairs) != 1 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d",
			len(chunks[0].Pairs), len(chunks[1].Pairs), len(chunks[2].Pairs))
	}
}

func TestBuildChunks_EveryPairAppearsOnce(t *testing.T) {
	var pairs []align.Pair
	for i := 0; i < 13; i++ {
		pairs = append(pairs, align.Pair{
			Source:      strings.Repeat("a", 30),
			Translated:  strings.Repeat("b", 30),
			SourceIndex: i,
			TargetIndex: i,
		})
	}

	chunks := BuildChunks(pairs, 20, 0)
	var seen []int
	for _, c := range chunks {
		for _, p := range c.Pairs[c.OverlapPairCount:] {
			seen = append(seen, p.SourceIndex)
		}
	}
	if len(seen) != len(pairs) {
		t.Fatalf("expected %d non-overlap pairs across chunks, got %d", len(pairs), len(seen))
	}
	for i, idx := range seen {
		if idx != i {
			t.Errorf("position %d: expected pair %d, got %d", i, i, idx)
		}
	}
}

func TestBuildChunks_OverlapPrefix(t *testing.T) {
	var pairs []align.Pair
	for i := 0; i < 4; i++ {
		pairs = append(pairs, align.Pair{
			Source:      strings.Repeat("s", 40),
			Translated:  strings.Repeat("t", 40),
			SourceIndex: i,
			TargetIndex: i,
		})
	}

	// Budget fits two pairs; overlap budget fits one pair (10 tokens).
	chunks := BuildChunks(pairs, 25, 10)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].OverlapPairCount != 0 {
		t.Errorf("first chunk should have no overlap, got %d", chunks[0].OverlapPairCount)
	}
	second := chunks[1]
	if second.OverlapPairCount != 1 {
		t.Fatalf("expected 1 overlap pair, got %d", second.OverlapPairCount)
	}
	if second.Pairs[0].SourceIndex != 1 {
		t.Errorf("expected overlap to repeat pair 1, got pair %d", second.Pairs[0].SourceIndex)
	}
	if second.Pairs[1].SourceIndex != 2 {
		t.Errorf("expected fresh content to start at pair 2, got pair %d", second.Pairs[1].SourceIndex)
	}
}

func TestSplitSentences(t *testing.T) {
	sents := SplitSentences("First one. Second one! Third?")
	want := []string{"First one.", "Second one!", "Third?"}
	if len(sents) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(sents), sents)
	}
	for i := range want {
		if sents[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], sents[i])
		}
	}
}

func TestSplitSentences_NewlinesAndCJK(t *testing.T) {
	sents := SplitSentences("line one\nline two\n你好。再见。")
	if len(sents) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(sents), sents)
	}
	if sents[2] != "你好。" {
		t.Errorf("expected CJK full stop to end a sentence, got %q", sents[2])
	}
}

func TestSplitSentences_AbbreviationMidWord(t *testing.T) {
	// A period not followed by whitespace does not end a sentence.
	sents := SplitSentences("Version 1.5 shipped. Done.")
	if len(sents) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sents), sents)
	}
	if sents[0] != "Version 1.5 shipped." {
		t.Errorf("unexpected first sentence: %q", sents[0])
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	if sents := SplitSentences("   \n  "); len(sents) != 0 {
		t.Errorf("expected no sentences, got %v", sents)
	}
}

func TestSplit_ShortTextUnsplit(t *testing.T) {
	out := Split("short text", 100, 0)
	if len(out) != 1 || out[0] != "short text" {
		t.Errorf("expected text returned unsplit, got %v", out)
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 120)
	para2 := strings.Repeat("b", 120)
	out := Split(para1+"\n\n"+para2, 200, 80)

	if len(out) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(out))
	}
	if out[0] != para1 {
		t.Errorf("expected cut at the paragraph boundary, got piece of %d chars", len(out[0]))
	}
	if out[1] != para2 {
		t.Errorf("unexpected second piece of %d chars", len(out[1]))
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	s1 := strings.Repeat("a", 100) + "."
	s2 := strings.Repeat("b", 100) + "."
	out := Split(s1+" "+s2, 150, 80)

	if len(out) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(out))
	}
	if out[0] != s1 {
		t.Errorf("expected first piece to end at the sentence boundary, got %d chars", len(out[0]))
	}
}

func TestSplit_RespectsMaxChars(t *testing.T) {
	text := strings.Repeat("word ", 200)
	for _, piece := range Split(text, 100, 20) {
		if n := len([]rune(piece)); n > 100 {
			t.Errorf("piece of %d runes exceeds the limit", n)
		}
	}
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 250)
	out := Split(text, 100, 20)
	if len(out) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(out))
	}
	var total int
	for _, p := range out {
		total += len(p)
	}
	if total != 250 {
		t.Errorf("expected all characters preserved, got %d of 250", total)
	}
}

func TestSplit_MergesSmallTail(t *testing.T) {
	// 110 chars with a word boundary near the end would leave a tiny
	// tail; it must be folded into the previous piece instead.
	text := strings.Repeat("a", 95) + " " + strings.Repeat("b", 10)
	out := Split(text, 100, 80)
	if len(out) != 1 {
		t.Fatalf("expected the tail merged into 1 piece, got %d: %v", len(out), out)
	}
}
