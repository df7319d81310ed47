package guard

import (
	"strings"
	"testing"

	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/segment"
)

// testEvaluator skips the lingua detector; building it takes seconds
// and the language check has its own test below.
func testEvaluator() *Evaluator {
	return NewEvaluator(Options{SkipLanguageCheck: true})
}

func testSegment(source string) *segment.Segment {
	return &segment.Segment{ID: "seg-1", SourceText: source}
}

func TestEvaluate_CleanOutputPasses(t *testing.T) {
	e := testEvaluator()
	seg := testSegment("Джерельний текст, доволі довге речення.")

	res := e.Evaluate(seg, "A source text, quite a long sentence.", segment.StageConfig{TargetLang: "en"}, nil)
	if !res.Passed {
		t.Errorf("expected clean output to pass, got findings %v", res.Findings)
	}
	if len(res.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(res.Findings))
	}
}

func TestEvaluate_EmptyOutput(t *testing.T) {
	e := testEvaluator()
	res := e.Evaluate(testSegment("source"), "   ", segment.StageConfig{}, nil)
	if res.Passed {
		t.Fatal("expected empty output to fail")
	}
	if len(res.Findings) != 1 || res.Findings[0].Check != "non_empty" {
		t.Errorf("expected a single non_empty finding, got %v", res.Findings)
	}
	if res.Findings[0].Level != segment.LevelLiteral {
		t.Errorf("expected a literal-level finding, got %q", res.Findings[0].Level)
	}
}

func TestEvaluate_DriftBelowFloor(t *testing.T) {
	e := testEvaluator()
	seg := testSegment("Довге джерельне речення для перевірки.")
	seg.Baseline = "Цілком інший текст кирилицею без збігів."

	res := e.Evaluate(seg, "Entirely unrelated Latin words, zero overlap.", segment.StageConfig{}, nil)
	if res.Passed {
		t.Fatal("expected drifted output to fail")
	}
	found := false
	for _, f := range res.Findings {
		if f.Check == "drift" {
			found = true
			if f.Level != segment.LevelStyle {
				t.Errorf("expected a style-level drift finding, got %q", f.Level)
			}
		}
	}
	if !found {
		t.Errorf("expected a drift finding, got %v", res.Findings)
	}
}

func TestEvaluate_DriftSkippedWithoutBaseline(t *testing.T) {
	e := testEvaluator()
	seg := testSegment("Джерельний текст однакової довжини приблизно.")

	res := e.Evaluate(seg, "Wildly different text of a similar enough length.", segment.StageConfig{}, nil)
	for _, f := range res.Findings {
		if f.Check == "drift" {
			t.Errorf("expected no drift check without a baseline, got %v", f)
		}
	}
}

func TestEvaluate_LengthRatio(t *testing.T) {
	e := testEvaluator()
	seg := testSegment("short")

	res := e.Evaluate(seg, strings.Repeat("long output ", 10), segment.StageConfig{}, nil)
	if res.Passed {
		t.Fatal("expected an inflated translation to fail")
	}
	if res.Findings[0].Check != "length_ratio" {
		t.Errorf("expected a length_ratio finding, got %v", res.Findings)
	}

	res = e.Evaluate(testSegment(strings.Repeat("довге джерело ", 10)), "tiny", segment.StageConfig{}, nil)
	if res.Passed {
		t.Error("expected a collapsed translation to fail")
	}
}

func TestEvaluate_TermMap(t *testing.T) {
	e := testEvaluator()
	seg := testSegment("星霜 означає плин років у цьому романі.")
	mem := &memory.ProjectMemory{TermMap: map[string]string{
		"星霜":   "starfrost years",
		"відсутній": "never checked",
	}}

	res := e.Evaluate(seg, "The passage speaks of the passing of seasons in this novel.", segment.StageConfig{}, mem)
	if res.Passed {
		t.Fatal("expected a missed term rendering to fail")
	}
	if len(res.Findings) != 1 || res.Findings[0].Check != "term_map" {
		t.Fatalf("expected a single term_map finding, got %v", res.Findings)
	}

	res = e.Evaluate(seg, "The starfrost years pass through the seasons spoken of in this novel.", segment.StageConfig{}, mem)
	for _, f := range res.Findings {
		if f.Check == "term_map" {
			t.Errorf("expected the rendered term accepted, got %v", f)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("same", "same"); s != 1.0 {
		t.Errorf("expected identical strings to score 1, got %v", s)
	}
	if s := Similarity("", ""); s != 1.0 {
		t.Errorf("expected two empty strings to score 1, got %v", s)
	}
	if s := Similarity("abcd", "wxyz"); s != 0.0 {
		t.Errorf("expected disjoint strings to score 0, got %v", s)
	}
	if s := Similarity("kitten", "sitting"); s < 0.5 || s > 0.6 {
		t.Errorf("expected kitten/sitting around 0.57, got %v", s)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"привіт", "привіт", 0},
		{"привіт", "привет", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}
