// Package guard evaluates a terminal stage's output per segment and
// flags segments that need review. Checks: target language, drift
// against the machine baseline, length ratio and term-map adherence.
package guard

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/segment"
)

// minDetectableRunes is the minimum rune count for language detection;
// shorter texts are unreliable and pass without the check.
const minDetectableRunes = 20

// Options tune the evaluator. Zero values take the defaults below.
type Options struct {
	// DriftFloor is the minimum similarity between the output and the
	// machine baseline. Below it the translation has likely departed
	// from the source meaning. Default 0.2; the floor is deliberately
	// low because the style pass is expected to diverge in wording.
	DriftFloor float64
	// LengthRatioMax bounds len(target)/len(source) on both sides.
	// Default 3.0.
	LengthRatioMax float64
	// SkipLanguageCheck disables the lingua-based detection, for tests
	// and for language pairs the detector does not cover.
	SkipLanguageCheck bool
}

// Evaluator runs guard checks. The language detector is expensive to
// build; construct one Evaluator and reuse it.
type Evaluator struct {
	detector   lingua.LanguageDetector
	driftFloor float64
	ratioMax   float64
}

// NewEvaluator builds an evaluator, including the all-languages lingua
// detector unless opts.SkipLanguageCheck is set.
func NewEvaluator(opts Options) *Evaluator {
	e := &Evaluator{
		driftFloor: opts.DriftFloor,
		ratioMax:   opts.LengthRatioMax,
	}
	if e.driftFloor <= 0 {
		e.driftFloor = 0.2
	}
	if e.ratioMax <= 0 {
		e.ratioMax = 3.0
	}
	if !opts.SkipLanguageCheck {
		e.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	}
	return e
}

// Evaluate runs all checks on one segment's terminal output. The result
// always carries the full finding list; Passed is true only when the
// list is empty.
func (e *Evaluator) Evaluate(seg *segment.Segment, text string, cfg segment.StageConfig, mem *memory.ProjectMemory) segment.GuardResult {
	var findings []segment.GuardFinding

	text = strings.TrimSpace(text)
	if text == "" {
		findings = append(findings, segment.GuardFinding{
			Check:   "non_empty",
			Level:   segment.LevelLiteral,
			Message: "translation is empty",
		})
		return segment.GuardResult{Passed: false, Findings: findings}
	}

	if f := e.checkLanguage(text, cfg.TargetLang); f != nil {
		findings = append(findings, *f)
	}
	if f := e.checkDrift(seg, text); f != nil {
		findings = append(findings, *f)
	}
	if f := e.checkLengthRatio(seg, text); f != nil {
		findings = append(findings, *f)
	}
	findings = append(findings, checkTerms(seg, text, mem)...)

	return segment.GuardResult{Passed: len(findings) == 0, Findings: findings}
}

func (e *Evaluator) checkLanguage(text, targetLang string) *segment.GuardFinding {
	if e.detector == nil || targetLang == "" {
		return nil
	}
	if len([]rune(text)) < minDetectableRunes {
		return nil
	}
	lang, ok := e.detector.DetectLanguageOf(text)
	if !ok {
		// Ambiguous language, cannot validate.
		return nil
	}
	detected := lang.IsoCode639_1().String()
	if strings.EqualFold(detected, targetLang) {
		return nil
	}
	return &segment.GuardFinding{
		Check:   "language",
		Level:   segment.LevelLiteral,
		Message: fmt.Sprintf("expected %s but detected %s", targetLang, detected),
	}
}

func (e *Evaluator) checkDrift(seg *segment.Segment, text string) *segment.GuardFinding {
	if seg.Baseline == "" {
		return nil
	}
	score := Similarity(text, seg.Baseline)
	if score >= e.driftFloor {
		return nil
	}
	return &segment.GuardFinding{
		Check:   "drift",
		Level:   segment.LevelStyle,
		Message: fmt.Sprintf("similarity to baseline %.2f below floor %.2f", score, e.driftFloor),
	}
}

func (e *Evaluator) checkLengthRatio(seg *segment.Segment, text string) *segment.GuardFinding {
	srcLen := len([]rune(strings.TrimSpace(seg.SourceText)))
	if srcLen == 0 {
		return nil
	}
	ratio := float64(len([]rune(text))) / float64(srcLen)
	if ratio <= e.ratioMax && ratio >= 1/e.ratioMax {
		return nil
	}
	return &segment.GuardFinding{
		Check:   "length_ratio",
		Level:   segment.LevelLiteral,
		Message: fmt.Sprintf("target/source length ratio %.2f outside [%.2f, %.2f]", ratio, 1/e.ratioMax, e.ratioMax),
	}
}

// checkTerms verifies that every term-map entry whose source term occurs
// in the segment's source text is rendered with the mapped target term.
func checkTerms(seg *segment.Segment, text string, mem *memory.ProjectMemory) []segment.GuardFinding {
	if mem == nil || len(mem.TermMap) == 0 {
		return nil
	}
	var findings []segment.GuardFinding
	for src, tgt := range mem.TermMap {
		if !strings.Contains(seg.SourceText, src) {
			continue
		}
		if strings.Contains(text, tgt) {
			continue
		}
		findings = append(findings, segment.GuardFinding{
			Check:   "term_map",
			Level:   segment.LevelStyle,
			Message: fmt.Sprintf("term %q not rendered as %q", src, tgt),
		})
	}
	return findings
}

// Similarity returns a score in [0, 1] from the rune-aware edit
// distance between a and b (1 = identical).
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein is the space-optimized two-row DP edit distance.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				min := prev[j]
				if prev[j-1] < min {
					min = prev[j-1]
				}
				if curr[j-1] < min {
					min = curr[j-1]
				}
				curr[j] = min + 1
			}
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
