// Package proofread is the bilingual quality pipeline: it aligns
// source and target sentences, packs the pairs into token-budgeted
// chunks, asks the model for findings per chunk under a shared
// submission limiter, and streams the results as pages.
package proofread

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/litera-ai/litera/internal/align"
	"github.com/litera-ai/litera/internal/chunker"
	"github.com/litera-ai/litera/internal/events"
	"github.com/litera-ai/litera/internal/pages"
	"github.com/litera-ai/litera/internal/postprocess"
	"github.com/litera-ai/litera/internal/provider"
	"github.com/litera-ai/litera/internal/retry"
)

// StageName identifies this pipeline in pages and events.
const StageName = "proofread"

// Finding is one issue the model reports for an aligned pair.
type Finding struct {
	PairIndex     int    `json:"pair_index"`
	Category      string `json:"category"`
	Severity      string `json:"severity"`
	TargetExcerpt string `json:"target_excerpt"`
	Suggestion    string `json:"suggestion,omitempty"`
	Note          string `json:"note,omitempty"`
}

// Config tunes the analyzer.
type Config struct {
	Model              string
	TokenBudget        int
	OverlapTokenBudget int
	MaxOutputTokens    int
	MaxOutputTokensCap int
	PageSize           int
	// MaxPromptChars bounds one chunk's prompt text; larger chunks are
	// recovered by character-level splitting.
	MaxPromptChars int
}

// Analyzer runs the proofreading pipeline. Embedder may be nil, in
// which case alignment falls back to positional pairing.
type Analyzer struct {
	client   provider.Client
	embedder provider.Embedder
	limiter  *Limiter
	producer *events.Producer
	cfg      Config
	log      *zap.SugaredLogger
}

func NewAnalyzer(client provider.Client, embedder provider.Embedder, limiter *Limiter, producer *events.Producer, cfg Config) *Analyzer {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 1200
	}
	if cfg.OverlapTokenBudget <= 0 {
		cfg.OverlapTokenBudget = 150
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 12000
	}
	return &Analyzer{
		client:   client,
		embedder: embedder,
		limiter:  limiter,
		producer: producer,
		cfg:      cfg,
		log:      zap.S().Named("proofread"),
	}
}

// Run analyzes one document pair and returns the full page sequence.
// Pages and progress are also streamed through the event producer as
// chunks complete.
func (a *Analyzer) Run(ctx context.Context, runID, sourceText, targetText string) (*pages.Result, error) {
	srcSents := chunker.SplitSentences(sourceText)
	tgtSents := chunker.SplitSentences(targetText)

	pairs := a.alignSentences(ctx, srcSents, tgtSents)
	chunks := chunker.BuildChunks(pairs, a.cfg.TokenBudget, a.cfg.OverlapTokenBudget)

	if a.producer != nil {
		a.producer.Stage(runID, StageName)
	}

	findingsByChunk := make([][]Finding, len(chunks))
	var usageMu sync.Mutex
	var usage provider.Usage
	var done int

	g, gctx := errgroup.WithContext(ctx)
	for ci, chunk := range chunks {
		g.Go(func() error {
			fs, u, err := a.analyzeChunk(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", ci, err)
			}
			findingsByChunk[ci] = fs
			usageMu.Lock()
			usage.InputTokens += u.InputTokens
			usage.OutputTokens += u.OutputTokens
			done++
			completed := done
			usageMu.Unlock()
			if a.producer != nil {
				a.producer.ProgressEvent(runID, completed, len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if a.producer != nil {
			a.producer.Error(runID, err.Error())
			a.producer.End(runID)
		}
		return nil, err
	}

	var items []pages.Item
	for _, fs := range findingsByChunk {
		for _, f := range fs {
			items = append(items, pages.Item{
				Index: len(items),
				Text:  f.TargetExcerpt,
				Notes: findingNote(f),
			})
		}
	}

	result, err := pages.Build(runID, StageName, targetText, items, usage, pages.Options{
		PageSize: a.cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}

	if a.producer != nil {
		for _, page := range result.Pages {
			a.producer.Items(page)
		}
		a.producer.Complete(runID)
		a.producer.End(runID)
	}
	return result, nil
}

// alignSentences prefers similarity-DP alignment and falls back to
// positional pairing when no embedder is configured or embedding fails.
func (a *Analyzer) alignSentences(ctx context.Context, srcSents, tgtSents []string) []align.Pair {
	if a.embedder == nil || len(srcSents) == 0 || len(tgtSents) == 0 {
		return align.Greedy(srcSents, tgtSents)
	}

	srcVecs, err := a.embedTexts(ctx, srcSents)
	if err != nil {
		a.log.Warnw("source embedding failed, falling back to positional alignment", "error", err)
		return align.Greedy(srcSents, tgtSents)
	}
	tgtVecs, err := a.embedTexts(ctx, tgtSents)
	if err != nil {
		a.log.Warnw("target embedding failed, falling back to positional alignment", "error", err)
		return align.Greedy(srcSents, tgtSents)
	}

	pairs, err := align.Similarity(srcSents, tgtSents, srcVecs, tgtVecs, align.DefaultGap)
	if err != nil {
		a.log.Warnw("similarity alignment failed, falling back to positional alignment", "error", err)
		return align.Greedy(srcSents, tgtSents)
	}
	return pairs
}

// embedTexts holds a limiter slot for the embedding call; embeddings
// count against the same provider rate limit as completions.
func (a *Analyzer) embedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if err := a.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer a.limiter.Release()
	return a.embedder.Embed(ctx, texts)
}

// analyzeChunk asks the model for findings over one chunk. A prompt
// exceeding MaxPromptChars is split at paragraph/sentence boundaries
// and analyzed part by part.
func (a *Analyzer) analyzeChunk(ctx context.Context, chunk chunker.Chunk) ([]Finding, provider.Usage, error) {
	prompt := chunkPrompt(chunk)

	var all []Finding
	var usage provider.Usage
	for _, part := range chunker.Split(prompt, a.cfg.MaxPromptChars, 0) {
		fs, u, err := a.callModel(ctx, part)
		if err != nil {
			return nil, usage, err
		}
		all = append(all, fs...)
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens
	}
	return all, usage, nil
}

const systemPrompt = `You are a bilingual literary proofreader. You receive numbered source/target sentence pairs. Report every mistranslation, omission, addition or awkward rendering as a finding. Respond with a JSON object: {"findings": [{"pair_index": <n>, "category": "...", "severity": "minor|major", "target_excerpt": "<exact text from the translation>", "suggestion": "...", "note": "..."}]}. target_excerpt must quote the translation verbatim. Return {"findings": []} when the translation is clean.`

const strictSuffix = ` Output ONLY the JSON object, nothing else.`

func (a *Analyzer) callModel(ctx context.Context, userPrompt string) ([]Finding, provider.Usage, error) {
	var decoded []Finding

	build := func(ctx context.Context, at retry.Attempt) (*provider.Response, error) {
		if err := a.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer a.limiter.Release()

		system := systemPrompt
		if at.Strict {
			system += strictSuffix
		}
		resp, err := a.client.Complete(ctx, provider.Request{
			Model:           a.cfg.Model,
			SystemPrompt:    system,
			UserPrompt:      userPrompt,
			MaxOutputTokens: at.MaxOutputTokens,
			ResponseFormat:  "json_object",
		})
		if err != nil {
			return nil, err
		}
		fs, err := decodeFindings(postprocess.StripCodeFence(resp.Text))
		if err != nil {
			return nil, err
		}
		decoded = fs
		return resp, nil
	}

	res, err := retry.Do(ctx, build, retry.Options{
		InitialMaxOutputTokens: a.cfg.MaxOutputTokens,
		MaxOutputTokensCap:     a.cfg.MaxOutputTokensCap,
	})
	if err != nil {
		return nil, provider.Usage{}, err
	}
	return decoded, res.Response.Usage, nil
}

// chunkPrompt renders a chunk's pairs. Overlap pairs appear first as
// unnumbered context so the model does not report them twice.
func chunkPrompt(chunk chunker.Chunk) string {
	var sb strings.Builder
	if chunk.OverlapPairCount > 0 {
		sb.WriteString("CONTEXT (already reviewed, do not report):\n")
		for _, p := range chunk.Pairs[:chunk.OverlapPairCount] {
			fmt.Fprintf(&sb, "  S: %s\n  T: %s\n", p.Source, p.Translated)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("PAIRS:\n")
	for i, p := range chunk.Pairs[chunk.OverlapPairCount:] {
		fmt.Fprintf(&sb, "[%d]\n  S: %s\n  T: %s\n", i, p.Source, p.Translated)
	}
	return sb.String()
}

// decodeFindings decodes strictly: an object with a findings array, or
// the single fallback of a top-level findings array. Anything else is a
// parse error.
func decodeFindings(raw string) ([]Finding, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty model output: %w", provider.ErrParse)
	}

	switch raw[0] {
	case '{':
		var out struct {
			Findings []Finding `json:"findings"`
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("findings do not match schema: %v: %w", err, provider.ErrParse)
		}
		return out.Findings, nil
	case '[':
		var out []Finding
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("findings array does not match schema: %v: %w", err, provider.ErrParse)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("model output is not JSON: %w", provider.ErrParse)
	}
}

func findingNote(f Finding) string {
	var parts []string
	if f.Category != "" {
		parts = append(parts, f.Category)
	}
	if f.Severity != "" {
		parts = append(parts, f.Severity)
	}
	if f.Suggestion != "" {
		parts = append(parts, "suggest: "+f.Suggestion)
	}
	if f.Note != "" {
		parts = append(parts, f.Note)
	}
	return strings.Join(parts, "; ")
}
