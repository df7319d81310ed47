// Package pages converts a stage's full output into an ordered sequence
// of bounded-size pages with opaque cursors, so clients can consume
// partial results and resume.
package pages

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/litera-ai/litera/internal/provider"
)

const (
	// DefaultPageSize is used when Options.PageSize is zero.
	DefaultPageSize = 40
	// MaxPageSize caps any configured page size.
	MaxPageSize = 200
)

// Item is one finding located within the merged stage output.
type Item struct {
	ID    string `json:"id,omitempty"`
	Index int    `json:"index"`
	Text  string `json:"text"`
	// Offset is the byte offset of Text within the merged output, or -1
	// when the text could not be located.
	Offset int    `json:"offset"`
	Notes  string `json:"notes,omitempty"`
}

// Stats describes a page's position within the whole run.
type Stats struct {
	PageIndex  int `json:"page_index"`
	PageCount  int `json:"page_count"`
	ItemCount  int `json:"item_count"`
	TotalItems int `json:"total_items"`
}

// Metrics is the slice of token usage attributed to one page.
type Metrics struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Page is one bounded slice of a run's findings.
type Page struct {
	RunID      string  `json:"run_id"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Stage      string  `json:"stage"`
	Items      []Item  `json:"items"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
	Stats      Stats   `json:"stats"`
	Metrics    Metrics `json:"metrics"`
}

// Options adjust page construction.
type Options struct {
	// PageSize is the maximum items per page (default 40, capped at 200).
	PageSize int
	// PositionalCursors switches from content-hash cursors to legacy
	// (stage, pageIndex) cursors, which are sensitive to insertion.
	PositionalCursors bool
	// ChunkID, when set, is stamped on every page.
	ChunkID string
}

// Result is the full page sequence for one run and stage.
type Result struct {
	Pages     []Page
	ItemCount int
}

// Build locates each item in mergedText, slices the item list into
// pages, and distributes usage across pages proportionally to item
// count with the remainder on the last page, so the per-page sums equal
// the reported totals exactly.
func Build(runID, stage, mergedText string, items []Item, usage provider.Usage, opts Options) (*Result, error) {
	if runID == "" {
		return nil, fmt.Errorf("pages: run id is required")
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	located := locate(mergedText, items)

	pageCount := (len(located) + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	result := &Result{ItemCount: len(located)}
	for pi := 0; pi < pageCount; pi++ {
		lo := pi * pageSize
		hi := lo + pageSize
		if hi > len(located) {
			hi = len(located)
		}
		pageItems := located[lo:hi]

		page := Page{
			RunID:   runID,
			ChunkID: opts.ChunkID,
			Stage:   stage,
			Items:   append([]Item(nil), pageItems...),
			HasMore: pi < pageCount-1,
			Stats: Stats{
				PageIndex:  pi,
				PageCount:  pageCount,
				ItemCount:  len(pageItems),
				TotalItems: len(located),
			},
			Metrics: pageMetrics(usage, len(located), len(pageItems), pi == pageCount-1, result.Pages),
		}
		if page.HasMore {
			cursor := nextCursor(stage, pi, located[hi], opts.PositionalCursors)
			page.NextCursor = &cursor
		}
		result.Pages = append(result.Pages, page)
	}
	return result, nil
}

// locate resolves each item's offset by substring search against the
// merged output. The search cursor only moves forward so repeated text
// cannot re-match earlier offsets.
func locate(mergedText string, items []Item) []Item {
	out := make([]Item, len(items))
	cursor := 0
	for i, it := range items {
		out[i] = it
		out[i].Offset = -1
		if it.Text == "" || cursor > len(mergedText) {
			continue
		}
		if rel := strings.Index(mergedText[cursor:], it.Text); rel >= 0 {
			out[i].Offset = cursor + rel
			cursor = out[i].Offset + len(it.Text)
		}
	}
	return out
}

// nextCursor builds the opaque cursor for resuming at next, the first
// item of the following page. Content-hash cursors survive re-ordering
// and insertion; positional cursors are the legacy scheme.
func nextCursor(stage string, pageIndex int, next Item, positional bool) string {
	if positional {
		return fmt.Sprintf("p:%s:%d", stage, pageIndex+1)
	}
	sum := sha256.Sum256([]byte(next.Text))
	return "h:" + hex.EncodeToString(sum[:8])
}

// pageMetrics gives this page its proportional share of usage. The last
// page takes whatever remains so the sum is exact.
func pageMetrics(usage provider.Usage, totalItems, pageItems int, last bool, prior []Page) Metrics {
	if totalItems == 0 {
		if last {
			return Metrics{PromptTokens: usage.InputTokens, CompletionTokens: usage.OutputTokens}
		}
		return Metrics{}
	}
	if last {
		m := Metrics{PromptTokens: usage.InputTokens, CompletionTokens: usage.OutputTokens}
		for _, p := range prior {
			m.PromptTokens -= p.Metrics.PromptTokens
			m.CompletionTokens -= p.Metrics.CompletionTokens
		}
		return m
	}
	return Metrics{
		PromptTokens:     usage.InputTokens * pageItems / totalItems,
		CompletionTokens: usage.OutputTokens * pageItems / totalItems,
	}
}
