// Package retry wraps a single model call with bounded retries and
// output-token budget growth.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/litera-ai/litera/internal/provider"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxAttempts     = 3
	DefaultMinOutputTokens = 200
)

// Budget growth factors. Truncation grows faster than parse failures
// because a parse failure is more likely a formatting problem than a
// lack of room.
const (
	truncationGrowth = 1.5
	parseGrowth      = 1.3
)

// Attempt describes one call the executor is about to make.
type Attempt struct {
	// Number is 1-based.
	Number int
	// MaxOutputTokens is the budget for this call, already clamped to
	// the cap.
	MaxOutputTokens int
	// Strict is set after a parse failure so the request builder can
	// tighten its formatting instruction.
	Strict bool
}

// BuildRequest executes one model call under the given attempt
// parameters.
type BuildRequest func(ctx context.Context, a Attempt) (*provider.Response, error)

// Options bound the retry loop.
type Options struct {
	InitialMaxOutputTokens int
	MaxOutputTokensCap     int
	MaxAttempts            int
	MinOutputTokens        int
}

// Result reports the successful call plus how the loop got there.
type Result struct {
	Response        *provider.Response
	Attempts        int
	MaxOutputTokens int
	// Truncated records whether any prior attempt hit the truncation
	// condition before the loop succeeded.
	Truncated bool
}

// Do runs build until it succeeds or the retry budget is exhausted.
//
//   - A permanent validation error aborts immediately.
//   - A truncation error grows the token budget ×1.5 (capped) and
//     retries.
//   - A parse error grows ×1.3 and retries with Strict set.
//   - Any other error propagates immediately.
//
// Exhausting MaxAttempts returns the last error.
func Do(ctx context.Context, build BuildRequest, opts Options) (*Result, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	minTokens := opts.MinOutputTokens
	if minTokens <= 0 {
		minTokens = DefaultMinOutputTokens
	}
	capTokens := opts.MaxOutputTokensCap
	if capTokens <= 0 {
		capTokens = math.MaxInt32
	}

	maxTokens := opts.InitialMaxOutputTokens
	if maxTokens < minTokens {
		maxTokens = minTokens
	}
	if maxTokens > capTokens {
		maxTokens = capTokens
	}

	truncated := false
	strict := false
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := build(ctx, Attempt{
			Number:          attempt,
			MaxOutputTokens: maxTokens,
			Strict:          strict,
		})
		if err == nil {
			return &Result{
				Response:        resp,
				Attempts:        attempt,
				MaxOutputTokens: maxTokens,
				Truncated:       truncated,
			}, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, provider.ErrPermanent):
			return nil, err
		case errors.Is(err, provider.ErrTruncated):
			truncated = true
			maxTokens = grow(maxTokens, truncationGrowth, capTokens)
		case errors.Is(err, provider.ErrParse):
			strict = true
			maxTokens = grow(maxTokens, parseGrowth, capTokens)
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", maxAttempts, lastErr)
}

func grow(current int, factor float64, capTokens int) int {
	grown := int(math.Ceil(float64(current) * factor))
	if grown > capTokens {
		return capTokens
	}
	return grown
}
