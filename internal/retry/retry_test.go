package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/litera-ai/litera/internal/provider"
)

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		calls++
		if a.Number != 1 {
			t.Errorf("expected attempt 1, got %d", a.Number)
		}
		if a.Strict {
			t.Error("first attempt should not be strict")
		}
		return &provider.Response{Text: "ok"}, nil
	}

	res, err := Do(context.Background(), build, Options{InitialMaxOutputTokens: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if res.Attempts != 1 || res.Truncated {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.MaxOutputTokens != 500 {
		t.Errorf("expected budget 500, got %d", res.MaxOutputTokens)
	}
}

func TestDo_TruncationGrowsBudget(t *testing.T) {
	var budgets []int
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		budgets = append(budgets, a.MaxOutputTokens)
		if a.Number < 3 {
			return nil, fmt.Errorf("cut short: %w", provider.ErrTruncated)
		}
		return &provider.Response{Text: "done"}, nil
	}

	res, err := Do(context.Background(), build, Options{
		InitialMaxOutputTokens: 1000,
		MaxOutputTokensCap:     10000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1000, 1500, 2250}
	for i, b := range budgets {
		if b != want[i] {
			t.Errorf("attempt %d: expected budget %d, got %d", i+1, want[i], b)
		}
	}
	if !res.Truncated {
		t.Error("expected Truncated recorded")
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
}

func TestDo_BudgetNeverExceedsCap(t *testing.T) {
	var budgets []int
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		budgets = append(budgets, a.MaxOutputTokens)
		return nil, provider.ErrTruncated
	}

	_, err := Do(context.Background(), build, Options{
		InitialMaxOutputTokens: 1000,
		MaxOutputTokensCap:     1200,
		MaxAttempts:            4,
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !errors.Is(err, provider.ErrTruncated) {
		t.Errorf("expected the last error wrapped, got %v", err)
	}
	if len(budgets) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(budgets))
	}
	for i, b := range budgets {
		if b > 1200 {
			t.Errorf("attempt %d: budget %d exceeds the cap", i+1, b)
		}
	}
	if budgets[1] != 1200 {
		t.Errorf("expected the second attempt clamped to 1200, got %d", budgets[1])
	}
}

func TestDo_ParseSetsStrict(t *testing.T) {
	var attempts []Attempt
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		attempts = append(attempts, a)
		if a.Number == 1 {
			return nil, fmt.Errorf("bad json: %w", provider.ErrParse)
		}
		return &provider.Response{Text: "ok"}, nil
	}

	res, err := Do(context.Background(), build, Options{InitialMaxOutputTokens: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts[0].Strict {
		t.Error("first attempt should not be strict")
	}
	if !attempts[1].Strict {
		t.Error("retry after a parse failure should be strict")
	}
	if attempts[1].MaxOutputTokens != 1300 {
		t.Errorf("expected budget 1300 after parse growth, got %d", attempts[1].MaxOutputTokens)
	}
	if res.Truncated {
		t.Error("parse failures should not mark the result truncated")
	}
}

func TestDo_PermanentAbortsImmediately(t *testing.T) {
	calls := 0
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		calls++
		return nil, fmt.Errorf("rejected: %w", provider.ErrPermanent)
	}

	_, err := Do(context.Background(), build, Options{})
	if !errors.Is(err, provider.ErrPermanent) {
		t.Fatalf("expected a permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries, got %d calls", calls)
	}
}

func TestDo_UnknownErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		calls++
		return nil, boom
	}

	_, err := Do(context.Background(), build, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries for unknown errors, got %d calls", calls)
	}
}

func TestDo_MinOutputTokensFloor(t *testing.T) {
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		if a.MaxOutputTokens != DefaultMinOutputTokens {
			t.Errorf("expected budget raised to %d, got %d", DefaultMinOutputTokens, a.MaxOutputTokens)
		}
		return &provider.Response{}, nil
	}
	if _, err := Do(context.Background(), build, Options{InitialMaxOutputTokens: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_DefaultMaxAttempts(t *testing.T) {
	calls := 0
	build := func(ctx context.Context, a Attempt) (*provider.Response, error) {
		calls++
		return nil, provider.ErrTruncated
	}

	_, err := Do(context.Background(), build, Options{})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, calls)
	}
}
