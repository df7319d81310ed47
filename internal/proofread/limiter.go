package proofread

import "context"

// Limiter is a fixed-size submission gate shared by every model call
// the proofreading subsystem makes, keeping total in-flight requests
// within the provider's rate limits.
type Limiter struct {
	sem chan struct{}
}

func NewLimiter(size int) *Limiter {
	if size <= 0 {
		size = 4
	}
	return &Limiter{sem: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Release() {
	<-l.sem
}
