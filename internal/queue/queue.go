// Package queue delivers stage jobs to workers. Each job is an
// independent unit; redelivery is safe because all persistence is
// keyed idempotently.
package queue

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/litera-ai/litera/internal/segment"
)

// ErrClosed is returned by Dequeue after Close.
var ErrClosed = errors.New("queue closed")

// Queue is the job transport boundary.
type Queue interface {
	Enqueue(ctx context.Context, job *segment.StageJob) error
	// Dequeue blocks until a job is available, the queue closes, or ctx
	// is done.
	Dequeue(ctx context.Context) (*segment.StageJob, error)
}

// Memory is an in-process channel-backed queue.
type Memory struct {
	ch chan *segment.StageJob
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 64
	}
	return &Memory{ch: make(chan *segment.StageJob, capacity)}
}

func (m *Memory) Enqueue(ctx context.Context, job *segment.StageJob) error {
	select {
	case m.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context) (*segment.StageJob, error) {
	select {
	case job, ok := <-m.ch:
		if !ok {
			return nil, ErrClosed
		}
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops delivery once the buffer drains.
func (m *Memory) Close() { close(m.ch) }

// Handler processes one dequeued job.
type Handler func(ctx context.Context, job *segment.StageJob) error

// Worker consumes jobs with a fixed number of consumers. A handler
// error fails only that job (its status is already recorded); the
// worker keeps consuming.
type Worker struct {
	queue       Queue
	handler     Handler
	concurrency int
	log         *zap.SugaredLogger
}

func NewWorker(q Queue, h Handler, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		handler:     h,
		concurrency: concurrency,
		log:         zap.S().Named("worker"),
	}
}

// Run consumes until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			for {
				job, err := w.queue.Dequeue(gctx)
				if err != nil {
					if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if err := w.handler(gctx, job); err != nil {
					w.log.Errorw("job failed", "job", job.JobID, "stage", job.Stage, "error", err)
				}
			}
		})
	}
	return g.Wait()
}
