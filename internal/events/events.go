// Package events emits the pipeline's outbound stream: NDJSON-style
// page and status events consumed by the transport collaborator. The
// producer buffers so a slow writer can never block the pipeline's
// critical path; overflow drops events with a log line.
package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/litera-ai/litera/internal/pages"
)

// Event types, in the order a consumer typically sees them.
const (
	TypeStage    = "stage"
	TypeItems    = "items"
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeError    = "error"
	TypeEnd      = "end"
)

// Progress reports how far a run has advanced.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Event is one line of the outbound stream.
type Event struct {
	Type     string      `json:"type"`
	RunID    string      `json:"run_id,omitempty"`
	Stage    string      `json:"stage,omitempty"`
	Page     *pages.Page `json:"page,omitempty"`
	Progress *Progress   `json:"progress,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Writer is implemented by the underlying transport.
type Writer interface {
	Write(ctx context.Context, e Event) error
	Close(ctx context.Context) error
}

// NDJSONWriter writes one JSON object per line to w.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

func (w *NDJSONWriter) Write(_ context.Context, e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(e)
}

func (w *NDJSONWriter) Close(context.Context) error { return nil }

const defaultBufferSize = 256

// Producer buffers events in front of a Writer.
type Producer struct {
	writer Writer
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	log    *zap.SugaredLogger
}

// NewProducer starts the consuming goroutine. bufferSize ≤ 0 uses the
// default.
func NewProducer(w Writer, bufferSize int) *Producer {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	p := &Producer{
		writer: w,
		ch:     make(chan Event, bufferSize),
		done:   make(chan struct{}),
		log:    zap.S().Named("events"),
	}
	go p.run()
	return p
}

func (p *Producer) run() {
	defer close(p.done)
	for e := range p.ch {
		if err := p.writer.Write(context.Background(), e); err != nil {
			p.log.Warnw("failed to write event", "type", e.Type, "error", err)
		}
	}
}

// Emit queues one event. A full buffer drops the event rather than
// blocking the caller.
func (p *Producer) Emit(e Event) {
	select {
	case p.ch <- e:
	default:
		p.log.Warnw("event buffer full, dropping event", "type", e.Type)
	}
}

// Stage signals a stage-status change for a run.
func (p *Producer) Stage(runID, stage string) {
	p.Emit(Event{Type: TypeStage, RunID: runID, Stage: stage})
}

// Items carries one page of findings.
func (p *Producer) Items(page pages.Page) {
	p.Emit(Event{Type: TypeItems, RunID: page.RunID, Stage: page.Stage, Page: &page})
}

// ProgressEvent reports done/total for a run.
func (p *Producer) ProgressEvent(runID string, done, total int) {
	p.Emit(Event{Type: TypeProgress, RunID: runID, Progress: &Progress{Done: done, Total: total}})
}

// Complete marks a run finished.
func (p *Producer) Complete(runID string) {
	p.Emit(Event{Type: TypeComplete, RunID: runID})
}

// Error reports a run failure.
func (p *Producer) Error(runID, message string) {
	p.Emit(Event{Type: TypeError, RunID: runID, Message: message})
}

// End terminates the stream for a run.
func (p *Producer) End(runID string) {
	p.Emit(Event{Type: TypeEnd, RunID: runID})
}

// Close drains the buffer and closes the underlying writer.
func (p *Producer) Close(ctx context.Context) error {
	p.once.Do(func() { close(p.ch) })
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.writer.Close(ctx)
}
