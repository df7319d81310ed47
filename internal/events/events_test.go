package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/litera-ai/litera/internal/pages"
)

func TestNDJSONWriter_OneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)
	ctx := context.Background()

	if err := w.Write(ctx, Event{Type: TypeStage, RunID: "run-1", Stage: "proofread"}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := w.Write(ctx, Event{Type: TypeEnd, RunID: "run-1"}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.Type != TypeStage || first.Stage != "proofread" {
		t.Errorf("unexpected first event: %+v", first)
	}
}

func TestProducer_DeliversInOrder(t *testing.T) {
	var buf bytes.Buffer
	p := NewProducer(NewNDJSONWriter(&buf), 16)

	p.Stage("run-1", "proofread")
	p.ProgressEvent("run-1", 1, 3)
	p.Items(pages.Page{RunID: "run-1", Stage: "proofread"})
	p.Complete("run-1")
	p.End("run-1")

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 events, got %d", len(lines))
	}
	wantTypes := []string{TypeStage, TypeProgress, TypeItems, TypeComplete, TypeEnd}
	for i, line := range lines {
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("event %d: expected type %q, got %q", i, wantTypes[i], e.Type)
		}
	}
}

func TestProducer_ProgressPayload(t *testing.T) {
	var buf bytes.Buffer
	p := NewProducer(NewNDJSONWriter(&buf), 4)

	p.ProgressEvent("run-1", 2, 5)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	var e Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.Progress == nil || e.Progress.Done != 2 || e.Progress.Total != 5 {
		t.Errorf("unexpected progress payload: %+v", e.Progress)
	}
}

func TestProducer_ErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProducer(NewNDJSONWriter(&buf), 4)

	p.Error("run-1", "model unavailable")
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	var e Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.Type != TypeError || e.Message != "model unavailable" {
		t.Errorf("unexpected error event: %+v", e)
	}
}

func TestProducer_CloseIdempotent(t *testing.T) {
	p := NewProducer(NewNDJSONWriter(&bytes.Buffer{}), 4)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}
