package placeholder_test

import (
	"strings"
	"testing"

	"github.com/litera-ai/litera/internal/placeholder"
)

func TestProtect_NoMarkup(t *testing.T) {
	text := "Hello, world!"
	got, markers := placeholder.Protect(text)
	if got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
	if len(markers) != 0 {
		t.Errorf("expected 0 markers, got %d", len(markers))
	}
}

func TestProtect_HTMLTags(t *testing.T) {
	text := "<p>Hello <b>world</b></p>"
	got, markers := placeholder.Protect(text)

	if len(markers) != 4 {
		t.Fatalf("expected 4 markers (<p>, <b>, </b>, </p>), got %d: %v", len(markers), markers)
	}
	for _, tag := range []string{"<p>", "<b>", "</b>", "</p>"} {
		if strings.Contains(got, tag) {
			t.Errorf("expected tag %q replaced, still present in %q", tag, got)
		}
	}
	if !strings.Contains(got, "⟦0⟧") {
		t.Errorf("expected ⟦0⟧ in %q", got)
	}
}

func TestProtect_FencedCodeBeforeInline(t *testing.T) {
	text := "Before\n```go\nx := `raw`\n```\nAfter `span`"
	got, markers := placeholder.Protect(text)

	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d: %v", len(markers), markers)
	}
	if !strings.HasPrefix(markers[0], "```") {
		t.Errorf("expected the fenced block captured first, got %q", markers[0])
	}
	if markers[1] != "`span`" {
		t.Errorf("expected the inline span captured second, got %q", markers[1])
	}
	if strings.Contains(got, "```") {
		t.Errorf("fenced block still present in %q", got)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	text := "<em>Той, що</em> казав `слово` своє"
	protected, markers := placeholder.Protect(text)
	restored := markers.Restore(protected)
	if restored != text {
		t.Errorf("expected round trip, got %q", restored)
	}
}

func TestRestore_DroppedMarkerStaysDropped(t *testing.T) {
	_, markers := placeholder.Protect("<b>bold</b>")
	restored := markers.Restore("no markers here")
	if restored != "no markers here" {
		t.Errorf("expected text unchanged, got %q", restored)
	}
}

func TestRestore_UnknownIndexLeftAlone(t *testing.T) {
	_, markers := placeholder.Protect("<b>bold</b>")
	restored := markers.Restore("text ⟦9⟧ text")
	if restored != "text ⟦9⟧ text" {
		t.Errorf("expected unknown marker left as-is, got %q", restored)
	}
}

func TestRestore_NoMarkersCaptured(t *testing.T) {
	var markers placeholder.Markers
	if got := markers.Restore("⟦0⟧"); got != "⟦0⟧" {
		t.Errorf("expected text unchanged with no captures, got %q", got)
	}
}
