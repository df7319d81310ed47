package memory

import "testing"

func TestTermsFor(t *testing.T) {
	m := &ProjectMemory{TermMap: map[string]string{
		"зоря":  "star",
		"річка": "river",
	}}

	lines := m.TermsFor("Над полем сходила зоря.")
	if len(lines) != 1 {
		t.Fatalf("expected 1 matching term, got %d: %v", len(lines), lines)
	}
	if lines[0] != "зоря → star" {
		t.Errorf("unexpected line: %q", lines[0])
	}
}

func TestTermsFor_DeterministicOrder(t *testing.T) {
	m := &ProjectMemory{TermMap: map[string]string{
		"b-term": "second",
		"a-term": "first",
	}}

	lines := m.TermsFor("a-term and b-term together")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "a-term → first" || lines[1] != "b-term → second" {
		t.Errorf("expected sorted output, got %v", lines)
	}
}

func TestTermsFor_NilReceiver(t *testing.T) {
	var m *ProjectMemory
	if lines := m.TermsFor("anything"); lines != nil {
		t.Errorf("expected nil for nil memory, got %v", lines)
	}
}

func TestSymbolsFor(t *testing.T) {
	m := &ProjectMemory{SymbolTable: map[string]string{
		"ворон": "death omen, keep untranslated connotation",
	}}

	if lines := m.SymbolsFor("Чорний ворон сидів на гілці."); len(lines) != 1 {
		t.Errorf("expected 1 symbol line, got %v", lines)
	}
	if lines := m.SymbolsFor("Нічого символічного."); len(lines) != 0 {
		t.Errorf("expected no symbol lines, got %v", lines)
	}
}
