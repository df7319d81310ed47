// Package memory models the versioned, append-only project memory the
// pipeline consults while building prompts: style profile, term map and
// symbol table. The pipeline only ever reads it; new versions are
// written by the memory-management collaborator.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ProjectMemory is one version of a project's accumulated context.
type ProjectMemory struct {
	ProjectID string `json:"project_id"`
	// Version is recorded with persisted results for idempotency keying.
	Version      int               `json:"version"`
	StyleProfile string            `json:"style_profile,omitempty"`
	TermMap      map[string]string `json:"term_map,omitempty"`
	SymbolTable  map[string]string `json:"symbol_table,omitempty"`
}

// Reader provides read-only access to the latest memory version.
type Reader interface {
	Latest(ctx context.Context, projectID string) (*ProjectMemory, error)
}

// TermsFor returns the term-map entries whose source term occurs in
// text, formatted as "source → target" lines ready to embed in a
// prompt. Output order is deterministic.
func (m *ProjectMemory) TermsFor(text string) []string {
	if m == nil || len(m.TermMap) == 0 {
		return nil
	}
	var lines []string
	for src, tgt := range m.TermMap {
		if strings.Contains(text, src) {
			lines = append(lines, fmt.Sprintf("%s → %s", src, tgt))
		}
	}
	sort.Strings(lines)
	return lines
}

// SymbolsFor returns the symbol-table entries relevant to text, in the
// same prompt-ready form as TermsFor.
func (m *ProjectMemory) SymbolsFor(text string) []string {
	if m == nil || len(m.SymbolTable) == 0 {
		return nil
	}
	var lines []string
	for sym, meaning := range m.SymbolTable {
		if strings.Contains(text, sym) {
			lines = append(lines, fmt.Sprintf("%s → %s", sym, meaning))
		}
	}
	sort.Strings(lines)
	return lines
}
