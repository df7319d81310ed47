package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/litera-ai/litera/internal/segment"
	"github.com/litera-ai/litera/internal/store"
)

// FileFinalizer is the default finalize collaborator: it merges the
// terminal stage's persisted outputs into one translation file and
// reports how many segments are flagged for review.
type FileFinalizer struct {
	store  *store.Store
	outDir string
}

// NewFileFinalizer writes finalized translations under outDir, one file
// per job.
func NewFileFinalizer(s *store.Store, outDir string) *FileFinalizer {
	return &FileFinalizer{store: s, outDir: outDir}
}

// Finalize merges the terminal-stage rows in segment order. Finalizing
// the same job twice rewrites the same file, so redelivery is safe;
// CompletedNow is true only when the file did not already exist.
func (f *FileFinalizer) Finalize(ctx context.Context, job *segment.StageJob) (*FinalizeResult, error) {
	rows, err := f.store.ListSegmentResults(ctx, job.JobID, job.Stage)
	if err != nil {
		return nil, fmt.Errorf("failed to load terminal results: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no persisted results for job %s stage %s", job.JobID, job.Stage)
	}

	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, r.TargetText)
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(f.outDir, job.JobID+".txt")
	_, statErr := os.Stat(path)
	completedNow := os.IsNotExist(statErr)

	if err := os.WriteFile(path, []byte(strings.Join(parts, "\n\n")), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write translation file: %w", err)
	}

	reviewCount, err := f.store.NeedsReviewCount(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count review flags: %w", err)
	}

	return &FinalizeResult{
		Finalized:         true,
		CompletedNow:      completedNow,
		TranslationFileID: path,
		NeedsReviewCount:  reviewCount,
	}, nil
}
