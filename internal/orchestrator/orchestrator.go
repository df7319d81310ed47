// Package orchestrator drives a batch of segments through the ordered
// stage sequence: it builds prompts from prior-stage outputs and project
// memory, fans model calls out per segment, persists results before any
// transition, and applies the guard-triggered downgrade ladder at the
// terminal stage.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/placeholder"
	"github.com/litera-ai/litera/internal/postprocess"
	"github.com/litera-ai/litera/internal/provider"
	"github.com/litera-ai/litera/internal/retry"
	"github.com/litera-ai/litera/internal/segment"
	"github.com/litera-ai/litera/internal/store"
)

// Guard retry policy bounds.
const (
	// MaxGuardAttempts caps guard-triggered re-enqueues; beyond it
	// failures are surfaced as needs-review instead of retried.
	MaxGuardAttempts = 2

	defaultTemperatureDelta = 0.3
	defaultTemperatureFloor = 0.1
)

// Enqueuer re-enqueues stage jobs (the next stage, or a downgraded
// earlier stage).
type Enqueuer interface {
	Enqueue(ctx context.Context, job *segment.StageJob) error
}

// FinalizeResult reports the outcome of the finalize collaborator.
type FinalizeResult struct {
	Finalized         bool
	CompletedNow      bool
	TranslationFileID string
	NeedsReviewCount  int
}

// Finalizer assembles the finished document once the terminal stage
// settles.
type Finalizer interface {
	Finalize(ctx context.Context, job *segment.StageJob) (*FinalizeResult, error)
}

// WorkflowNotifier signals an attached workflow run on completion.
// Notification is best effort; failures are logged, never fatal.
type WorkflowNotifier interface {
	Completed(ctx context.Context, jobID, translationFileID string) error
}

// Persister is the slice of the store the orchestrator writes through.
type Persister interface {
	UpsertSegmentResults(ctx context.Context, results []store.SegmentResult) error
	UpsertJob(ctx context.Context, j store.JobRecord) error
	MarkJob(ctx context.Context, jobID, status, errMsg string) error
}

// GuardEvaluator runs the terminal-stage quality checks.
type GuardEvaluator interface {
	Evaluate(seg *segment.Segment, text string, cfg segment.StageConfig, mem *memory.ProjectMemory) segment.GuardResult
}

// Deps are the orchestrator's collaborators, passed explicitly so tests
// can substitute any of them. Baseline, Guards, Workflow and Memory may
// be nil; Client, Store, Queue and Finalizer are required.
type Deps struct {
	Client    provider.Client
	Baseline  provider.BaselineTranslator
	Store     Persister
	Memory    memory.Reader
	Guards    GuardEvaluator
	Queue     Enqueuer
	Finalizer Finalizer
	Workflow  WorkflowNotifier
	Log       *zap.SugaredLogger
}

// Config tunes the retry ladder and token budgets.
type Config struct {
	// TemperatureDelta is subtracted on the second guard retry.
	TemperatureDelta float64
	// TemperatureFloor bounds the downgraded temperature from below.
	TemperatureFloor float64
	// MaxOutputTokensCap bounds retry-executor budget growth.
	MaxOutputTokensCap int
	// RetryAttempts is passed through to the retry executor.
	RetryAttempts int
}

type Orchestrator struct {
	deps Deps
	cfg  Config
	log  *zap.SugaredLogger
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Client == nil || deps.Store == nil || deps.Queue == nil || deps.Finalizer == nil {
		return nil, fmt.Errorf("orchestrator: client, store, queue and finalizer are required")
	}
	if cfg.TemperatureDelta <= 0 {
		cfg.TemperatureDelta = defaultTemperatureDelta
	}
	if cfg.TemperatureFloor <= 0 {
		cfg.TemperatureFloor = defaultTemperatureFloor
	}
	log := deps.Log
	if log == nil {
		log = zap.S().Named("orchestrator")
	}
	return &Orchestrator{deps: deps, cfg: cfg, log: log}, nil
}

// SegmentOutcome is one segment's result for the handled stage.
type SegmentOutcome struct {
	SegmentID  string               `json:"segment_id"`
	Stage      string               `json:"stage"`
	TextTarget string               `json:"text_target"`
	Notes      string               `json:"notes,omitempty"`
	Guard      *segment.GuardResult `json:"guards,omitempty"`
}

// StageResult is Handle's answer: the stage that ran and its per-segment
// outcomes in batch order.
type StageResult struct {
	Stage   string
	Results []SegmentOutcome
}

// Handle executes one stage job end to end. Within the batch all model
// calls run concurrently; a single segment's failure aborts the whole
// batch transition. Results are always persisted before the next stage
// is enqueued.
func (o *Orchestrator) Handle(ctx context.Context, job *segment.StageJob) (*StageResult, error) {
	seq, ok := segment.SequenceFor(job.Stage)
	if !ok {
		return nil, fmt.Errorf("job %s: unknown stage %q", job.JobID, job.Stage)
	}
	log := o.log.With("job", job.JobID, "stage", job.Stage, "attempt", job.Attempt())

	if err := o.deps.Store.UpsertJob(ctx, store.JobRecord{
		JobID:         job.JobID,
		ProjectID:     job.ProjectID,
		Stage:         job.Stage,
		Status:        store.JobRunning,
		Attempt:       job.Attempt(),
		WorkflowRunID: job.WorkflowRunID,
	}); err != nil {
		// Bookkeeping only; results persistence below is the critical path.
		log.Warnw("failed to record job status", "error", err)
	}

	mem := o.loadMemory(ctx, job.ProjectID, log)

	if job.Stage == seq[0] {
		o.ensureBaselines(ctx, job, log)
	}

	outcomes := make([]SegmentOutcome, len(job.Segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range job.Segments {
		g.Go(func() error {
			out, err := o.runSegment(gctx, job, seq, seg, mem)
			if err != nil {
				return fmt.Errorf("segment %d: %w", seg.Index, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if serr := o.deps.Store.MarkJob(ctx, job.JobID, store.JobError, err.Error()); serr != nil {
			log.Warnw("failed to mark job errored", "error", serr)
		}
		return nil, err
	}

	for i, seg := range job.Segments {
		seg.SetOutput(job.Stage, segment.StageOutput{
			Text:  outcomes[i].TextTarget,
			Notes: outcomes[i].Notes,
		})
	}

	// Persist the whole batch before any transition decision, so a
	// crash between persistence and enqueue cannot lose work.
	memVersion := 0
	if mem != nil {
		memVersion = mem.Version
	}
	if err := o.deps.Store.UpsertSegmentResults(ctx, o.rows(job, outcomes, memVersion)); err != nil {
		if serr := o.deps.Store.MarkJob(ctx, job.JobID, store.JobError, err.Error()); serr != nil {
			log.Warnw("failed to mark job errored", "error", serr)
		}
		return nil, fmt.Errorf("failed to persist stage results: %w", err)
	}

	result := &StageResult{Stage: job.Stage, Results: outcomes}

	if segment.IsTerminal(seq, job.Stage) && o.deps.Guards != nil {
		anyFailed := false
		for i, seg := range job.Segments {
			gr := o.deps.Guards.Evaluate(seg, outcomes[i].TextTarget, job.Config, mem)
			seg.Guard = &gr
			outcomes[i].Guard = &gr
			if !gr.Passed {
				anyFailed = true
			}
		}
		if anyFailed {
			return result, o.handleGuardFailure(ctx, job, seq, outcomes, memVersion, log)
		}
	}

	if next, ok := segment.NextStage(seq, job.Stage); ok {
		nextJob := *job
		nextJob.Stage = next
		if err := o.deps.Queue.Enqueue(ctx, &nextJob); err != nil {
			return nil, fmt.Errorf("failed to enqueue stage %s: %w", next, err)
		}
		log.Infow("stage complete, next enqueued", "next", next)
		return result, nil
	}

	return result, o.finalize(ctx, job, log)
}

func (o *Orchestrator) loadMemory(ctx context.Context, projectID string, log *zap.SugaredLogger) *memory.ProjectMemory {
	if o.deps.Memory == nil {
		return nil
	}
	mem, err := o.deps.Memory.Latest(ctx, projectID)
	if err != nil {
		log.Warnw("failed to read project memory", "error", err)
		return nil
	}
	return mem
}

// ensureBaselines computes a machine-translation reference for every
// segment that lacks one, before the first-stage model calls. The
// baseline exists only for drift scoring, so failures degrade to a
// missing baseline rather than failing the job.
func (o *Orchestrator) ensureBaselines(ctx context.Context, job *segment.StageJob, log *zap.SugaredLogger) {
	if o.deps.Baseline == nil {
		return
	}
	for _, seg := range job.Segments {
		if seg.Baseline != "" {
			continue
		}
		text, err := o.deps.Baseline.Translate(ctx, seg.SourceText, job.Config.SourceLang, job.Config.TargetLang)
		if err != nil {
			log.Warnw("baseline translation failed", "segment", seg.Index, "error", err)
			continue
		}
		seg.Baseline = text
	}
}

// runSegment executes one segment's model call through the retry
// executor, decoding the structured output inside the retried call so a
// malformed body takes the parse-retry path.
func (o *Orchestrator) runSegment(ctx context.Context, job *segment.StageJob, seq []string, seg *segment.Segment, mem *memory.ProjectMemory) (SegmentOutcome, error) {
	var decoded stageOutput
	var markers placeholder.Markers

	build := func(ctx context.Context, a retry.Attempt) (*provider.Response, error) {
		system, user := buildPrompt(job, seq, seg, mem, a.Strict)
		user, markers = placeholder.Protect(user)
		if len(markers) > 0 {
			system += " The text contains ⟦n⟧ markers shielding markup; reproduce each marker exactly where it belongs."
		}
		resp, err := o.deps.Client.Complete(ctx, provider.Request{
			Model:           job.Config.Model,
			SystemPrompt:    system,
			UserPrompt:      user,
			Temperature:     job.Config.Temperature,
			Verbosity:       job.Config.Verbosity,
			ReasoningEffort: job.Config.ReasoningEffort,
			MaxOutputTokens: a.MaxOutputTokens,
			ResponseFormat:  "json_object",
		})
		if err != nil {
			return nil, err
		}
		out, err := decodeStageOutput(postprocess.StripCodeFence(resp.Text))
		if err != nil {
			return nil, err
		}
		decoded = out
		return resp, nil
	}

	_, err := retry.Do(ctx, build, retry.Options{
		InitialMaxOutputTokens: job.Config.MaxOutputTokens,
		MaxOutputTokensCap:     o.cfg.MaxOutputTokensCap,
		MaxAttempts:            o.cfg.RetryAttempts,
	})
	if err != nil {
		return SegmentOutcome{}, err
	}

	return SegmentOutcome{
		SegmentID:  seg.ID,
		Stage:      job.Stage,
		TextTarget: markers.Restore(postprocess.Clean(decoded.Text)),
		Notes:      decoded.Notes,
	}, nil
}

func (o *Orchestrator) rows(job *segment.StageJob, outcomes []SegmentOutcome, memVersion int) []store.SegmentResult {
	rows := make([]store.SegmentResult, len(outcomes))
	for i, seg := range job.Segments {
		rows[i] = store.SegmentResult{
			JobID:         job.JobID,
			Stage:         job.Stage,
			SegmentIndex:  seg.Index,
			SegmentID:     seg.ID,
			SourceText:    seg.SourceText,
			TargetText:    outcomes[i].TextTarget,
			Notes:         outcomes[i].Notes,
			Guard:         seg.Guard,
			NeedsReview:   seg.NeedsReview,
			RetryCount:    seg.RetryCount,
			MemoryVersion: memVersion,
		}
	}
	return rows
}

// handleGuardFailure applies the bounded downgrade ladder. Style-level
// downgrade runs before the literal-level one when both kinds of guard
// reasons co-occur: attempt 0 retries the style stage conservatively,
// attempt 1 retries the first stage with lowered temperature, and from
// attempt 2 on the failing segments are flagged for review and the job
// finalizes.
func (o *Orchestrator) handleGuardFailure(ctx context.Context, job *segment.StageJob, seq []string, outcomes []SegmentOutcome, memVersion int, log *zap.SugaredLogger) error {
	attempt := job.Attempt()

	switch {
	case attempt == 0 && len(seq) > 1:
		retryJob := *job
		retryJob.Stage = seq[1]
		retryJob.Config.CreativeAutonomy = segment.AutonomyNone
		retryJob.Retry = &segment.RetryContext{Attempt: attempt + 1, Reason: "guard failure: style downgrade"}
		for _, seg := range retryJob.Segments {
			seg.RetryCount++
			seg.ResetOutputs(seq[0])
			seg.Guard = nil
		}
		log.Infow("guard failure, retrying style stage conservatively", "retry_stage", seq[1])
		return o.deps.Queue.Enqueue(ctx, &retryJob)

	case attempt == 1:
		retryJob := *job
		retryJob.Stage = seq[0]
		retryJob.Config.Temperature = job.Config.Temperature - o.cfg.TemperatureDelta
		if retryJob.Config.Temperature < o.cfg.TemperatureFloor {
			retryJob.Config.Temperature = o.cfg.TemperatureFloor
		}
		retryJob.Retry = &segment.RetryContext{Attempt: attempt + 1, Reason: "guard failure: literal downgrade"}
		for _, seg := range retryJob.Segments {
			seg.RetryCount++
			seg.ResetOutputs()
			seg.Guard = nil
		}
		log.Infow("guard failure, retrying first stage with lowered temperature",
			"retry_stage", seq[0], "temperature", retryJob.Config.Temperature)
		return o.deps.Queue.Enqueue(ctx, &retryJob)

	default:
		// Retries exhausted: surface instead of retrying.
		for _, seg := range job.Segments {
			if seg.Guard != nil && !seg.Guard.Passed {
				seg.NeedsReview = true
			}
		}
		if err := o.deps.Store.UpsertSegmentResults(ctx, o.rows(job, outcomes, memVersion)); err != nil {
			return fmt.Errorf("failed to persist review flags: %w", err)
		}
		log.Infow("guard retries exhausted, finalizing with review flags")
		return o.finalize(ctx, job, log)
	}
}

func (o *Orchestrator) finalize(ctx context.Context, job *segment.StageJob, log *zap.SugaredLogger) error {
	fin, err := o.deps.Finalizer.Finalize(ctx, job)
	if err != nil {
		if serr := o.deps.Store.MarkJob(ctx, job.JobID, store.JobError, err.Error()); serr != nil {
			log.Warnw("failed to mark job errored", "error", serr)
		}
		return fmt.Errorf("finalize failed: %w", err)
	}

	if fin.CompletedNow && o.deps.Workflow != nil && job.WorkflowRunID != "" {
		if err := o.deps.Workflow.Completed(ctx, job.JobID, fin.TranslationFileID); err != nil {
			// Best effort only.
			log.Warnw("workflow completion signal failed", "error", err)
		}
	}

	if err := o.deps.Store.MarkJob(ctx, job.JobID, store.JobDone, ""); err != nil {
		log.Warnw("failed to mark job done", "error", err)
	}
	log.Infow("job finalized", "needs_review", fin.NeedsReviewCount)
	return nil
}
