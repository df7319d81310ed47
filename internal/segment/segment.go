// Package segment defines the translation pipeline's core data model:
// segments, stage jobs and the configured stage sequences.
package segment

import "fmt"

// Stage names for the legacy four-pass sequence.
const (
	StageLiteral = "literal"
	StageStyle   = "style"
	StageEmotion = "emotion"
	StageQA      = "qa"
)

// Stage names for the v2 three-pass sequence.
const (
	StageDraft      = "draft"
	StageRevise     = "revise"
	StageMicrocheck = "microcheck"
)

// Creative-autonomy levels, most conservative first.
const (
	AutonomyNone = "none"
	AutonomyLow  = "low"
	AutonomyFull = "full"
)

var (
	legacySequence = []string{StageLiteral, StageStyle, StageEmotion, StageQA}
	v2Sequence     = []string{StageDraft, StageRevise, StageMicrocheck}
)

// Sequence returns the ordered stage list for a pipeline version
// ("legacy" or "v2").
func Sequence(version string) ([]string, error) {
	switch version {
	case "legacy", "":
		return legacySequence, nil
	case "v2":
		return v2Sequence, nil
	default:
		return nil, fmt.Errorf("unknown pipeline version: %s", version)
	}
}

// SequenceFor returns the stage sequence containing stage, or false when
// the stage name is not part of any configured sequence.
func SequenceFor(stage string) ([]string, bool) {
	for _, seq := range [][]string{legacySequence, v2Sequence} {
		for _, s := range seq {
			if s == stage {
				return seq, true
			}
		}
	}
	return nil, false
}

// NextStage returns the stage following stage within seq, or false when
// stage is terminal or absent.
func NextStage(seq []string, stage string) (string, bool) {
	for i, s := range seq {
		if s == stage && i+1 < len(seq) {
			return seq[i+1], true
		}
	}
	return "", false
}

// IsTerminal reports whether stage is the last stage of seq.
func IsTerminal(seq []string, stage string) bool {
	return len(seq) > 0 && seq[len(seq)-1] == stage
}

// StageOutput is one stage's produced text plus free-form notes.
type StageOutput struct {
	Text  string `json:"text"`
	Notes string `json:"notes,omitempty"`
}

// Guard finding levels. The level decides which downgrade the retry
// ladder applies first (style before literal).
const (
	LevelLiteral = "literal"
	LevelStyle   = "style"
)

// GuardFinding is one structured issue reported by a guard check.
type GuardFinding struct {
	Check   string `json:"check"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// GuardResult is the outcome of evaluating all guard checks on a segment.
type GuardResult struct {
	Passed   bool           `json:"passed"`
	Findings []GuardFinding `json:"findings,omitempty"`
}

// Segment is the atomic translation unit. It is created at segmentation
// time, mutated once per stage, and immutable after the terminal stage
// persists.
type Segment struct {
	ID           string                 `json:"id"`
	Index        int                    `json:"index"`
	SourceText   string                 `json:"source_text"`
	StageOutputs map[string]StageOutput `json:"stage_outputs,omitempty"`
	// Baseline is a machine-translation reference used for drift scoring.
	Baseline    string       `json:"baseline,omitempty"`
	Guard       *GuardResult `json:"guard,omitempty"`
	NeedsReview bool         `json:"needs_review"`
	RetryCount  int          `json:"retry_count"`
}

// SetOutput records a stage's output, allocating the map on first use.
func (s *Segment) SetOutput(stage string, out StageOutput) {
	if s.StageOutputs == nil {
		s.StageOutputs = make(map[string]StageOutput)
	}
	s.StageOutputs[stage] = out
}

// PriorText returns the output of the stage immediately preceding stage
// in seq, falling back to the source text when absent.
func (s *Segment) PriorText(seq []string, stage string) string {
	for i, name := range seq {
		if name == stage && i > 0 {
			if out, ok := s.StageOutputs[seq[i-1]]; ok && out.Text != "" {
				return out.Text
			}
		}
	}
	return s.SourceText
}

// ResetOutputs drops all stage outputs except those named in keep.
func (s *Segment) ResetOutputs(keep ...string) {
	if s.StageOutputs == nil {
		return
	}
	kept := make(map[string]StageOutput, len(keep))
	for _, name := range keep {
		if out, ok := s.StageOutputs[name]; ok {
			kept[name] = out
		}
	}
	s.StageOutputs = kept
}

// StageConfig carries the model knobs for one stage job.
type StageConfig struct {
	SourceLang       string  `json:"source_lang"`
	TargetLang       string  `json:"target_lang"`
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	Verbosity        string  `json:"verbosity,omitempty"`
	ReasoningEffort  string  `json:"reasoning_effort,omitempty"`
	MaxOutputTokens  int     `json:"max_output_tokens"`
	CreativeAutonomy string  `json:"creative_autonomy,omitempty"`
}

// RetryContext tracks guard-triggered re-enqueues of a job. Attempt is
// monotonically non-decreasing and capped by the orchestrator.
type RetryContext struct {
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason,omitempty"`
}

// StageJob is a unit of work: one stage over one batch of segments.
type StageJob struct {
	ProjectID string         `json:"project_id"`
	JobID     string         `json:"job_id"`
	Stage     string         `json:"stage"`
	Config    StageConfig    `json:"config"`
	Segments  []*Segment     `json:"segments"`
	Retry     *RetryContext  `json:"retry_context,omitempty"`
	// WorkflowRunID, when non-empty, identifies an attached workflow run
	// to signal on completion (best effort).
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
}

// Attempt returns the guard-retry attempt count, zero when unset.
func (j *StageJob) Attempt() int {
	if j.Retry == nil {
		return 0
	}
	return j.Retry.Attempt
}
