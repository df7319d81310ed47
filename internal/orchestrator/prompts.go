package orchestrator

import (
	"fmt"
	"strings"

	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/segment"
)

// buildPrompt assembles the system and user prompts for one segment at
// one stage. The user prompt carries the working text: the immediately
// preceding stage's output, falling back to the source when absent.
func buildPrompt(job *segment.StageJob, seq []string, seg *segment.Segment, mem *memory.ProjectMemory, strict bool) (system, user string) {
	cfg := job.Config

	var sb strings.Builder
	switch job.Stage {
	case segment.StageLiteral, segment.StageDraft:
		sb.WriteString(fmt.Sprintf(
			"You are a professional literary translator. Translate the passage from %s to %s faithfully, preserving every detail of meaning. Do not embellish.",
			langOrDetected(cfg.SourceLang), cfg.TargetLang))
	case segment.StageStyle, segment.StageRevise:
		sb.WriteString(fmt.Sprintf(
			"You are an elite %s literary editor and prose stylist. Rewrite the draft translation with natural flow, idiomatic expression and pleasant rhythm while keeping the original meaning intact.",
			cfg.TargetLang))
		switch cfg.CreativeAutonomy {
		case segment.AutonomyNone:
			sb.WriteString(" Stay as close to the draft wording as possible; change only what is clearly unnatural.")
		case segment.AutonomyFull:
			sb.WriteString(" You may restructure sentences freely as long as the meaning survives.")
		}
	case segment.StageEmotion:
		sb.WriteString(fmt.Sprintf(
			"You are a %s fiction editor focused on emotional register. Adjust the passage so its tone and intensity match the original, without altering factual content.",
			cfg.TargetLang))
	case segment.StageQA, segment.StageMicrocheck:
		sb.WriteString(fmt.Sprintf(
			"You are a bilingual %s/%s proofreader. Check the translation against the source for omissions, additions and mistranslations, and return the minimally corrected text.",
			langOrDetected(cfg.SourceLang), cfg.TargetLang))
	default:
		sb.WriteString(fmt.Sprintf(
			"You are a professional translator working from %s to %s.",
			langOrDetected(cfg.SourceLang), cfg.TargetLang))
	}

	if mem != nil && mem.StyleProfile != "" {
		sb.WriteString("\n\nPROJECT STYLE:\n")
		sb.WriteString(mem.StyleProfile)
	}
	if terms := mem.TermsFor(seg.SourceText); len(terms) > 0 {
		sb.WriteString("\n\nTERMINOLOGY (use these exact renderings):\n  ")
		sb.WriteString(strings.Join(terms, "\n  "))
	}
	if syms := mem.SymbolsFor(seg.SourceText); len(syms) > 0 {
		sb.WriteString("\n\nRECURRING SYMBOLS:\n  ")
		sb.WriteString(strings.Join(syms, "\n  "))
	}

	sb.WriteString("\n\nRespond with a JSON object: {\"text\": \"<the passage>\", \"notes\": \"<optional translator notes>\"}.")
	if strict {
		sb.WriteString(" Output ONLY the JSON object. No prose, no markdown fences, no explanation of any kind.")
	}

	var ub strings.Builder
	if job.Stage != seq[0] {
		ub.WriteString("SOURCE:\n")
		ub.WriteString(seg.SourceText)
		ub.WriteString("\n\nWORKING TRANSLATION:\n")
		ub.WriteString(seg.PriorText(seq, job.Stage))
	} else {
		ub.WriteString(seg.SourceText)
	}

	return sb.String(), ub.String()
}

func langOrDetected(lang string) string {
	if lang == "" || lang == "auto" {
		return "the detected language"
	}
	return lang
}
