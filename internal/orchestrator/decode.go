package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/litera-ai/litera/internal/provider"
)

// stageOutput is the schema every stage call must produce.
type stageOutput struct {
	Text  string `json:"text"`
	Notes string `json:"notes,omitempty"`
}

// decodeStageOutput decodes a model response strictly: a single JSON
// object of the stageOutput shape, with exactly one fallback — a
// top-level array holding one such object. Anything else is a parse
// error (and takes the retry executor's parse path). There is
// deliberately no recursive shape hunting here.
func decodeStageOutput(raw string) (stageOutput, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return stageOutput{}, fmt.Errorf("empty model output: %w", provider.ErrParse)
	}

	switch raw[0] {
	case '{':
		var out stageOutput
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return stageOutput{}, fmt.Errorf("model output does not match schema: %v: %w", err, provider.ErrParse)
		}
		if strings.TrimSpace(out.Text) == "" {
			return stageOutput{}, fmt.Errorf("model output has empty text field: %w", provider.ErrParse)
		}
		return out, nil

	case '[':
		var arr []stageOutput
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&arr); err != nil {
			return stageOutput{}, fmt.Errorf("model output array does not match schema: %v: %w", err, provider.ErrParse)
		}
		if len(arr) != 1 || strings.TrimSpace(arr[0].Text) == "" {
			return stageOutput{}, fmt.Errorf("model output array must hold exactly one segment: %w", provider.ErrParse)
		}
		return arr[0], nil

	default:
		return stageOutput{}, fmt.Errorf("model output is not JSON: %w", provider.ErrParse)
	}
}
