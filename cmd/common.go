/*
Copyright © 2025 Litera Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"time"

	"github.com/litera-ai/litera/internal/config"
	"github.com/litera-ai/litera/internal/guard"
	"github.com/litera-ai/litera/internal/orchestrator"
	"github.com/litera-ai/litera/internal/provider"
	"github.com/litera-ai/litera/internal/queue"
	"github.com/litera-ai/litera/internal/segment"
	"github.com/litera-ai/litera/internal/store"
)

// stack is the wired pipeline a command runs against.
type stack struct {
	cfg   *config.Config
	store *store.Store
	queue *queue.Memory
	orch  *orchestrator.Orchestrator
}

// buildStack assembles the provider clients, store, guard evaluator and
// orchestrator from configuration. finalizer may be nil to use the
// default file finalizer writing under cfg.Output.Dir.
func buildStack(cfg *config.Config, finalizer orchestrator.Finalizer) (*stack, error) {
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
	client := provider.NewChatClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, timeout)

	var baseline provider.BaselineTranslator
	if cfg.Baseline.Enabled {
		baseline = provider.NewMTBaseline(cfg.Baseline.BaseURL, cfg.Baseline.Email)
	}

	q := queue.NewMemory(0)
	if finalizer == nil {
		finalizer = orchestrator.NewFileFinalizer(db, cfg.Output.Dir)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Client:    client,
		Baseline:  baseline,
		Store:     db,
		Memory:    db,
		Guards:    guard.NewEvaluator(guard.Options{}),
		Queue:     q,
		Finalizer: finalizer,
	}, orchestrator.Config{
		TemperatureDelta:   cfg.Pipeline.TemperatureDelta,
		TemperatureFloor:   cfg.Pipeline.TemperatureFloor,
		MaxOutputTokensCap: cfg.Pipeline.MaxOutputTokensCap,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &stack{cfg: cfg, store: db, queue: q, orch: orch}, nil
}

func (s *stack) Close() error {
	return s.store.Close()
}

// stageConfig translates pipeline configuration into a job's knobs,
// with language overrides from command flags.
func stageConfig(cfg *config.Config, sourceLang, targetLang string) segment.StageConfig {
	if sourceLang == "" {
		sourceLang = cfg.Pipeline.SourceLang
	}
	if targetLang == "" {
		targetLang = cfg.Pipeline.TargetLang
	}
	return segment.StageConfig{
		SourceLang:       sourceLang,
		TargetLang:       targetLang,
		Model:            cfg.Provider.Model,
		Temperature:      cfg.Pipeline.Temperature,
		Verbosity:        cfg.Pipeline.Verbosity,
		ReasoningEffort:  cfg.Pipeline.ReasoningEffort,
		MaxOutputTokens:  cfg.Pipeline.MaxOutputTokens,
		CreativeAutonomy: cfg.Pipeline.CreativeAutonomy,
	}
}
