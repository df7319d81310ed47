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
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/litera-ai/litera/internal/config"
	"github.com/litera-ai/litera/internal/ingest"
	"github.com/litera-ai/litera/internal/orchestrator"
	"github.com/litera-ai/litera/internal/queue"
	"github.com/litera-ai/litera/internal/segment"
)

var (
	inputFile  string
	sourceLang string
	targetLang string
	pipelineV  string
	projectID  string
)

// signalingFinalizer wraps the file finalizer and reports when the job
// settled so the one-shot command can stop its worker.
type signalingFinalizer struct {
	inner  orchestrator.Finalizer
	once   sync.Once
	doneCh chan *orchestrator.FinalizeResult
	err    error
}

func (f *signalingFinalizer) Finalize(ctx context.Context, job *segment.StageJob) (*orchestrator.FinalizeResult, error) {
	res, err := f.inner.Finalize(ctx, job)
	f.once.Do(func() {
		f.err = err
		f.doneCh <- res
		close(f.doneCh)
	})
	return res, err
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a manuscript through the full stage pipeline",
	Long: `Ingest a manuscript, enqueue its segments at the first stage and run
the pipeline to completion: every configured stage, terminal guard
checks with bounded downgrade retries, and a merged translation file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if v := pipelineV; v != "" {
			cfg.Pipeline.Version = v
		}
		seq, err := segment.Sequence(cfg.Pipeline.Version)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		segs := ingest.Segments(raw, strings.HasSuffix(inputFile, ".md"))
		if len(segs) == 0 {
			return fmt.Errorf("no translatable segments in %s", inputFile)
		}

		sig := &signalingFinalizer{doneCh: make(chan *orchestrator.FinalizeResult, 1)}
		st, err := buildStack(cfg, sig)
		if err != nil {
			return err
		}
		defer st.Close()
		sig.inner = orchestrator.NewFileFinalizer(st.store, cfg.Output.Dir)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if projectID == "" {
			projectID = uuid.NewString()
		}
		job := &segment.StageJob{
			ProjectID: projectID,
			JobID:     uuid.NewString(),
			Stage:     seq[0],
			Config:    stageConfig(cfg, sourceLang, targetLang),
			Segments:  segs,
		}
		if err := st.queue.Enqueue(ctx, job); err != nil {
			return err
		}

		jobErr := make(chan error, 1)
		worker := queue.NewWorker(st.queue, func(ctx context.Context, j *segment.StageJob) error {
			_, err := st.orch.Handle(ctx, j)
			if err != nil {
				select {
				case jobErr <- err:
					cancel()
				default:
				}
			}
			return err
		}, 1)

		errCh := make(chan error, 1)
		go func() { errCh <- worker.Run(ctx) }()

		select {
		case res := <-sig.doneCh:
			cancel()
			<-errCh
			if sig.err != nil {
				return sig.err
			}
			fmt.Printf("Translated %d segments → %s", len(segs), res.TranslationFileID)
			if res.NeedsReviewCount > 0 {
				fmt.Printf(" (%d segments flagged for review)", res.NeedsReviewCount)
			}
			fmt.Println()
			return nil
		case err := <-jobErr:
			<-errCh
			return err
		case err := <-errCh:
			if err != nil {
				return err
			}
			return fmt.Errorf("worker stopped before the job finalized")
		}
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "input manuscript (.txt or .md)")
	translateCmd.Flags().StringVarP(&sourceLang, "source-lang", "s", "", "source language (default from config)")
	translateCmd.Flags().StringVarP(&targetLang, "target-lang", "t", "", "target language (default from config)")
	translateCmd.Flags().StringVar(&pipelineV, "pipeline", "", "stage sequence: legacy or v2")
	translateCmd.Flags().StringVar(&projectID, "project", "", "project id for memory lookup (default random)")
	_ = translateCmd.MarkFlagRequired("input")
}
