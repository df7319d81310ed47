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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/litera-ai/litera/internal/config"
	"github.com/litera-ai/litera/internal/queue"
	"github.com/litera-ai/litera/internal/segment"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a long-lived stage worker",
	Long: `Consume stage jobs from the queue until interrupted. Each job runs
one stage over all its segments, persists the results and enqueues the
next stage or finalizes the job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := buildStack(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		concurrency := workerConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Pipeline.WorkerConcurrency
		}

		log := zap.S().Named("worker")
		log.Infow("worker started", "concurrency", concurrency, "db", cfg.Database.Path)

		worker := queue.NewWorker(st.queue, func(ctx context.Context, j *segment.StageJob) error {
			_, err := st.orch.Handle(ctx, j)
			return err
		}, concurrency)
		err = worker.Run(ctx)
		log.Info("worker stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "concurrent job handlers (default from config)")
}
