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
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/litera-ai/litera/internal/config"
	"github.com/litera-ai/litera/internal/events"
	"github.com/litera-ai/litera/internal/proofread"
	"github.com/litera-ai/litera/internal/provider"
)

var (
	proofSourceFile string
	proofTargetFile string
)

var proofreadCmd = &cobra.Command{
	Use:   "proofread",
	Short: "Proofread a translation against its source",
	Long: `Align the source and translated texts sentence by sentence, review
them chunk by chunk with the model, and stream findings to stdout as
NDJSON events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		src, err := os.ReadFile(proofSourceFile)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		tgt, err := os.ReadFile(proofTargetFile)
		if err != nil {
			return fmt.Errorf("failed to read target file: %w", err)
		}

		timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
		client := provider.NewChatClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, timeout)

		var embedder provider.Embedder
		if cfg.Provider.EmbeddingModel != "" {
			embedder = provider.NewEmbeddingClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.EmbeddingModel, timeout)
		}

		producer := events.NewProducer(events.NewNDJSONWriter(os.Stdout), 0)
		defer producer.Close(context.Background())

		analyzer := proofread.NewAnalyzer(client, embedder,
			proofread.NewLimiter(cfg.Proofread.LimiterSize), producer,
			proofread.Config{
				Model:              cfg.Provider.Model,
				TokenBudget:        cfg.Proofread.TokenBudget,
				OverlapTokenBudget: cfg.Proofread.OverlapTokenBudget,
				MaxOutputTokens:    cfg.Proofread.MaxOutputTokens,
				MaxOutputTokensCap: cfg.Pipeline.MaxOutputTokensCap,
				PageSize:           cfg.Proofread.PageSize,
			})

		_, err = analyzer.Run(cmd.Context(), uuid.NewString(), string(src), string(tgt))
		return err
	},
}

func init() {
	rootCmd.AddCommand(proofreadCmd)

	proofreadCmd.Flags().StringVar(&proofSourceFile, "source", "", "source text file")
	proofreadCmd.Flags().StringVar(&proofTargetFile, "target", "", "translated text file")
	_ = proofreadCmd.MarkFlagRequired("source")
	_ = proofreadCmd.MarkFlagRequired("target")
}
