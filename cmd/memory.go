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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/litera-ai/litera/internal/config"
	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/store"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or seed project memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Print the latest memory snapshot for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := db.Latest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("no memory recorded for project %s", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

var memorySeedFile string

var memorySeedCmd = &cobra.Command{
	Use:   "seed <project-id>",
	Short: "Append a memory version from a JSON file",
	Long: `Read a JSON document with style_profile, term_map and symbol_table
fields and store it as the next memory version for the project. Later
translation jobs pick up the newest version automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(memorySeedFile)
		if err != nil {
			return fmt.Errorf("failed to read memory file: %w", err)
		}
		var m memory.ProjectMemory
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("failed to parse memory file: %w", err)
		}
		m.ProjectID = args[0]

		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		version, err := db.AppendMemory(cmd.Context(), m)
		if err != nil {
			return err
		}
		fmt.Printf("Stored memory version %d for project %s\n", version, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memorySeedCmd)

	memorySeedCmd.Flags().StringVarP(&memorySeedFile, "file", "f", "", "JSON file with the memory snapshot")
	_ = memorySeedCmd.MarkFlagRequired("file")
}
