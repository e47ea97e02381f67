package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/braid-ai/braid/internal/config"
	"github.com/braid-ai/braid/internal/embedding"
	"github.com/braid-ai/braid/internal/vecindex"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Passage index management",
	}
	cmd.AddCommand(indexBuildCmd())
	return cmd
}

func indexBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed passages and write the flat index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			passagesPath, _ := cmd.Flags().GetString("passages")
			outPath, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Relevance.Embedding.APIKey == "" {
				return fmt.Errorf("relevance.embedding.api_key is required to build an index")
			}

			raw, err := os.ReadFile(passagesPath)
			if err != nil {
				return fmt.Errorf("reading passages %s: %w", passagesPath, err)
			}
			var passages []string
			if err := json.Unmarshal(raw, &passages); err != nil {
				return fmt.Errorf("parsing passages %s (want a JSON array of strings): %w", passagesPath, err)
			}
			if len(passages) == 0 {
				return fmt.Errorf("no passages in %s", passagesPath)
			}

			embedder := embedding.NewOpenAI(embedding.OpenAIConfig{
				APIKey:  cfg.Relevance.Embedding.APIKey,
				BaseURL: cfg.Relevance.Embedding.BaseURL,
				Model:   cfg.Relevance.Embedding.Model,
				Timeout: cfg.Relevance.Embedding.Timeout,
			})

			entries := make([]vecindex.Entry, len(passages))
			for i, passage := range passages {
				vec, err := embedder.Embed(cmd.Context(), passage)
				if err != nil {
					return fmt.Errorf("embedding passage %d: %w", i, err)
				}
				entries[i] = vecindex.Entry{
					ID:     fmt.Sprintf("passage-%d", i),
					Text:   passage,
					Vector: vec,
				}
			}

			if err := vecindex.Save(outPath, entries); err != nil {
				return err
			}
			fmt.Printf("indexed %d passages to %s\n", len(entries), outPath)
			return nil
		},
	}
	cmd.Flags().String("passages", "passages.json", "JSON array of passage strings")
	cmd.Flags().String("out", "index.json", "Output index file")
	return cmd
}
