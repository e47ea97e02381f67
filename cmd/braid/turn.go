package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/braid-ai/braid/internal/provider"
)

// transcriptEntry is one message in a prior-turn log file.
type transcriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func turnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn \"text\"",
		Short: "Run one conversational turn and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			participant, _ := cmd.Flags().GetString("participant")
			logPath, _ := cmd.Flags().GetString("log")

			a, err := buildApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if logPath != "" {
				transcript, err := loadTranscript(logPath)
				if err != nil {
					return err
				}
				n, err := a.engine.Ingest(cmd.Context(), participant, transcript)
				if err != nil {
					return err
				}
				if n > 0 {
					a.logger.Info("seeded empty log from transcript", "participant", participant, "messages", n)
				}
			}

			res, err := a.engine.Turn(cmd.Context(), participant, args[0])
			if err != nil {
				return err
			}

			fmt.Println(res.Reply)
			fmt.Fprintf(os.Stderr, "\n[input: %d tokens, output: %d tokens, context: %d tokens]\n",
				res.Usage.InputTokens, res.Usage.OutputTokens, res.ContextTokens)
			return nil
		},
	}
	cmd.Flags().StringP("participant", "p", "default", "Participant identifier")
	cmd.Flags().String("log", "", "Prior-turn transcript JSON to seed an empty log")
	return cmd
}

// loadTranscript parses a JSON array of {role, content} messages.
func loadTranscript(path string) ([]provider.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript %s: %w", path, err)
	}

	var entries []transcriptEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing transcript %s: %w", path, err)
	}

	msgs := make([]provider.Message, 0, len(entries))
	for i, e := range entries {
		role, err := provider.ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("transcript entry %d: %w", i, err)
		}
		msgs = append(msgs, provider.Message{Role: role, Content: e.Content})
	}
	return msgs, nil
}
