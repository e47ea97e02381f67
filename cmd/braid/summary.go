package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/braid-ai/braid/internal/config"
	"github.com/braid-ai/braid/internal/memory/sqlite"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Rolling summary inspection",
	}
	cmd.AddCommand(summaryShowCmd())
	return cmd
}

func summaryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a participant's rolling summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			participant, _ := cmd.Flags().GetString("participant")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := sqlite.Open(cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Get(cmd.Context(), participant)
			if err != nil {
				return err
			}
			if summary == "" {
				return fmt.Errorf("no summary for participant %q", participant)
			}
			fmt.Println(summary)
			return nil
		},
	}
	cmd.Flags().StringP("participant", "p", "default", "Participant identifier")
	return cmd
}
