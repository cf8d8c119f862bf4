package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oraclab/oraccore/internal/config"
	"github.com/oraclab/oraccore/internal/grammar"
	"github.com/oraclab/oraccore/internal/mapping"
)

func newGrammarCmd(configPath *string) *cobra.Command {
	grammarCmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect and regenerate backend grammars",
	}

	var backendID string
	regenerate := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate a backend's GBNF grammar from its current device mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrammarRegenerate(*configPath, backendID)
		},
	}
	regenerate.Flags().StringVar(&backendID, "backend", "", "backend id to regenerate; all backends if omitted")
	grammarCmd.AddCommand(regenerate)

	return grammarCmd
}

func runGrammarRegenerate(configPath, backendID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := mapping.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var records []mapping.Record
	if backendID != "" {
		rec, err := store.Get(ctx, backendID)
		if err != nil {
			return err
		}
		records = []mapping.Record{rec}
	} else {
		records, err = store.List(ctx)
		if err != nil {
			return err
		}
	}

	for _, rec := range records {
		result, err := grammar.GenerateAndSave(cfg.DataDir, rec)
		if err != nil {
			return fmt.Errorf("regenerate grammar for %q: %w", rec.ID, err)
		}
		fmt.Printf("regenerated %s: %d device types, %d locations\n", rec.ID, len(result.DeviceTypes), len(result.Locations))
	}
	return nil
}
