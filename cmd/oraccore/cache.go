package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oraclab/oraccore/internal/cache"
	"github.com/oraclab/oraccore/internal/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the STT-response cache",
	}

	var limit int
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "List cached entries, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInspect(*configPath, limit)
		},
	}
	inspect.Flags().IntVar(&limit, "limit", 20, "maximum entries to list (0 = unbounded)")
	cacheCmd.AddCommand(inspect)

	return cacheCmd
}

func runCacheInspect(configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	snapshotPath := cfg.Cache.SnapshotPath
	if snapshotPath == "" {
		snapshotPath = filepath.Join(cfg.DataDir, "stt_cache.json")
	}
	store, err := cache.NewLRUCache(cfg.Cache.MaxSize, snapshotPath)
	if err != nil {
		return err
	}

	entries, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("cache is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-12s %-20s %q -> %v\n", e.TopicID, e.CreatedAt.Format("2006-01-02T15:04:05"), e.Text, e.JSONOutput)
	}
	return nil
}
