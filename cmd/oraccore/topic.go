package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oraclab/oraccore/internal/config"
	"github.com/oraclab/oraccore/internal/topic"
)

func newTopicCmd(configPath *string) *cobra.Command {
	topicCmd := &cobra.Command{
		Use:   "topic",
		Short: "Inspect registered topics",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every known topic and its liveness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopicList(*configPath)
		},
	}
	topicCmd.AddCommand(list)

	return topicCmd
}

func runTopicList(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	active := time.Duration(cfg.Heartbeat.ActiveThresholdSeconds) * time.Second
	idle := time.Duration(cfg.Heartbeat.IdleThresholdSeconds) * time.Second
	store, err := topic.NewFileStore(filepath.Join(cfg.DataDir, "topics.json"), active, idle)
	if err != nil {
		return err
	}

	topics, err := store.List(context.Background())
	if err != nil {
		return err
	}
	for _, t := range topics {
		fmt.Printf("%-20s enabled=%-5v status=%-8s backend=%s model=%s\n",
			t.ID, t.Enabled, t.Heartbeat.Status, t.BackendID, t.Model)
	}
	return nil
}
