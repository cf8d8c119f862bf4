// Command oraccore is the main entry point for the ORAC Core service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "oraccore",
		Short:         "ORAC Core — voice-command home-automation orchestration service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newGrammarCmd(&configPath))
	root.AddCommand(newCacheCmd(&configPath))
	root.AddCommand(newTopicCmd(&configPath))
	return root
}
