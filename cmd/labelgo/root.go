package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labelgo",
	Short: "Labelgo - map label dataset tooling",
	Long: `Labelgo converts, inspects and queries map label datasets.

A dataset is the output of an offline label elimination run: every label
carries the visibility threshold at which it becomes visible while
zooming in. Datasets are stored as versioned binary cache files and
queried by bounding box and threshold.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetLogLoggerLevel(level)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
