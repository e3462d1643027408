// Package main provides the calotruth CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "calotruth",
		Short: "calotruth - calorimeter Monte-Carlo truth builder",
		Long: `calotruth rebuilds the particle decay chain of simulated events and
produces the calorimeter truth used to score reconstruction:

  • SimClusters: the hits of one simulated particle with per-cell energy fractions
  • CaloParticles: a primary particle and the clusters of its whole decay tree
  • Signal and pileup bunch crossings, with a configurable crossing window
  • Persistent storage of finalized events and fingerprint verification`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Configuration file (calotruth.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, console)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calotruth v%s (%s)\n", version, commit)
		},
	})

	// Init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a data directory with a default configuration",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	rootCmd.AddCommand(initCmd)

	// Run command
	runCmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Build calorimeter truth for every event in the input files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	addStoreFlags(runCmd)
	runCmd.Flags().Int("workers", 0, "Files decoded concurrently (default from config)")
	runCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file when done")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored events",
		RunE:  runList,
	}
	addStoreFlags(listCmd)
	rootCmd.AddCommand(listCmd)

	// Show command
	showCmd := &cobra.Command{
		Use:   "show [event]",
		Short: "Print a stored event as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	addStoreFlags(showCmd)
	showCmd.Flags().Bool("summary", false, "Print only the event summary")
	rootCmd.AddCommand(showCmd)

	// Dot command
	dotCmd := &cobra.Command{
		Use:   "dot [file]",
		Short: "Write the decay graphs of one event in Graphviz DOT format",
		Args:  cobra.ExactArgs(1),
		RunE:  runDot,
	}
	dotCmd.Flags().Uint64("event", 0, "Event id (default: first event in the file)")
	dotCmd.Flags().String("out", "", "Output file (default: stdout)")
	rootCmd.AddCommand(dotCmd)

	// Verify command
	verifyCmd := &cobra.Command{
		Use:   "verify [files...]",
		Short: "Process every event twice and compare fingerprints",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("data-dir", "", "Also compare with events stored in this data directory")
	rootCmd.AddCommand(verifyCmd)

	return rootCmd
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Data directory (default from config)")
	cmd.Flags().Bool("in-memory", false, "Keep outputs in memory only")
}
