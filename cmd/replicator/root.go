package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:          "replicator",
	Short:        "Batch orchestrator for Airtable-driven face-swap video jobs",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}
