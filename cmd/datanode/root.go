package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datatree/datatree/internal/obslog"
)

var rootCmd = &cobra.Command{
	Use:   "datanode",
	Short: "Single-process simulator for the dataset control plane",
	Long: `datanode drives a simulated, single-process dataset tree.

It wires internal/simctl's in-memory machine controller and transport
against the real transaction runtime, so the control plane can be
exercised end-to-end without a cluster.

  datanode simulate     Run the end-to-end tree-growth scenario and print get_stats
  datanode inspect       Build a small tree and render it
  datanode run           Run one dataset tree indefinitely, ticking its monitors`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Uint64("seed", 1, "random seed for the simulated machine controller")
	rootCmd.PersistentFlags().String("log", "", "path to write a verbose obslog trace (disabled if empty)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logPath, _ := cmd.Flags().GetString("log")
		if logPath == "" {
			return nil
		}
		if err := obslog.Init(logPath); err != nil {
			return fmt.Errorf("initializing obslog: %w", err)
		}
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer obslog.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
