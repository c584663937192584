package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/monitor"
	"github.com/datatree/datatree/internal/simctl"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/txn/structural"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single dataset root indefinitely, ticking its monitor",
	Long: `run spawns one dataset root and lets its Monitor tick for as long as
the process stays up, printing get_stats once a second until interrupted.
This is the long-running counterpart to simulate's one-shot scenario.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("kids-limit", dnconfig.Default().DataNodeKidsLimit, "DATA_NODE_KIDS_LIMIT")
	runCmd.Flags().Int("capacity-trigger", dnconfig.Default().TotalKidCapacityTrigger, "TOTAL_KID_CAPACITY_TRIGGER")
	runCmd.Flags().Int("height", 2, "initial root height")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	seed, _ := cmd.Flags().GetUint64("seed")
	kidsLimit, _ := cmd.Flags().GetInt("kids-limit")
	capacityTrigger, _ := cmd.Flags().GetInt("capacity-trigger")
	height, _ := cmd.Flags().GetInt("height")

	cfg := dnconfig.Default()
	cfg.DataNodeKidsLimit = kidsLimit
	cfg.TotalKidCapacityTrigger = capacityTrigger

	cluster := simctl.New(newRegistry(), seed)
	defer cluster.KillAll()

	root := cluster.NewRoot(height, dnconfig.ProgramConfig{DatasetName: "run"}, cfg)
	if _, err := txn.StartOriginator(root, "NewDataset", structural.NewDatasetArgs{}); err != nil {
		return fmt.Errorf("NewDataset: %w", err)
	}

	m := monitor.New(root)
	m.Start()
	defer m.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			out, err := json.Marshal(root.GetStats())
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		case <-sigCh:
			return nil
		}
	}
}
