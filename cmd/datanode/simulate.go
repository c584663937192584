package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/monitor"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/simctl"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/txn/structural"
	"github.com/datatree/datatree/internal/txn/subscribe"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the end-to-end tree-growth scenario and print get_stats",
	Long: `simulate spawns a single dataset root under simctl, grows it by
repeatedly adding leaves one at a time, driven entirely by the monitor's
own CheckLimits ticks rather than direct structural calls, then prints
the resulting get_stats as JSON.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Int("leaves", 27, "number of leaves to add, one at a time")
	simulateCmd.Flags().Int("kids-limit", 3, "DATA_NODE_KIDS_LIMIT")
	simulateCmd.Flags().Int("capacity-trigger", 0, "TOTAL_KID_CAPACITY_TRIGGER")
	rootCmd.AddCommand(simulateCmd)
}

func newRegistry() *txn.Registry {
	reg := txn.NewRegistry()
	structural.Register(reg)
	subscribe.Register(reg)
	return reg
}

func runSimulate(cmd *cobra.Command, args []string) error {
	seed, _ := cmd.Flags().GetUint64("seed")
	nLeaves, _ := cmd.Flags().GetInt("leaves")
	kidsLimit, _ := cmd.Flags().GetInt("kids-limit")
	capacityTrigger, _ := cmd.Flags().GetInt("capacity-trigger")

	cfg := dnconfig.Default()
	cfg.DataNodeKidsLimit = kidsLimit
	cfg.TotalKidCapacityTrigger = capacityTrigger
	cfg.KidSummaryIntervalMS = 50
	cfg.TimeToWaitBeforeKidMergeMS = 200
	cfg.TimeToWaitBeforeConsumeProxyMS = 400

	cluster := simctl.New(newRegistry(), seed)
	defer cluster.KillAll()

	root := cluster.NewRoot(2, dnconfig.ProgramConfig{DatasetName: "simulate"}, cfg)
	if _, err := txn.StartOriginator(root, "NewDataset", structural.NewDatasetArgs{}); err != nil {
		return fmt.Errorf("NewDataset: %w", err)
	}
	time.Sleep(50 * time.Millisecond)

	m := monitor.New(root)
	m.Start()
	defer m.Stop()

	for i := 0; i < nLeaves; i++ {
		leaf := cluster.NewUnownedLeaf(root.ProgramConfig(), cfg)
		parentToBe := descendToLeafParent(cluster, root)
		if _, err := txn.StartOriginator(leaf, "AddLeaf", structural.AddLeafArgs{ParentToBe: parentToBe.ID()}); err != nil {
			return fmt.Errorf("AddLeaf #%d: %w", i, err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	stats := root.GetStats()
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// descendToLeafParent walks down from n via its most-loaded kid until it
// reaches a height-1 node, the only shape AddLeafParent accepts — where
// to place a new leaf is a caller policy, not something AddLeaf decides.
func descendToLeafParent(cluster *simctl.Cluster, n *node.DataNode) *node.DataNode {
	for n.Height() > 1 {
		kid, ok := n.MostLoadedKid()
		if !ok {
			return n
		}
		child, ok := cluster.Get(kid.ID)
		if !ok {
			return n
		}
		n = child
	}
	return n
}
