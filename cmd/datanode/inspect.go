package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/simctl"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/txn/structural"
)

var (
	nodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa"))
	leafStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	intervalDim = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Build a small dataset tree and render it",
	Long: `inspect builds a small dataset (a root plus a handful of leaves) and
pretty-prints its shape. There is no cross-process attach mechanism here —
persistence and IPC are out of scope — so this renders a tree built fresh
for the purpose rather than one from a separate running process.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Int("leaves", 4, "number of leaves to add before rendering")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	seed, _ := cmd.Flags().GetUint64("seed")
	nLeaves, _ := cmd.Flags().GetInt("leaves")

	cfg := dnconfig.Default()
	cfg.DataNodeKidsLimit = 3
	cfg.KidSummaryIntervalMS = 50

	cluster := simctl.New(newRegistry(), seed)
	defer cluster.KillAll()

	root := cluster.NewRoot(2, dnconfig.ProgramConfig{DatasetName: "inspect"}, cfg)
	if _, err := txn.StartOriginator(root, "NewDataset", structural.NewDatasetArgs{}); err != nil {
		return fmt.Errorf("NewDataset: %w", err)
	}
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < nLeaves; i++ {
		leaf := cluster.NewUnownedLeaf(root.ProgramConfig(), cfg)
		parentToBe := descendToLeafParent(cluster, root)
		if _, err := txn.StartOriginator(leaf, "AddLeaf", structural.AddLeafArgs{ParentToBe: parentToBe.ID()}); err != nil {
			return fmt.Errorf("AddLeaf #%d: %w", i, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	fmt.Println(renderTree(cluster, root, 0))
	return nil
}

func renderTree(cluster *simctl.Cluster, n *node.DataNode, depth int) string {
	indent := strings.Repeat("  ", depth)
	iv := n.Interval()
	label := fmt.Sprintf("%s%s %s", indent, nodeStyle.Render(cluster.Label(n.ID())), intervalDim.Render(iv.String()))

	var b strings.Builder
	b.WriteString(label)
	b.WriteString("\n")

	kids := n.Kids()
	for _, k := range kids {
		child, ok := cluster.Get(k.ID)
		if !ok {
			b.WriteString(fmt.Sprintf("%s  %s %s\n", indent, leafStyle.Render(cluster.Label(k.ID)), intervalDim.Render(k.Interval.String())))
			continue
		}
		b.WriteString(renderTree(cluster, child, depth+1))
	}
	return b.String()
}
