// Package simctl is the deterministic, single-process stand-in for the
// two external collaborators the control plane depends on but never
// implements itself: a machine controller that can spawn and terminate
// nodes, and a transport that delivers envelopes between them. It is a
// mutex-protected registry of live nodes keyed by id — one map of every
// node in a simulated dataset — and is explicitly a test/demo
// collaborator: real deployments own their own transport and machine
// controller.
package simctl

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/hexid"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// Cluster is an in-memory dataset simulation: every node it ever spawns
// is registered against the same transport and the same seeded random
// source, so a fixed seed reproduces a fixed sequence of new_kid_key
// splits and merges across an entire run.
type Cluster struct {
	reg *txn.Registry

	mu     sync.RWMutex
	nodes  map[id.NodeID]*node.DataNode
	order  []id.NodeID // insertion order, for deterministic iteration
	labels map[id.NodeID]string

	randMu sync.Mutex
	rnd    *rand.Rand
}

// New constructs a Cluster whose randomness is derived from seed: the
// same seed always produces the same sequence of spawned node ids'
// internal key choices, for reproducible simulation runs.
func New(reg *txn.Registry, seed uint64) *Cluster {
	return &Cluster{
		reg:    reg,
		nodes:  make(map[id.NodeID]*node.DataNode),
		labels: make(map[id.NodeID]string),
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Float64 implements kidset.Rand and txn.MachineController's Random,
// drawing from the cluster's single seeded source so every node sampling
// a new kid key shares one reproducible stream.
func (c *Cluster) Float64() float64 {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.rnd.Float64()
}

// Random implements txn.MachineController.
func (c *Cluster) Random() float64 { return c.Float64() }

// NewRoot constructs the dataset's first node directly, bypassing
// spawn_enlist since nothing enlists a root — NewDataset is originated on
// an already-existing node, not one this machine controller creates.
func (c *Cluster) NewRoot(height int, progCfg dnconfig.ProgramConfig, nodeCfg dnconfig.NodeConfig) *node.DataNode {
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    height,
		Interval:  key.Interval{Lo: key.Min, Hi: key.Max},
		Transport: c,
		MC:        c,
		Registry:  c.reg,
		ProgCfg:   progCfg,
		NodeCfg:   nodeCfg,
		Rand:      c,
	})
	c.register(n)
	return n
}

// NewUnownedLeaf constructs a height-0 node with no parent and an empty
// interval, the shape a brand-new leaf has before it runs AddLeaf to
// admit itself into a tree.
func (c *Cluster) NewUnownedLeaf(progCfg dnconfig.ProgramConfig, nodeCfg dnconfig.NodeConfig) *node.DataNode {
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    0,
		Transport: c,
		MC:        c,
		Registry:  c.reg,
		ProgCfg:   progCfg,
		NodeCfg:   nodeCfg,
		Rand:      c,
	})
	c.register(n)
	return n
}

// Spawn implements txn.MachineController: it creates a brand-new node
// configured per cfg, wired to this same cluster, and registers it for
// delivery before returning.
func (c *Cluster) Spawn(cfg txn.SpawnConfig) (id.NodeID, error) {
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    cfg.Height,
		Interval:  cfg.Interval,
		Parent:    cfg.Parent,
		HasParent: true,
		Transport: c,
		MC:        c,
		Registry:  c.reg,
		ProgCfg:   cfg.ProgramConfig,
		NodeCfg:   cfg.NodeConfig,
		Rand:      c,
	})
	c.register(n)
	return n.ID(), nil
}

// Terminate removes a node from the cluster and stops its inbox pump.
// Nothing currently originates a terminate_node call — node retirement is
// a machine-controller concern outside the transactions this module
// implements — but the collaborator contract requires it.
func (c *Cluster) Terminate(nodeID id.NodeID) error {
	c.mu.Lock()
	n, ok := c.nodes[nodeID]
	if ok {
		delete(c.nodes, nodeID)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("simctl: terminate: unknown node %s", nodeID)
	}
	n.Kill()
	return nil
}

// Send implements txn.Transport (and node.DataNode's out-of-band
// kid_summary sends) by looking up the destination in this same process
// and delivering directly — simctl's entire reason to exist is that this
// lookup is in-memory and therefore reliable and ordered by construction.
func (c *Cluster) Send(to id.Handle, env wire.Envelope) error {
	c.mu.RLock()
	n, ok := c.nodes[to.Node]
	c.mu.RUnlock()
	if !ok {
		obslog.Event("simctl", "send to unknown node dropped", "to", to.Node, "kind", env.Kind, "type", env.Type)
		return nil
	}
	n.Deliver(env.From.Node, env)
	return nil
}

func (c *Cluster) register(n *node.DataNode) {
	c.mu.Lock()
	c.nodes[n.ID()] = n
	c.order = append(c.order, n.ID())
	c.labels[n.ID()] = hexid.New()
	c.mu.Unlock()
}

// Label returns a short, human-legible tag for nodeID — distinct from its
// full uuid — for use in simulation output and diagnostics where the
// whole id would just be noise.
func (c *Cluster) Label(nodeID id.NodeID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if l, ok := c.labels[nodeID]; ok {
		return l
	}
	return string(nodeID)
}

// Get returns the node registered under id, if any.
func (c *Cluster) Get(nodeID id.NodeID) (*node.DataNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[nodeID]
	return n, ok
}

// Nodes returns every node currently registered, in spawn order.
func (c *Cluster) Nodes() []*node.DataNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*node.DataNode, 0, len(c.order))
	for _, id := range c.order {
		if n, ok := c.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// KillAll stops every node's inbox pump, for clean test/simulation
// teardown.
func (c *Cluster) KillAll() {
	c.mu.RLock()
	nodes := make([]*node.DataNode, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, n)
	}
	c.mu.RUnlock()
	for _, n := range nodes {
		n.Kill()
	}
}
