package structural

import (
	"sync"
	"testing"
	"time"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// testTransport routes Send calls to whichever node.DataNode is currently
// registered for the target id, mirroring how a real in-process transport
// (e.g. the simulator) would dispatch between DataNode.Deliver calls.
type testTransport struct {
	mu    sync.Mutex
	nodes map[id.NodeID]*node.DataNode
}

func newTestTransport() *testTransport {
	return &testTransport{nodes: make(map[id.NodeID]*node.DataNode)}
}

func (t *testTransport) register(n *node.DataNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.ID()] = n
}

func (t *testTransport) Send(to id.Handle, env wire.Envelope) error {
	t.mu.Lock()
	n, ok := t.nodes[to.Node]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	n.Deliver(env.From.Node, env)
	return nil
}

// testMC spawns real DataNodes registered against the shared transport,
// standing in for whatever process-level machine controller a production
// deployment would supply.
type testMC struct {
	transport *testTransport
	reg       *txn.Registry
	rand      func() float64
}

func (m *testMC) Spawn(cfg txn.SpawnConfig) (id.NodeID, error) {
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    cfg.Height,
		Interval:  cfg.Interval,
		Parent:    cfg.Parent,
		HasParent: true,
		Transport: m.transport,
		MC:        m,
		Registry:  m.reg,
		ProgCfg:   cfg.ProgramConfig,
		NodeCfg:   cfg.NodeConfig,
		Rand:      fixedRand{m.rand()},
	})
	m.transport.register(n)
	return n.ID(), nil
}

func (m *testMC) Terminate(id.NodeID) error { return nil }
func (m *testMC) Random() float64           { return m.rand() }

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func newHarness() (*testTransport, *txn.Registry) {
	reg := txn.NewRegistry()
	Register(reg)
	return newTestTransport(), reg
}

func newHarnessNode(tr *testTransport, reg *txn.Registry, height int, iv key.Interval) *node.DataNode {
	mc := &testMC{transport: tr, reg: reg, rand: func() float64 { return 0.5 }}
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    height,
		Interval:  iv,
		Transport: tr,
		MC:        mc,
		Registry:  reg,
		ProgCfg:   dnconfig.ProgramConfig{DatasetName: "test"},
		NodeCfg:   dnconfig.Default(),
		Rand:      fixedRand{0.5},
	})
	tr.register(n)
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestNewDatasetHeightZeroStaysChildless(t *testing.T) {
	tr, reg := newHarness()
	root := newHarnessNode(tr, reg, 0, key.Interval{})
	defer root.Kill()

	if _, err := txn.StartOriginator(root, "NewDataset", NewDatasetArgs{}); err != nil {
		t.Fatalf("StartOriginator: %v", err)
	}
	iv := root.Interval()
	if !iv.Lo.IsMin() || !iv.Hi.IsMax() {
		t.Fatalf("expected root interval [Min, Max], got %s", iv)
	}
	if root.KidCount() != 0 {
		t.Fatalf("expected a height-0 root to stay childless, got %d kids", root.KidCount())
	}
}

func TestNewDatasetTallRootSpawnsInitialKid(t *testing.T) {
	tr, reg := newHarness()
	root := newHarnessNode(tr, reg, 2, key.Interval{})
	defer root.Kill()

	if _, err := txn.StartOriginator(root, "NewDataset", NewDatasetArgs{}); err != nil {
		t.Fatalf("StartOriginator: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 1 })
}

func TestSpawnKidAddsChild(t *testing.T) {
	tr, reg := newHarness()
	root := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Max})
	defer root.Kill()

	if _, err := txn.StartOriginator(root, "SpawnKid", SpawnKidArgs{Force: true}); err != nil {
		t.Fatalf("StartOriginator: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 1 })

	kids := root.Kids()
	kid, ok := root.GetKid(kids[0].ID)
	if !ok || !kid.HasSummary {
		t.Fatalf("expected the new kid to have reported a summary")
	}
}

func TestSplitKidThenMergeKidsRestoresSingleChild(t *testing.T) {
	tr, reg := newHarness()
	root := newHarnessNode(tr, reg, 2, key.Interval{Lo: key.Min, Hi: key.Max})
	defer root.Kill()

	if _, err := txn.StartOriginator(root, "SpawnKid", SpawnKidArgs{Force: true}); err != nil {
		t.Fatalf("SpawnKid: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 1 })
	kidID := root.Kids()[0].ID

	if _, err := txn.StartOriginator(root, "SplitKid", SplitKidArgs{KidID: kidID}); err != nil {
		t.Fatalf("SplitKid: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 2 })

	kids := root.Kids()
	left, right := kids[0].ID, kids[1].ID

	if _, err := txn.StartOriginator(root, "MergeKids", MergeKidsArgs{LeftID: left, RightID: right}); err != nil {
		t.Fatalf("MergeKids: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 1 })

	merged := root.Kids()[0]
	if merged.ID != right {
		t.Fatalf("expected the surviving kid to be the absorber %s, got %s", right, merged.ID)
	}
	if !merged.Interval.Lo.IsMin() {
		t.Fatalf("expected the merged kid's interval to grow back to Lo=Min, got %s", merged.Interval)
	}
	_ = left
}

func TestAddLeafAdmitsNewLeaf(t *testing.T) {
	tr, reg := newHarness()
	parent := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Max})
	defer parent.Kill()

	leaf := newHarnessNode(tr, reg, 0, key.Interval{})
	defer leaf.Kill()

	if _, err := txn.StartOriginator(leaf, "AddLeaf", AddLeafArgs{ParentToBe: parent.ID()}); err != nil {
		t.Fatalf("StartOriginator: %v", err)
	}
	waitFor(t, func() bool { return parent.KidCount() == 1 })

	kid, ok := parent.GetKid(leaf.ID())
	if !ok {
		t.Fatalf("expected parent to have admitted the leaf")
	}
	if !kid.Interval.Hi.IsMax() {
		t.Fatalf("expected the admitted leaf's Hi to be Max, got %s", kid.Interval.Hi)
	}
	waitFor(t, func() bool {
		p, has := leaf.Parent()
		return has && p.Node == parent.ID()
	})
}

func TestBumpHeightThenConsumeProxyRestoresHeight(t *testing.T) {
	tr, reg := newHarness()

	// Force BumpHeight's precondition directly rather than growing kids to
	// the configured limit, since DataNodeKidsLimit defaults to 200.
	small := dnconfig.Default()
	small.DataNodeKidsLimit = 1
	root2 := newHarnessNodeWithConfig(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Max}, small)
	defer root2.Kill()

	if _, err := txn.StartOriginator(root2, "SpawnKid", SpawnKidArgs{Force: true}); err != nil {
		t.Fatalf("SpawnKid: %v", err)
	}
	waitFor(t, func() bool { return root2.KidCount() == 1 })

	if _, err := txn.StartOriginator(root2, "BumpHeight", struct{}{}); err != nil {
		t.Fatalf("BumpHeight: %v", err)
	}
	waitFor(t, func() bool { return root2.Height() == 2 })
	waitFor(t, func() bool { return root2.KidCount() >= 1 })

	proxy, ok := root2.Proxy()
	if !ok {
		// BumpHeight's inline SplitKid may already have split the proxy,
		// leaving the root with two kids; either outcome is a valid
		// post-condition here.
		return
	}
	if _, err := txn.StartOriginator(root2, "ConsumeProxy", struct{}{}); err != nil {
		t.Fatalf("ConsumeProxy: %v", err)
	}
	waitFor(t, func() bool { return root2.Height() == 1 })
	_ = proxy
}

func newHarnessNodeWithConfig(tr *testTransport, reg *txn.Registry, height int, iv key.Interval, cfg dnconfig.NodeConfig) *node.DataNode {
	mc := &testMC{transport: tr, reg: reg, rand: func() float64 { return 0.5 }}
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    height,
		Interval:  iv,
		Transport: tr,
		MC:        mc,
		Registry:  reg,
		ProgCfg:   dnconfig.ProgramConfig{DatasetName: "test"},
		NodeCfg:   cfg,
		Rand:      fixedRand{0.5},
	})
	tr.register(n)
	return n
}
