package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/txn/structural"
	"github.com/datatree/datatree/internal/wire"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type recordingTransport struct {
	mu    sync.Mutex
	nodes map[id.NodeID]*node.DataNode
	sent  []wire.Envelope
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{nodes: make(map[id.NodeID]*node.DataNode)}
}

func (t *recordingTransport) register(n *node.DataNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.ID()] = n
}

func (t *recordingTransport) Send(to id.Handle, env wire.Envelope) error {
	t.mu.Lock()
	t.sent = append(t.sent, env)
	n, ok := t.nodes[to.Node]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	n.Deliver(env.From.Node, env)
	return nil
}

func (t *recordingTransport) sentCount(kind wire.Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.sent {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type harnessMC struct {
	transport *recordingTransport
	reg       *txn.Registry
}

func (m *harnessMC) Spawn(cfg txn.SpawnConfig) (id.NodeID, error) {
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
		Rand:      fixedRand{0.5},
	})
	m.transport.register(n)
	return n.ID(), nil
}

func (m *harnessMC) Terminate(id.NodeID) error { return nil }
func (m *harnessMC) Random() float64           { return 0.5 }

func newHarnessNode(tr *recordingTransport, reg *txn.Registry, height int, iv key.Interval, cfg dnconfig.NodeConfig) *node.DataNode {
	n := node.New(node.Config{
		ID:        id.NewNodeID(),
		Height:    height,
		Interval:  iv,
		Transport: tr,
		MC:        &harnessMC{transport: tr, reg: reg},
		Registry:  reg,
		ProgCfg:   dnconfig.ProgramConfig{DatasetName: "test"},
		NodeCfg:   cfg,
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

func TestEmitSummaryIfChanged(t *testing.T) {
	tr := newRecordingTransport()
	reg := txn.NewRegistry()
	parent := newHarnessNode(tr, reg, 2, key.Interval{Lo: key.Min, Hi: key.Max}, dnconfig.Default())
	defer parent.Kill()

	child := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Max}, dnconfig.Default())
	defer child.Kill()
	child.SetParent(id.NewHandle(parent.ID()))

	m := New(child)

	m.tick()
	m.tick()
	if got := tr.sentCount(wire.KindKidSummary); got != 2 {
		t.Fatalf("height==1 node should emit kid_summary every tick regardless of change, got %d sends", got)
	}

	child.SetHeight(2)
	tr.mu.Lock()
	tr.sent = nil
	tr.mu.Unlock()
	m2 := New(child)
	m2.tick()
	m2.tick()
	if got := tr.sentCount(wire.KindKidSummary); got != 1 {
		t.Fatalf("unchanged non-height-1 node should only emit once, got %d sends", got)
	}
}

func TestMergeablePairEventuallySchedulesMerge(t *testing.T) {
	tr := newRecordingTransport()
	reg := txn.NewRegistry()
	structural.Register(reg)

	cfg := dnconfig.Default()
	cfg.TimeToWaitBeforeKidMergeMS = 1
	root := newHarnessNode(tr, reg, 2, key.Interval{Lo: key.Min, Hi: key.Max}, cfg)
	defer root.Kill()

	left := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Of(0.5)}, cfg)
	defer left.Kill()
	right := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Of(0.5), Hi: key.Max}, cfg)
	defer right.Kill()

	if err := root.AddKid(left.ID(), id.NewHandle(left.ID()), left.Interval()); err != nil {
		t.Fatal(err)
	}
	if err := root.AddKid(right.ID(), id.NewHandle(right.ID()), right.Interval()); err != nil {
		t.Fatal(err)
	}
	smallSummary := wire.KidSummary{Height: 1, Size: 1, CapacityLimit: cfg.DataNodeKidsLimit}
	if err := root.SetKidSummary(left.ID(), smallSummary); err != nil {
		t.Fatal(err)
	}
	if err := root.SetKidSummary(right.ID(), smallSummary); err != nil {
		t.Fatal(err)
	}

	m := New(root)
	waitFor(t, func() bool {
		m.tick()
		return root.KidCount() == 1
	})
}

func TestLowCapacityOnRootSchedulesBumpHeight(t *testing.T) {
	tr := newRecordingTransport()
	reg := txn.NewRegistry()
	structural.Register(reg)

	cfg := dnconfig.Default()
	cfg.DataNodeKidsLimit = 1
	root := newHarnessNode(tr, reg, 1, key.Interval{Lo: key.Min, Hi: key.Max}, cfg)
	defer root.Kill()

	if _, err := txn.StartOriginator(root, "SpawnKid", structural.SpawnKidArgs{Force: true}); err != nil {
		t.Fatalf("SpawnKid: %v", err)
	}
	waitFor(t, func() bool { return root.KidCount() == 1 })

	m := New(root)
	waitFor(t, func() bool {
		m.tick()
		return root.Height() == 2
	})
}
