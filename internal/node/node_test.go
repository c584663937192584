package node

import (
	"testing"
	"time"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type noopTransport struct{}

func (noopTransport) Send(id.Handle, wire.Envelope) error { return nil }

type noopMC struct{}

func (noopMC) Spawn(txn.SpawnConfig) (id.NodeID, error) { return id.NewNodeID(), nil }
func (noopMC) Terminate(id.NodeID) error                { return nil }
func (noopMC) Random() float64                          { return 0.5 }

func newTestNode(reg *txn.Registry) *DataNode {
	return New(Config{
		ID:       id.NewNodeID(),
		Height:   1,
		Interval: key.Interval{Lo: key.Min, Hi: key.Max},
		Transport: noopTransport{},
		MC:        noopMC{},
		Registry:  reg,
		ProgCfg:   dnconfig.ProgramConfig{DatasetName: "test"},
		NodeCfg:   dnconfig.Default(),
		Rand:      fixedRand{0.5},
	})
}

func TestKidSummaryUpdatesCache(t *testing.T) {
	n := newTestNode(txn.NewRegistry())
	defer n.Kill()

	kidID := id.NewNodeID()
	if err := n.AddKid(kidID, id.NewHandle(kidID), key.Interval{Lo: key.Min, Hi: key.Max}); err != nil {
		t.Fatalf("AddKid: %v", err)
	}

	n.Deliver(kidID, wire.Envelope{Kind: wire.KindKidSummary, Payload: wire.KidSummary{Height: 0, Size: 3, CapacityLimit: 200}})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		kid, ok := n.GetKid(kidID)
		if ok && kid.HasSummary && kid.Summary.Size == 3 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("kid_summary was not applied within the deadline")
}

func TestStartParticipantRoleDispatches(t *testing.T) {
	reg := txn.NewRegistry()
	done := make(chan struct{})
	reg.Register("probe", func(r *txn.Role, args any) {
		close(done)
	})
	n := newTestNode(reg)
	defer n.Kill()

	n.Deliver(n.ID(), wire.Envelope{
		Kind: wire.KindStartParticipantRole,
		Txn:  id.NewTxnID(),
		Payload: wire.StartParticipantRoleArgs{Role: "probe"},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("probe role never ran")
	}
}

func TestGetStatsLeafVsInterior(t *testing.T) {
	leaf := newTestNode(txn.NewRegistry())
	defer leaf.Kill()
	leaf.SetHeight(0)
	st := leaf.GetStats()
	if st.NLeaves != 1 {
		t.Fatalf("expected leaf NLeaves=1, got %d", st.NLeaves)
	}

	interior := newTestNode(txn.NewRegistry())
	defer interior.Kill()
	kidID := id.NewNodeID()
	if err := interior.AddKid(kidID, id.NewHandle(kidID), key.Interval{Lo: key.Min, Hi: key.Max}); err != nil {
		t.Fatal(err)
	}
	if err := interior.SetKidSummary(kidID, wire.KidSummary{Size: 4}); err != nil {
		t.Fatal(err)
	}
	st = interior.GetStats()
	if st.NKids != 1 || st.NLeaves != 4 {
		t.Fatalf("expected NKids=1 NLeaves=4, got %+v", st)
	}
}
