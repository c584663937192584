// Package monitor implements the periodic per-node health check that
// schedules structural transactions when configured limits are breached.
// It is a ticker-driven loop that inspects a node's KidSet and fires off
// work without ever blocking its own tick: every transaction it starts
// runs on its own goroutine.
package monitor

import (
	"sync"
	"time"

	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/txn/structural"
	"github.com/datatree/datatree/internal/wire"
)

// Monitor runs CheckLimits on one DataNode at the node's configured tick
// interval, until Stop is called.
type Monitor struct {
	n *node.DataNode

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}

	mu             sync.Mutex
	lastSummary    wire.KidSummary
	hasLastSummary bool
	mergeTimers    map[pairKey]time.Time
	proxySince     time.Time
	hasProxySince  bool
	inFlight       map[string]bool // dedupe key -> in flight, so a slow transaction isn't re-scheduled every tick
}

type pairKey struct {
	left, right id.NodeID
}

// New constructs a Monitor for n. Call Start to begin ticking.
func New(n *node.DataNode) *Monitor {
	return &Monitor{
		n:           n,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		mergeTimers: make(map[pairKey]time.Time),
		inFlight:    make(map[string]bool),
	}
}

// Start begins the tick loop on its own goroutine.
func (m *Monitor) Start() {
	m.ticker = time.NewTicker(m.n.NodeConfig().TickInterval())
	go m.loop()
}

// Stop halts the tick loop. Idempotent is not required: call once.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) loop() {
	defer close(m.done)
	defer m.ticker.Stop()
	for {
		select {
		case <-m.ticker.C:
			m.tick()
		case <-m.stop:
			return
		}
	}
}

// tick runs the four health-check steps, in order. It never blocks: every
// transaction it schedules runs on its own goroutine, since
// txn.StartOriginator holds the node's structural gate for the whole
// transaction's duration.
func (m *Monitor) tick() {
	m.emitSummaryIfChanged()
	m.checkLowCapacity()
	m.checkMergeablePairs()
	m.checkConsumableProxy()
}

func (m *Monitor) emitSummaryIfChanged() {
	summary := m.n.Summary()

	m.mu.Lock()
	changed := !m.hasLastSummary || summary != m.lastSummary
	m.mu.Unlock()

	if m.n.Height() != 1 && !changed {
		return
	}

	parent, hasParent := m.n.Parent()
	if !hasParent {
		return
	}
	if err := m.n.Transport().Send(parent, wire.Envelope{Kind: wire.KindKidSummary, From: wire.RoleHandle{Node: m.n.ID()}, Payload: summary}); err != nil {
		obslog.Event("monitor", "kid_summary send failed", "node", m.n.ID(), "err", err)
	}

	m.mu.Lock()
	m.lastSummary = summary
	m.hasLastSummary = true
	m.mu.Unlock()
}

func (m *Monitor) checkLowCapacity() {
	if !m.n.LowCapacity() {
		return
	}

	if m.n.KidCount() < m.n.NodeConfig().DataNodeKidsLimit {
		kid, ok := m.n.MostLoadedKid()
		if !ok {
			return
		}
		kidID := kid.ID
		m.scheduleOnce("split:"+string(kidID), func() {
			if _, err := txn.StartOriginator(m.n, "SplitKid", structural.SplitKidArgs{KidID: kidID}); err != nil {
				obslog.Event("monitor", "SplitKid failed", "node", m.n.ID(), "err", err)
			}
		})
		return
	}

	if _, hasParent := m.n.Parent(); !hasParent {
		m.scheduleOnce("bump", func() {
			if _, err := txn.StartOriginator(m.n, "BumpHeight", struct{}{}); err != nil {
				obslog.Event("monitor", "BumpHeight failed", "node", m.n.ID(), "err", err)
			}
		})
		return
	}

	obslog.Event("monitor", "low capacity but kids at limit on a non-root node", "node", m.n.ID())
}

func (m *Monitor) checkMergeablePairs() {
	pairs := m.n.AdjacentPairs()
	present := make(map[pairKey]bool, len(pairs))

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range pairs {
		key := pairKey{left: p[0], right: p[1]}
		if !m.n.KidsAreMergeable(p[0], p[1]) {
			delete(m.mergeTimers, key)
			continue
		}
		present[key] = true
		started, ok := m.mergeTimers[key]
		if !ok {
			m.mergeTimers[key] = time.Now()
			continue
		}
		if time.Since(started) < m.n.NodeConfig().MergeWait() {
			continue
		}
		delete(m.mergeTimers, key)
		left, right := p[0], p[1]
		m.scheduleOnceLocked("merge:"+string(left)+":"+string(right), func() {
			if _, err := txn.StartOriginator(m.n, "MergeKids", structural.MergeKidsArgs{LeftID: left, RightID: right}); err != nil {
				obslog.Event("monitor", "MergeKids failed", "node", m.n.ID(), "err", err)
			}
		})
	}

	for key := range m.mergeTimers {
		if !present[key] {
			delete(m.mergeTimers, key)
		}
	}
}

func (m *Monitor) checkConsumableProxy() {
	if _, hasParent := m.n.Parent(); hasParent {
		return
	}
	_, hasProxy := m.n.Proxy()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !hasProxy {
		m.hasProxySince = false
		return
	}
	if !m.hasProxySince {
		m.proxySince = time.Now()
		m.hasProxySince = true
		return
	}
	if time.Since(m.proxySince) < m.n.NodeConfig().ConsumeProxyWait() {
		return
	}
	m.hasProxySince = false
	m.scheduleOnceLocked("consume-proxy", func() {
		if _, err := txn.StartOriginator(m.n, "ConsumeProxy", struct{}{}); err != nil {
			obslog.Event("monitor", "ConsumeProxy failed", "node", m.n.ID(), "err", err)
		}
	})
}

// scheduleOnce runs fn on its own goroutine unless a transaction under the
// same dedupe key is already in flight, so a slow structural transaction
// is not re-fired on every subsequent tick.
func (m *Monitor) scheduleOnce(key string, fn func()) {
	m.mu.Lock()
	m.scheduleOnceLocked(key, fn)
	m.mu.Unlock()
}

func (m *Monitor) scheduleOnceLocked(key string, fn func()) {
	if m.inFlight[key] {
		return
	}
	m.inFlight[key] = true
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, key)
			m.mu.Unlock()
		}()
		fn()
	}()
}
