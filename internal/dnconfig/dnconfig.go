// Package dnconfig holds the node-level configuration passed verbatim from
// the machine collaborator down to every data node in a dataset. It is a
// plain JSON-tagged struct rather than a flags/env framework: these are
// per-dataset values supplied once at root creation, not user preferences.
package dnconfig

import "time"

// NodeConfig holds the tunables every node in a dataset shares.
type NodeConfig struct {
	// DataNodeKidsLimit is the max kids per node before growth must occur
	// at the parent. Default 200.
	DataNodeKidsLimit int `json:"data_node_kids_limit"`
	// TotalKidCapacityTrigger is the low-capacity threshold: if the sum of
	// (kid_capacity_limit - kid.size) across all kids with known summaries
	// drops to or below this value, the monitor schedules growth. Default 5.
	TotalKidCapacityTrigger int `json:"total_kid_capacity_trigger"`
	// KidSummaryIntervalMS is both the monitor tick period and the summary
	// emission period. Default 200ms.
	KidSummaryIntervalMS int `json:"kid_summary_interval_ms"`
	// TimeToWaitBeforeKidMergeMS is how long an adjacent mergeable pair must
	// stay mergeable before MergeKids is scheduled. Default 2000ms.
	TimeToWaitBeforeKidMergeMS int `json:"time_to_wait_before_kid_merge_ms"`
	// TimeToWaitBeforeConsumeProxyMS is how long a root's sole child must
	// stay a proxy before ConsumeProxy is scheduled. Default 4000ms.
	TimeToWaitBeforeConsumeProxyMS int `json:"time_to_wait_before_consume_proxy_ms"`
}

// Default returns the baseline tunables a freshly created dataset uses.
func Default() NodeConfig {
	return NodeConfig{
		DataNodeKidsLimit:              200,
		TotalKidCapacityTrigger:        5,
		KidSummaryIntervalMS:           200,
		TimeToWaitBeforeKidMergeMS:     2000,
		TimeToWaitBeforeConsumeProxyMS: 4000,
	}
}

// TickInterval is the monitor's period as a time.Duration.
func (c NodeConfig) TickInterval() time.Duration {
	return time.Duration(c.KidSummaryIntervalMS) * time.Millisecond
}

// MergeWait is how long a mergeable pair must persist before merging.
func (c NodeConfig) MergeWait() time.Duration {
	return time.Duration(c.TimeToWaitBeforeKidMergeMS) * time.Millisecond
}

// ConsumeProxyWait is how long a root's sole child must persist before
// ConsumeProxy runs.
func (c NodeConfig) ConsumeProxyWait() time.Duration {
	return time.Duration(c.TimeToWaitBeforeConsumeProxyMS) * time.Millisecond
}

// ProgramConfig is the opaque per-dataset payload propagated verbatim to
// every newly spawned descendant. It is intentionally opaque to the core:
// higher layers stash whatever dataset-specific settings they need here
// and the core never inspects it.
type ProgramConfig struct {
	DatasetName string            `json:"dataset_name"`
	Extra       map[string]string `json:"extra,omitempty"`
}
