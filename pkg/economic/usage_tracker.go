package economic

import "github.com/zhtp/zhtp/pkg/crdt"

// StorageUsageTracker accumulates a contract's net storage-byte delta
// across every replica node holding it, backed by a PNCounter: each
// replica increments on a chunk it stores and decrements on one it
// reclaims, and two trackers merge the same CRDT way pkg/dht's
// replicated values do — no single replica's count needs to be
// authoritative, and a replica that's behind never has to "win" or
// "lose" against one that's ahead.
type StorageUsageTracker struct {
	contractID string
	counter    *crdt.PNCounter
}

// NewStorageUsageTracker creates a tracker for contractID, with this
// replica identified by nodeID in the underlying PNCounter.
func NewStorageUsageTracker(contractID, nodeID string) *StorageUsageTracker {
	return &StorageUsageTracker{contractID: contractID, counter: crdt.NewPNCounter(nodeID)}
}

// RecordStored credits bytes newly written by this replica.
func (t *StorageUsageTracker) RecordStored(bytes int64) {
	t.counter.Increment(bytes)
}

// RecordReclaimed debits bytes this replica evicted or garbage-collected.
func (t *StorageUsageTracker) RecordReclaimed(bytes int64) {
	t.counter.Decrement(bytes)
}

// NetBytes returns the net storage footprint across every replica this
// tracker has merged state from.
func (t *StorageUsageTracker) NetBytes() int64 {
	return t.counter.Value().(int64)
}

// Merge reconciles this tracker with another replica's view of the same
// contract's usage.
func (t *StorageUsageTracker) Merge(other *StorageUsageTracker) error {
	return t.counter.Merge(other.counter)
}

// AsUsageMetrics reports the tracker's current net usage as
// StorageUsageMetrics for CalculateUsageBilling, attributing
// storageHours of continuous holding at that level. A net count that
// has gone negative (more reclaimed than ever recorded stored, e.g.
// from merging a replica's state before its own stores caught up)
// bills as zero rather than underflowing.
func (t *StorageUsageTracker) AsUsageMetrics(storageHours uint64) StorageUsageMetrics {
	net := t.NetBytes()
	if net < 0 {
		net = 0
	}
	return StorageUsageMetrics{
		AvgStorageUsed:  uint64(net),
		PeakStorageUsed: uint64(net),
		StorageHours:    storageHours,
	}
}
