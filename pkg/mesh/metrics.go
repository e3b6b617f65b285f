package mesh

import (
	"sync"
	"time"
)

// SnapshotInterval is how often the mesh router folds its live
// counters into a retained metrics snapshot.
const SnapshotInterval = 60 * time.Second

// MetricsSnapshot is one point-in-time summary of the mesh's health.
type MetricsSnapshot struct {
	Taken          time.Time
	ConnectedPeers int
	BannedPeers    int
	OpenAlerts     int
}

// MetricsHistory retains a bounded sequence of snapshots.
type MetricsHistory struct {
	mu       sync.Mutex
	cap      int
	snapshots []MetricsSnapshot
}

// NewMetricsHistory creates a history retaining up to capacity
// snapshots, oldest dropped first.
func NewMetricsHistory(capacity int) *MetricsHistory {
	return &MetricsHistory{cap: capacity}
}

// Record appends snap, dropping the oldest entry if at capacity.
func (h *MetricsHistory) Record(snap MetricsSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshots = append(h.snapshots, snap)
	if len(h.snapshots) > h.cap {
		h.snapshots = h.snapshots[len(h.snapshots)-h.cap:]
	}
}

// Latest returns the most recent snapshot, if any.
func (h *MetricsHistory) Latest() (MetricsSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) == 0 {
		return MetricsSnapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// All returns a copy of every retained snapshot, oldest first.
func (h *MetricsHistory) All() []MetricsSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MetricsSnapshot, len(h.snapshots))
	copy(out, h.snapshots)
	return out
}

// Snapshot builds a MetricsSnapshot from the router's live registry
// and alert engine state, the way a periodic ticker calls this every
// SnapshotInterval.
func Snapshot(registry *PeerRegistry, alerts *AlertEngine, now time.Time) MetricsSnapshot {
	peers := registry.All()
	connected, banned := 0, 0
	for _, p := range peers {
		if p.Banned {
			banned++
		} else {
			connected++
		}
	}
	return MetricsSnapshot{
		Taken:          now,
		ConnectedPeers: connected,
		BannedPeers:    banned,
		OpenAlerts:     len(alerts.Open()),
	}
}
