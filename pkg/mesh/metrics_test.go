package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestSnapshotCountsConnectedAndBanned(t *testing.T) {
	r := NewPeerRegistry()
	a, b := crypto.Hash{1}, crypto.Hash{2}
	r.Upsert(PeerRecord{ID: a})
	r.Upsert(PeerRecord{ID: b})

	tracker := NewReputationTracker(r, ReputationWeights{ProtocolViolation: -200})
	tracker.Record(b, EventProtocolViolation)

	alerts := NewAlertEngine()
	alerts.Raise(AlertPeerChurn, nil, "churn")

	snap := Snapshot(r, alerts, time.Unix(1_700_000_000, 0))
	require.Equal(t, 1, snap.ConnectedPeers)
	require.Equal(t, 1, snap.BannedPeers)
	require.Equal(t, 1, snap.OpenAlerts)
}

func TestMetricsHistoryBounded(t *testing.T) {
	h := NewMetricsHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(MetricsSnapshot{Taken: time.Unix(int64(i), 0)})
	}

	all := h.All()
	require.Len(t, all, 3)
	require.Equal(t, time.Unix(2, 0), all[0].Taken)

	latest, ok := h.Latest()
	require.True(t, ok)
	require.Equal(t, time.Unix(4, 0), latest.Taken)
}
