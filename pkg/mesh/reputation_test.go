package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestReputationBansBelowMinScore(t *testing.T) {
	r := NewPeerRegistry()
	id := crypto.Hash{0x09}
	r.Upsert(PeerRecord{ID: id})

	tracker := NewReputationTracker(r, DefaultReputationWeights())
	for i := 0; i < 25; i++ {
		_, err := tracker.Record(id, EventProtocolViolation)
		require.NoError(t, err)
	}

	rec, _ := r.Get(id)
	require.True(t, rec.Banned)
	require.Less(t, rec.Reputation, MinPeerScore)
}

func TestReputationIgnoresEventsAfterBan(t *testing.T) {
	r := NewPeerRegistry()
	id := crypto.Hash{0x0a}
	r.Upsert(PeerRecord{ID: id})

	tracker := NewReputationTracker(r, ReputationWeights{ProtocolViolation: -200})
	tracker.Record(id, EventProtocolViolation)

	recBefore, _ := r.Get(id)
	tracker.Record(id, EventAccept)
	recAfter, _ := r.Get(id)

	require.Equal(t, recBefore.Reputation, recAfter.Reputation)
}

func TestReputationUnknownPeerErrors(t *testing.T) {
	r := NewPeerRegistry()
	tracker := NewReputationTracker(r, DefaultReputationWeights())

	_, err := tracker.Record(crypto.Hash{0xFF}, EventAccept)
	require.Error(t, err)
}
