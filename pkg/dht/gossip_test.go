package dht

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestGossipStateRequestCountsConvergeAcrossNodes(t *testing.T) {
	peer := crypto.Hash{0x01}

	nodeA := NewGossipState("node-a")
	nodeB := NewGossipState("node-b")

	nodeA.RecordServed(peer)
	nodeA.RecordServed(peer)
	nodeB.RecordServed(peer)

	snapA, err := nodeA.Export()
	require.NoError(t, err)
	snapB, err := nodeB.Export()
	require.NoError(t, err)

	require.NoError(t, nodeA.Merge(snapB))
	require.NoError(t, nodeB.Merge(snapA))

	require.Equal(t, int64(3), nodeA.RequestsServed(peer))
	require.Equal(t, int64(3), nodeB.RequestsServed(peer))
}

func TestGossipStateMergeIsIdempotent(t *testing.T) {
	peer := crypto.Hash{0x02}

	node := NewGossipState("node-a")
	node.RecordServed(peer)

	other := NewGossipState("node-b")
	other.RecordServed(peer)
	other.RecordServed(peer)

	snap, err := other.Export()
	require.NoError(t, err)

	require.NoError(t, node.Merge(snap))
	first := node.RequestsServed(peer)

	require.NoError(t, node.Merge(snap))
	require.Equal(t, first, node.RequestsServed(peer))
}

func TestGossipStateKnownPeersConvergeAfterForgetAndReobserve(t *testing.T) {
	peer := crypto.Hash{0x03}
	info := PeerInfo{NodeID: peer, Address: "10.0.0.1:9000"}

	nodeA := NewGossipState("node-a")
	nodeA.Observe(peer, info)

	nodeB := NewGossipState("node-b")
	nodeB.Observe(peer, info)
	nodeB.Forget(peer)

	snapA, err := nodeA.Export()
	require.NoError(t, err)
	snapB, err := nodeB.Export()
	require.NoError(t, err)

	require.NoError(t, nodeA.Merge(snapB))
	require.NoError(t, nodeB.Merge(snapA))

	// nodeA's Add tag was never observed as removed by nodeB, and
	// ORSet add-wins means the element is still visible after merge.
	require.Contains(t, nodeA.KnownPeers(), peer)
	require.Contains(t, nodeB.KnownPeers(), peer)
}

func TestGossipStatePeerMetadataSurvivesSnapshotRoundTrip(t *testing.T) {
	peer := crypto.Hash{0x04}
	info := PeerInfo{NodeID: peer, Address: "192.168.1.5:4000", PublicKey: crypto.PQSigPubKey{0xAA, 0xBB}}

	source := NewGossipState("node-a")
	source.Observe(peer, info)

	snap, err := source.Export()
	require.NoError(t, err)

	dest := NewGossipState("node-b")
	require.NoError(t, dest.Merge(snap))

	got, ok := dest.PeerMetadata(peer)
	require.True(t, ok)
	require.Equal(t, info.Address, got.Address)
	require.Equal(t, info.NodeID, got.NodeID)
	require.Equal(t, info.PublicKey, got.PublicKey)
}

func TestGossipStateUnknownPeerReportsZeroRequests(t *testing.T) {
	node := NewGossipState("node-a")
	require.Equal(t, int64(0), node.RequestsServed(crypto.Hash{0xFF}))
}
