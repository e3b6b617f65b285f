package dht

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestRoutingTableUpsertAndClosest(t *testing.T) {
	self := crypto.Hash{0x00}
	rt := NewRoutingTable(self)

	for i := 1; i <= 5; i++ {
		id := crypto.Hash{}
		id[0] = byte(i)
		rt.Upsert(PeerInfo{NodeID: id, Address: "peer"})
	}
	require.Equal(t, 5, rt.Size())

	target := crypto.Hash{0x01}
	closest := rt.Closest(target, 2)
	require.Len(t, closest, 2)
	require.Equal(t, byte(1), closest[0].NodeID[0])
}

func TestRoutingTableUpsertRefreshesExisting(t *testing.T) {
	self := crypto.Hash{0x00}
	rt := NewRoutingTable(self)
	id := crypto.Hash{0x05}

	rt.Upsert(PeerInfo{NodeID: id, Address: "old"})
	rt.Upsert(PeerInfo{NodeID: id, Address: "new"})

	require.Equal(t, 1, rt.Size())
	closest := rt.Closest(id, 1)
	require.Equal(t, "new", closest[0].Address)
}

func TestRoutingTableRemove(t *testing.T) {
	self := crypto.Hash{0x00}
	rt := NewRoutingTable(self)
	id := crypto.Hash{0x07}
	rt.Upsert(PeerInfo{NodeID: id})
	require.Equal(t, 1, rt.Size())

	rt.Remove(id)
	require.Equal(t, 0, rt.Size())
}

func TestDistanceSymmetric(t *testing.T) {
	a := crypto.Hash{0x01, 0x02}
	b := crypto.Hash{0x03, 0x04}
	require.Equal(t, Distance(a, b), Distance(b, a))
}
