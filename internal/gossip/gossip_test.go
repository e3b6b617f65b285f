package gossip

import (
	"testing"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func testPeerIDs(t *testing.T, n int) []peer.ID {
	t.Helper()
	ids := make([]peer.ID, n)
	for i := range ids {
		priv, _, err := p2pcrypto.GenerateEd25519Key(nil)
		require.NoError(t, err)
		id, err := peer.IDFromPrivateKey(priv)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestSelectRandomPeersRespectsCount(t *testing.T) {
	ids := testPeerIDs(t, 10)

	selected := selectRandomPeers(ids, 3)
	require.Len(t, selected, 3)

	seen := make(map[peer.ID]bool)
	for _, id := range selected {
		require.False(t, seen[id], "selectRandomPeers must not repeat a peer")
		seen[id] = true
	}
}

func TestSelectRandomPeersReturnsAllWhenFewerThanRequested(t *testing.T) {
	ids := testPeerIDs(t, 2)

	selected := selectRandomPeers(ids, 5)
	require.Len(t, selected, 2)
}

func TestGenerateMessageIDIsUnique(t *testing.T) {
	a := generateMessageID()
	b := generateMessageID()
	require.NotEqual(t, a, b)
	require.Len(t, a, 32) // 16 random bytes, hex-encoded
}
