package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestVerifyAcceptsCorrectlyBoundIdentity(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	id := New(kp.PublicKey(), "did:zhtp:abc", "device-1")
	require.NoError(t, Verify(id))
}

func TestVerifyRejectsMismatchedNodeID(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	id := New(kp.PublicKey(), "did:zhtp:abc", "device-1")
	id.NodeID = crypto.Hash{0xFF} // tampered

	require.Error(t, Verify(id))
}

func TestVerifyRejectsEmptyPublicKey(t *testing.T) {
	id := Identity{NodeID: crypto.Hash{0x01}, DID: "did:zhtp:x"}
	require.Error(t, Verify(id))
}
