package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashOrdering(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestHashRoundTrip(t *testing.T) {
	h := SumHash([]byte("hello"), []byte("world"))
	back, err := HashFromBytes(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, back)
}

func TestSumHashDeterministic(t *testing.T) {
	a := SumHash([]byte("abc"))
	b := SumHash([]byte("abc"))
	require.Equal(t, a, b)

	c := SumHash([]byte("abd"))
	require.NotEqual(t, a, c)
}

func TestKeyedMACConstantTimeCompare(t *testing.T) {
	key := []byte("session-key-material-32-bytes!!!")
	data := []byte("request payload")

	mac1 := KeyedMAC(key, data)
	mac2 := KeyedMAC(key, data)
	require.True(t, VerifyMAC(mac1, mac2))

	tampered := KeyedMAC(key, []byte("request payloaD"))
	require.False(t, VerifyMAC(mac1, tampered))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("block proposal payload")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	require.True(t, Verify(kp.PublicKey(), msg, sig))
	require.False(t, Verify(kp.PublicKey(), []byte("tampered"), sig))
}

func TestNodeIDBindsToPublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	require.Equal(t, kp.NodeID(), NodeIDFromPublicKey(kp.PublicKey()))
}
