package dht

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/internal/security"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func newTestSealedStore(t *testing.T) *SealedStore {
	t.Helper()
	keys, err := security.NewKeyManager()
	require.NoError(t, err)

	store := NewStore(crypto.Hash{1}, DefaultReplicationPolicy())
	return NewSealedStore(store, keys)
}

func TestSealedStorePublicValueNotEncrypted(t *testing.T) {
	s := newTestSealedStore(t)
	key := crypto.Hash{2}
	plaintext := []byte("hello, public world")

	err := s.Seal(key, plaintext, nil, ZkDhtValue{AccessLevel: AccessPublic})
	require.NoError(t, err)

	got, err := s.Unseal(key, nil, nil, time.Now())
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestSealedStorePrivateValueRoundTrips(t *testing.T) {
	s := newTestSealedStore(t)
	key := crypto.Hash{3}
	plaintext := []byte("a private payload that must not ride the DHT in the clear")

	allow := func(requirements, proof []byte) bool { return true }

	err := s.Seal(key, plaintext, []byte("some metadata"), ZkDhtValue{AccessLevel: AccessPrivate})
	require.NoError(t, err)

	stored, err := s.FindValue(key, []byte("proof"), allow, time.Now())
	require.NoError(t, err)
	require.NotEqual(t, plaintext, stored.EncryptedData, "ciphertext must not equal plaintext")

	got, err := s.Unseal(key, []byte("proof"), allow, time.Now())
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestSealedStoreRejectsAccessWithoutProof(t *testing.T) {
	s := newTestSealedStore(t)
	key := crypto.Hash{4}

	deny := func(requirements, proof []byte) bool { return false }

	err := s.Seal(key, []byte("secret"), nil, ZkDhtValue{AccessLevel: AccessPrivate})
	require.NoError(t, err)

	_, err = s.Unseal(key, []byte("wrong-proof"), deny, time.Now())
	require.Error(t, err)
}
