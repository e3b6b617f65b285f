package tests

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhtp/zhtp/internal/cas"
	"github.com/zhtp/zhtp/internal/consensus"
	"github.com/zhtp/zhtp/internal/gossip"
	"github.com/zhtp/zhtp/internal/security"
	"github.com/zhtp/zhtp/internal/storage"
	"github.com/zhtp/zhtp/pkg/config"
	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/dht"
)

// TestStorageAndConsensusIntegration wires a badger store and a
// single-validator consensus engine together the way cmd/zhtpd does,
// and drives one full height to commit.
func TestStorageAndConsensusIntegration(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir() + "/storage"

	store, err := storage.NewBadgerStore(cfg.Storage.Path, cfg.Storage.CacheSize, cfg.Storage.Sync)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), []byte("k"), []byte("v")))
	got, err := store.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	self := kp.NodeID()

	validators := consensus.NewValidatorSet([]consensus.Validator{
		{NodeID: self, PublicKey: kp.PublicKey(), VotingPower: 1},
	})
	engine := consensus.NewEngine(consensus.Context{
		Validators: validators,
		Self:       self,
	})
	require.NoError(t, engine.SetIdentity(kp))

	committed := driveToCommit(t, engine, consensus.StartRound{Height: 1, Trigger: "height_advance"})
	require.NotNil(t, committed, "a lone validator's own prevote/precommit should reach quorum on its own proposal")
	assert.Equal(t, uint64(1), committed.Height)
}

// driveToCommit feeds event into engine, recursively re-feeding
// whatever ProposalReceived/VoteReceived events it produces (the
// engine only records and reports them — nothing inside it re-enters
// itself to check quorum), stopping at the first RoundCompleted.
func driveToCommit(t *testing.T, engine *consensus.Engine, event consensus.Event) *consensus.RoundCompleted {
	t.Helper()

	out, err := engine.HandleEvent(event)
	require.NoError(t, err)

	for _, ev := range out {
		switch e := ev.(type) {
		case consensus.ProposalReceived, consensus.VoteReceived:
			if rc := driveToCommit(t, engine, ev); rc != nil {
				return rc
			}
		case consensus.RoundCompleted:
			c := e
			return &c
		}
	}
	return nil
}

// TestSealedDHTStoreIntegration exercises pkg/dht's envelope encryption
// backed by internal/security's KeyManager, the way cmd/zhtpd wires
// private DHT values.
func TestSealedDHTStoreIntegration(t *testing.T) {
	keys, err := security.NewKeyManager()
	require.NoError(t, err)

	self := crypto.SumHash([]byte("node"))
	store := dht.NewSealedStore(dht.NewStore(self, dht.DefaultReplicationPolicy()), keys)

	key := crypto.SumHash([]byte("secret-key"))
	plaintext := []byte("integration test payload")
	allow := func(requirements, proof []byte) bool { return true }

	require.NoError(t, store.Seal(key, plaintext, nil, dht.ZkDhtValue{AccessLevel: dht.AccessPrivate}))

	got, err := store.Unseal(key, []byte("proof"), allow, time.Now())
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

// TestGossipProtocolIntegration starts two gossip protocols, records a
// CRDT observation on a, and merges a's exported state into b by hand;
// the two protocols are not connected to each other.
func TestGossipProtocolIntegration(t *testing.T) {
	a, err := gossip.NewGossipProtocol("/ip4/127.0.0.1/tcp/0", "node-a")
	require.NoError(t, err)
	defer a.Stop()

	b, err := gossip.NewGossipProtocol("/ip4/127.0.0.1/tcp/0", "node-b")
	require.NoError(t, err)
	defer b.Stop()

	a.State().RecordServed(crypto.SumHash([]byte("content")))

	snap, err := a.State().Export()
	require.NoError(t, err)
	require.NoError(t, b.State().Merge(snap))
}

// TestCASIntegration exercises internal/cas against a real MinIO
// endpoint when one is reachable; otherwise it skips, since CAS
// dials out during NewCAS's bucket check rather than lazily.
func TestCASIntegration(t *testing.T) {
	cfg := config.DefaultConfig()

	casStore, err := cas.NewCAS(cfg.CAS.Endpoint, cfg.CAS.AccessKey, cfg.CAS.SecretKey, cfg.CAS.Bucket, cfg.CAS.UseSSL)
	if err != nil {
		t.Skipf("CAS store not available, skipping: %v", err)
	}

	t.Run("Store and retrieve an object", func(t *testing.T) {
		data := []byte("hello from the integration test")
		info, err := casStore.Store(context.Background(), bytes.NewReader(data), map[string]string{"test": "true"})
		require.NoError(t, err)
		require.NotEmpty(t, info.CID)

		r, err := casStore.Retrieve(context.Background(), info.CID)
		require.NoError(t, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}
