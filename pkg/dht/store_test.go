package dht

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/identity"
)

func TestAdmitPeerRejectsUnboundIdentity(t *testing.T) {
	self := crypto.Hash{0x00}
	s := NewStore(self, DefaultReplicationPolicy())

	bad := identity.Identity{NodeID: crypto.Hash{0x01}, DID: "did:zhtp:x"}
	require.Error(t, s.AdmitPeer(bad, "127.0.0.1:9000"))
	require.Equal(t, 0, s.Routing.Size())
}

func TestAdmitPeerAcceptsBoundIdentity(t *testing.T) {
	self := crypto.Hash{0x00}
	s := NewStore(self, DefaultReplicationPolicy())

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.New(kp.PublicKey(), "did:zhtp:peer", "dev-1")

	require.NoError(t, s.AdmitPeer(id, "127.0.0.1:9000"))
	require.Equal(t, 1, s.Routing.Size())
}

func TestStoreValueFindValuePublicAccess(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())
	key := crypto.SumHash([]byte("k"))
	now := time.Unix(1_700_000_000, 0)

	s.StoreValue(key, ZkDhtValue{EncryptedData: []byte("data"), AccessLevel: AccessPublic, StoredAt: now})

	v, err := s.FindValue(key, nil, nil, now)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), v.EncryptedData)
}

func TestFindValueRejectsExpired(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())
	key := crypto.SumHash([]byte("k"))
	now := time.Unix(1_700_000_000, 0)

	s.StoreValue(key, ZkDhtValue{AccessLevel: AccessPublic, ExpiresAt: now.Add(-time.Minute)})

	_, err := s.FindValue(key, nil, nil, now)
	require.Error(t, err)
}

func TestFindValueEnforcesAccessChecker(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())
	key := crypto.SumHash([]byte("k"))
	now := time.Unix(1_700_000_000, 0)

	s.StoreValue(key, ZkDhtValue{AccessLevel: AccessRestricted, AccessRequirements: []byte("secret")})

	deny := func(requirements, proof []byte) bool { return false }
	_, err := s.FindValue(key, []byte("wrong"), deny, now)
	require.Error(t, err)

	allow := func(requirements, proof []byte) bool { return string(proof) == "right" }
	v, err := s.FindValue(key, []byte("right"), allow, now)
	require.NoError(t, err)
	require.Equal(t, AccessRestricted, v.AccessLevel)
}

func TestHandleMessageCombinesValidateAndReplay(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	m := signedMessage(t, kp, 1, now.Unix())
	require.NoError(t, s.HandleMessage(m, kp.PublicKey(), now))

	replay := signedMessage(t, kp, 1, now.Unix())
	require.Error(t, s.HandleMessage(replay, kp.PublicKey(), now))
}

func TestExecuteContractDeployThenExecuteThenQuery(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())

	deployed := s.ExecuteContract(ContractDhtData{
		ContractID:  "contract-1",
		Operation:   "deploy",
		Payload:     []byte("v1"),
		StorageTier: TierWarm,
	})
	require.True(t, deployed.Success)
	require.NotNil(t, deployed.NewStateHash)
	require.NotEmpty(t, deployed.Logs)

	redeploy := s.ExecuteContract(ContractDhtData{ContractID: "contract-1", Operation: "deploy", Payload: []byte("v1")})
	require.False(t, redeploy.Success, "redeploying the same contract id must fail")

	executed := s.ExecuteContract(ContractDhtData{ContractID: "contract-1", Operation: "execute", Payload: []byte("v2")})
	require.True(t, executed.Success)
	require.Equal(t, []byte("v2"), executed.Output)
	require.NotNil(t, executed.NewStateHash)
	require.NotEqual(t, *deployed.NewStateHash, *executed.NewStateHash)

	queried := s.ExecuteContract(ContractDhtData{ContractID: "contract-1", Operation: "query"})
	require.True(t, queried.Success)
	require.Equal(t, []byte("v2"), queried.Output)
	require.Nil(t, queried.NewStateHash, "a read-only operation must never report a new state hash")
}

func TestExecuteContractRejectsUnknownOperationAndMissingContract(t *testing.T) {
	s := NewStore(crypto.Hash{0x00}, DefaultReplicationPolicy())

	unknown := s.ExecuteContract(ContractDhtData{ContractID: "c", Operation: "upgrade"})
	require.False(t, unknown.Success)

	missing := s.ExecuteContract(ContractDhtData{ContractID: "nope", Operation: "get_info"})
	require.False(t, missing.Success)
}
