package dht

import (
	"sync"
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/errs"
	"github.com/zhtp/zhtp/pkg/identity"
)

// Store is the local node's view of the distributed hash table: a
// routing table of known peers and the replay guard/value map guarding
// everything that flows through it.
type Store struct {
	Routing *RoutingTable
	Replay  *ReplayGuard
	Policy  ReplicationPolicy

	mu        sync.RWMutex
	values    map[crypto.Hash]ZkDhtValue
	contracts map[string]ContractDhtData
}

// NewStore creates a store for the local node identified by self.
func NewStore(self crypto.Hash, policy ReplicationPolicy) *Store {
	return &Store{
		Routing:   NewRoutingTable(self),
		Replay:    NewReplayGuard(),
		Policy:    policy,
		values:    make(map[crypto.Hash]ZkDhtValue),
		contracts: make(map[string]ContractDhtData),
	}
}

// ExecuteContract dispatches one ContractDhtData operation against this
// node's local contract state. Deploy/Execute are the only operations
// that mutate state; Query/Find/GetInfo are read-only and always leave
// NewStateHash nil, matching the original_source distinction between an
// execution result (which reports a new state hash) and a read (which
// doesn't).
func (s *Store) ExecuteContract(data ContractDhtData) ContractResult {
	switch data.Operation {
	case "deploy":
		return s.deployContract(data)
	case "execute":
		return s.executeContract(data)
	case "query", "find", "get_info":
		return s.readContract(data)
	default:
		return ContractResult{ContractID: data.ContractID, Success: false, Error: "dht: unknown contract operation " + data.Operation}
	}
}

func (s *Store) deployContract(data ContractDhtData) ContractResult {
	s.mu.Lock()
	if _, exists := s.contracts[data.ContractID]; exists {
		s.mu.Unlock()
		return ContractResult{ContractID: data.ContractID, Success: false, Error: "dht: contract " + data.ContractID + " already deployed"}
	}
	s.contracts[data.ContractID] = data
	s.mu.Unlock()

	stateHash := crypto.SumHash(data.Payload).String()
	return ContractResult{
		ContractID:   data.ContractID,
		Success:      true,
		GasUsed:      uint64(len(data.Payload)),
		Logs:         []ContractLog{{Level: LogInfo, Message: "contract deployed", Data: map[string]string{"contract_id": data.ContractID}}},
		NewStateHash: &stateHash,
	}
}

// executeContract replaces the deployed contract's stored payload with
// data.Payload. There is no bytecode interpreter here — this is the
// DHT's bookkeeping of contract state, not a VM — so "execution" is the
// state transition a real VM would have already computed off-path.
func (s *Store) executeContract(data ContractDhtData) ContractResult {
	s.mu.Lock()
	existing, ok := s.contracts[data.ContractID]
	if !ok {
		s.mu.Unlock()
		return ContractResult{ContractID: data.ContractID, Success: false, Error: "dht: unknown contract " + data.ContractID}
	}
	existing.Payload = data.Payload
	s.contracts[data.ContractID] = existing
	s.mu.Unlock()

	stateHash := crypto.SumHash(data.Payload).String()
	return ContractResult{
		ContractID:   data.ContractID,
		Success:      true,
		Output:       data.Payload,
		GasUsed:      uint64(len(data.Payload)),
		Logs:         []ContractLog{{Level: LogInfo, Message: "contract executed", Data: map[string]string{"contract_id": data.ContractID}}},
		NewStateHash: &stateHash,
	}
}

func (s *Store) readContract(data ContractDhtData) ContractResult {
	s.mu.RLock()
	existing, ok := s.contracts[data.ContractID]
	s.mu.RUnlock()
	if !ok {
		return ContractResult{ContractID: data.ContractID, Success: false, Error: "dht: unknown contract " + data.ContractID}
	}
	return ContractResult{ContractID: data.ContractID, Success: true, Output: existing.Payload}
}

// AdmitPeer verifies a peer's identity binding before adding it to the
// routing table. There is no path to add a peer without this check —
// unlike original_source's deprecated from_zhtp_identity shortcut, no
// insecure constructor exists here.
func (s *Store) AdmitPeer(id identity.Identity, address string) error {
	if err := identity.Verify(id); err != nil {
		return errs.Protocolf(errs.CodeSignatureInvalid, "dht: refusing to admit peer: %v", err)
	}
	s.Routing.Upsert(PeerInfo{NodeID: id.NodeID, PublicKey: id.PublicKey, Address: address})
	return nil
}

// HandleMessage validates m (freshness, signature, replay) against the
// sender's known public key and returns an error if any check fails.
// Callers look up senderKey from the routing table (or, for a first
// contact, the identity carried in the message's payload) before
// calling this.
func (s *Store) HandleMessage(m *Message, senderKey crypto.PQSigPubKey, now time.Time) error {
	if err := m.Validate(now, senderKey); err != nil {
		return err
	}
	return s.Replay.Check(m.SenderID, m.SequenceNumber)
}

// StoreValue records v under key, to be pushed out to Policy.Factor
// replicas by the caller (replica selection/dispatch lives in
// pkg/mesh, which has the transport to actually contact peers).
func (s *Store) StoreValue(key crypto.Hash, v ZkDhtValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// FindValue looks up key locally and, if found and not expired,
// evaluates the requester's proof against its access policy.
func (s *Store) FindValue(key crypto.Hash, proof []byte, checker AccessChecker, now time.Time) (ZkDhtValue, error) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return ZkDhtValue{}, errs.New(errs.State, errs.CodeUnknownKey, "dht: no value for key", nil)
	}
	if v.Expired(now) {
		return ZkDhtValue{}, errs.New(errs.State, errs.CodeUnknownKey, "dht: value expired", nil)
	}
	if !v.CheckAccess(proof, checker) {
		return ZkDhtValue{}, errs.New(errs.Protocol, errs.CodeAccessDenied, "dht: access denied", nil)
	}
	return v, nil
}

// ReplicaTargets returns the Policy.Factor nodes closest to key,
// candidates for StoreValue dispatch.
func (s *Store) ReplicaTargets(key crypto.Hash) []PeerInfo {
	return s.Routing.Closest(key, s.Policy.Factor)
}
