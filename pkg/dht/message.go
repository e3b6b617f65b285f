package dht

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/errs"
)

// MaxMessageAgeSecs bounds how far in the past a message's timestamp
// may be before it is rejected as stale.
const MaxMessageAgeSecs = 300

// MaxFutureSkewSecs bounds how far in the future a message's timestamp
// may be before it is rejected as not-yet-valid (clock skew
// tolerance).
const MaxFutureSkewSecs = 60

// MessageType identifies the kind of DHT protocol message.
type MessageType uint8

const (
	MessagePing MessageType = iota
	MessagePong
	MessageFindNode
	MessageFindValue
	MessageStore
	MessageStoreResponse
	MessageContractDeploy
	MessageContractQuery
	MessageContractExecute
)

// Message is the envelope every DHT protocol exchange rides in.
// Signature binds every field listed in SignableData's order, which
// excludes Nodes and ContractData: those ride along for convenience
// but are not part of what a peer attests to.
type Message struct {
	ID             crypto.Hash
	Type           MessageType
	SenderID       crypto.Hash
	TargetID       crypto.Hash
	Key            []byte
	Value          []byte
	Timestamp      int64
	Nonce          [32]byte
	SequenceNumber uint64
	Signature      crypto.PQSignature

	Nodes        []PeerInfo
	ContractData []byte
}

// SignableData concatenates exactly the fields a Message's signature
// binds, in the fixed order message_id, message_type, sender_id,
// target_id, key, value, timestamp, nonce, sequence_number.
func (m *Message) SignableData() []byte {
	var buf []byte
	buf = append(buf, m.ID.Bytes()...)
	buf = append(buf, byte(m.Type))
	buf = append(buf, m.SenderID.Bytes()...)
	buf = append(buf, m.TargetID.Bytes()...)
	buf = append(buf, m.Key...)
	buf = append(buf, m.Value...)
	buf = appendInt64(buf, m.Timestamp)
	buf = append(buf, m.Nonce[:]...)
	buf = appendUint64(buf, m.SequenceNumber)
	return buf
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ValidateFreshness enforces the asymmetric timestamp tolerance: up to
// MaxFutureSkewSecs ahead of now, up to MaxMessageAgeSecs behind it.
func (m *Message) ValidateFreshness(now time.Time) error {
	nowUnix := now.Unix()
	if m.Timestamp > nowUnix+MaxFutureSkewSecs {
		return errs.Protocolf(errs.CodeStaleTimestamp, "dht: message timestamp %d is %ds ahead of now", m.Timestamp, m.Timestamp-nowUnix)
	}
	if nowUnix-m.Timestamp > MaxMessageAgeSecs {
		return errs.Protocolf(errs.CodeStaleTimestamp, "dht: message timestamp %d is %ds old, exceeds max age %ds", m.Timestamp, nowUnix-m.Timestamp, MaxMessageAgeSecs)
	}
	return nil
}

// Validate checks a message's structural and freshness invariants,
// plus the signature against senderKey. It does not consult replay
// state; callers combine this with a ReplayGuard.
func (m *Message) Validate(now time.Time, senderKey crypto.PQSigPubKey) error {
	var zeroNonce [32]byte
	if m.Nonce == zeroNonce {
		return errs.Protocolf(errs.CodeSchemaMismatch, "dht: message nonce must not be zero")
	}
	if err := m.ValidateFreshness(now); err != nil {
		return err
	}
	if !crypto.Verify(senderKey, m.SignableData(), m.Signature) {
		return errs.Protocolf(errs.CodeSignatureInvalid, "dht: message signature does not verify for sender %s", m.SenderID)
	}
	return nil
}

// ReplayGuard tracks the highest sequence number seen per sender and
// rejects non-increasing sequence numbers, providing replay
// protection independent of timestamp freshness.
type ReplayGuard struct {
	mu         sync.Mutex
	highestSeen map[crypto.Hash]uint64
}

// NewReplayGuard creates an empty guard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{highestSeen: make(map[crypto.Hash]uint64)}
}

// Check returns an error if seq is not strictly greater than the
// highest sequence number previously accepted for sender, and records
// seq as the new high-water mark if it passes.
func (g *ReplayGuard) Check(sender crypto.Hash, seq uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if seq <= g.highestSeen[sender] {
		return errs.Protocolf(errs.CodeStaleSequence, "dht: sequence %d for sender %s is not greater than highest seen %d", seq, sender, g.highestSeen[sender])
	}
	g.highestSeen[sender] = seq
	return nil
}

// HighestSeen reports the current high-water mark for a sender
// (0 if never seen).
func (g *ReplayGuard) HighestSeen(sender crypto.Hash) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.highestSeen[sender]
}
