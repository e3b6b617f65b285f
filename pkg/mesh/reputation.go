package mesh

import "fmt"

// ReputationEvent classifies something a peer did that should move
// its score.
type ReputationEvent int

const (
	EventAccept ReputationEvent = iota
	EventReject
	EventProtocolViolation
)

// ReputationWeights controls how much each event moves a peer's score.
type ReputationWeights struct {
	Accept            int
	Reject            int
	ProtocolViolation int
}

// DefaultReputationWeights matches spec.md's additive reputation model:
// small positive credit for good behavior, larger penalties for
// rejects and violations so a handful of bad responses outweighs a
// long history of good ones.
func DefaultReputationWeights() ReputationWeights {
	return ReputationWeights{Accept: 1, Reject: -5, ProtocolViolation: -20}
}

// MinPeerScore is the reputation floor below which a peer is banned.
const MinPeerScore = -100

// ReputationTracker applies ReputationEvents to a PeerRegistry. Scores
// and bans live in the registry's in-memory records, which Upsert does
// not reset, so they survive reconnects; nothing is persisted across a
// process restart.
type ReputationTracker struct {
	registry *PeerRegistry
	weights  ReputationWeights
}

// NewReputationTracker creates a tracker over registry using weights.
func NewReputationTracker(registry *PeerRegistry, weights ReputationWeights) *ReputationTracker {
	return &ReputationTracker{registry: registry, weights: weights}
}

// Record applies event to peer id's score and bans the peer if the
// resulting score falls below MinPeerScore.
func (t *ReputationTracker) Record(id UnifiedPeerId, event ReputationEvent) (PeerRecord, error) {
	rec, ok := t.registry.Get(id)
	if !ok {
		return PeerRecord{}, fmt.Errorf("mesh: unknown peer %s", id)
	}
	if rec.Banned {
		return rec, nil
	}

	switch event {
	case EventAccept:
		rec.Reputation += t.weights.Accept
	case EventReject:
		rec.Reputation += t.weights.Reject
	case EventProtocolViolation:
		rec.Reputation += t.weights.ProtocolViolation
	}

	if rec.Reputation < MinPeerScore {
		rec.Banned = true
	}

	t.registry.mu.Lock()
	t.registry.peers[id] = rec
	t.registry.mu.Unlock()

	return rec, nil
}
