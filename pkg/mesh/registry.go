// Package mesh implements the multi-transport peer router: peer
// registry, reputation, rate limiting, latency sampling, propagation
// fan-out, and transport modules (TCP/QUIC, Bluetooth LE, RFCOMM)
// behind one pluggable interface.
package mesh

import (
	"sync"
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// UnifiedPeerId identifies a peer across every transport it may be
// reachable through.
type UnifiedPeerId = crypto.Hash

// PeerRecord is one peer's registry entry.
type PeerRecord struct {
	ID          UnifiedPeerId
	Addresses   []string
	Transports  []string
	LastSeen    time.Time
	Reputation  int
	Banned      bool
}

func (p PeerRecord) equal(o PeerRecord) bool {
	if p.ID != o.ID || p.Reputation != o.Reputation || p.Banned != o.Banned {
		return false
	}
	if len(p.Addresses) != len(o.Addresses) || len(p.Transports) != len(o.Transports) {
		return false
	}
	for i := range p.Addresses {
		if p.Addresses[i] != o.Addresses[i] {
			return false
		}
	}
	for i := range p.Transports {
		if p.Transports[i] != o.Transports[i] {
			return false
		}
	}
	return true
}

// PeerRegistry tracks every known peer, keyed by UnifiedPeerId.
// Upsert is idempotent by content: re-applying the same record is a
// no-op, matching the module's idempotence law for peer updates.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[UnifiedPeerId]PeerRecord
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[UnifiedPeerId]PeerRecord)}
}

// Upsert merges rec into the registry. Reputation and ban state are
// never taken from rec — they are this registry's own history, carried
// forward across every re-announce. If the incoming addresses/transports
// are identical to what's stored, only LastSeen advances and Upsert
// reports no change, matching the module's idempotence law for peer
// updates.
func (r *PeerRegistry) Upsert(rec PeerRecord) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.peers[rec.ID]
	if !ok {
		rec.Reputation = 0
		rec.Banned = false
		r.peers[rec.ID] = rec
		return true
	}

	candidate := existing
	candidate.Addresses = rec.Addresses
	candidate.Transports = rec.Transports
	candidate.LastSeen = rec.LastSeen

	if existing.equal(candidate) {
		existing.LastSeen = rec.LastSeen
		r.peers[rec.ID] = existing
		return false
	}

	candidate.Reputation = existing.Reputation
	candidate.Banned = existing.Banned
	r.peers[rec.ID] = candidate
	return true
}

// Get returns a peer's record.
func (r *PeerRegistry) Get(id UnifiedPeerId) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[id]
	return rec, ok
}

// Remove deletes a peer from the registry entirely.
func (r *PeerRegistry) Remove(id UnifiedPeerId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// All returns a snapshot of every registered peer.
func (r *PeerRegistry) All() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		out = append(out, rec)
	}
	return out
}

// Connected returns peers excluding the given sender, the candidate
// set for gossip fan-out.
func (r *PeerRegistry) Connected(except UnifiedPeerId) []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerRecord, 0, len(r.peers))
	for id, rec := range r.peers {
		if id == except || rec.Banned {
			continue
		}
		out = append(out, rec)
	}
	return out
}
