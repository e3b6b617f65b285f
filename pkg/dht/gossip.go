package dht

import (
	"encoding/json"
	"sync"

	"github.com/zhtp/zhtp/pkg/crdt"
	"github.com/zhtp/zhtp/pkg/crypto"
)

// GossipState holds the CRDT-backed routing metadata a node exchanges
// with peers during anti-entropy: it converges without coordination no
// matter which node initiates the exchange or how many times a given
// state is merged twice.
//
//   - requestCounts is a GCounter per peer, one shard per observing
//     node, so the total request volume a peer has served converges
//     across the mesh without an authoritative counter.
//   - knownPeers is an ORSet of node IDs: bucket membership gossip, so
//     a peer learned from one neighbor and independently evicted by
//     another still converges to "known, currently reachable" once
//     both updates are observed.
//   - peerMeta is one LWWRegister per peer carrying its most recently
//     advertised PeerInfo (address, public key), so the newest
//     self-reported endpoint wins regardless of gossip order.
type GossipState struct {
	mu            sync.Mutex
	self          string
	requestCounts map[crypto.Hash]*crdt.GCounter
	knownPeers    *crdt.ORSet
	peerMeta      map[crypto.Hash]*crdt.LWWRegister
}

// NewGossipState creates an empty gossip state for a node identified
// by selfID in CRDT operations (the node ID string used as the CRDT
// actor tag, distinct from the crypto.Hash node identity).
func NewGossipState(selfID string) *GossipState {
	return &GossipState{
		self:          selfID,
		requestCounts: make(map[crypto.Hash]*crdt.GCounter),
		knownPeers:    crdt.NewORSet(selfID),
		peerMeta:      make(map[crypto.Hash]*crdt.LWWRegister),
	}
}

// RecordServed credits peer with having served one more request,
// observed locally by this node.
func (g *GossipState) RecordServed(peer crypto.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()

	counter, ok := g.requestCounts[peer]
	if !ok {
		counter = crdt.NewGCounter(g.self)
		g.requestCounts[peer] = counter
	}
	counter.Increment(1)
}

// RequestsServed returns the converged count of requests peer has
// served, as observed across every merge this node has taken part in.
func (g *GossipState) RequestsServed(peer crypto.Hash) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	counter, ok := g.requestCounts[peer]
	if !ok {
		return 0
	}
	return counter.Count()
}

// Observe records that peer is known and reachable with metadata info,
// feeding both the ORSet membership and the LWWRegister endpoint
// advertisement for that peer.
func (g *GossipState) Observe(peer crypto.Hash, info PeerInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.knownPeers.Add(peer)

	reg, ok := g.peerMeta[peer]
	if !ok {
		reg = crdt.NewLWWRegister(g.self)
		g.peerMeta[peer] = reg
	}
	reg.Set(info)
}

// Forget marks peer as evicted in the ORSet. A peer re-observed by any
// node after this will reappear (ORSet semantics: add after remove is
// visible again once both ops are merged), matching Kademlia's
// lazy-rediscovery behavior rather than a permanent ban (bans are
// pkg/mesh's ReputationTracker's concern, not gossip's).
func (g *GossipState) Forget(peer crypto.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.knownPeers.Remove(peer)
}

// KnownPeers returns the set of peer IDs currently visible in the
// converged ORSet.
func (g *GossipState) KnownPeers() []crypto.Hash {
	g.mu.Lock()
	defer g.mu.Unlock()

	elements := g.knownPeers.Elements()
	out := make([]crypto.Hash, 0, len(elements))
	for _, e := range elements {
		if h, ok := e.(crypto.Hash); ok {
			out = append(out, h)
		}
	}
	return out
}

// PeerMetadata returns the converged endpoint advertisement for peer,
// if this node has observed or merged one.
func (g *GossipState) PeerMetadata(peer crypto.Hash) (PeerInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reg, ok := g.peerMeta[peer]
	if !ok {
		return PeerInfo{}, false
	}
	return decodePeerInfo(reg.GetValue())
}

// decodePeerInfo accepts either a PeerInfo set locally via Observe, or
// the generic map[string]interface{} that JSON unmarshaling produces
// for a register value merged in from another node's Snapshot (the
// register's Val field is untyped, so a round trip through Marshal/
// Unmarshal loses the concrete Go type).
func decodePeerInfo(v any) (PeerInfo, bool) {
	if info, ok := v.(PeerInfo); ok {
		return info, true
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return PeerInfo{}, false
	}
	var info PeerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return PeerInfo{}, false
	}
	return info, true
}

// Snapshot is the wire-shaped form of a GossipState exchanged during an
// anti-entropy round: one entry per peer this node has state for, each
// CRDT marshaled independently so a partial/lossy transfer still
// merges whatever arrived.
type Snapshot struct {
	RequestCounts map[crypto.Hash][]byte
	KnownPeers    []byte
	PeerMeta      map[crypto.Hash][]byte
}

// Export serializes the current state for transmission to a peer
// during anti-entropy.
func (g *GossipState) Export() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		RequestCounts: make(map[crypto.Hash][]byte, len(g.requestCounts)),
		PeerMeta:      make(map[crypto.Hash][]byte, len(g.peerMeta)),
	}

	for peer, counter := range g.requestCounts {
		data, err := counter.Marshal()
		if err != nil {
			return Snapshot{}, err
		}
		snap.RequestCounts[peer] = data
	}

	for peer, reg := range g.peerMeta {
		data, err := reg.Marshal()
		if err != nil {
			return Snapshot{}, err
		}
		snap.PeerMeta[peer] = data
	}

	data, err := g.knownPeers.Marshal()
	if err != nil {
		return Snapshot{}, err
	}
	snap.KnownPeers = data

	return snap, nil
}

// Merge applies a Snapshot received from a peer during anti-entropy.
// Every field merges independently and is safe to apply twice: CRDT
// merge is idempotent, so a retried or duplicated anti-entropy round
// never double-counts.
func (g *GossipState) Merge(snap Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for peer, data := range snap.RequestCounts {
		incoming := crdt.NewGCounter("")
		if err := incoming.Unmarshal(data); err != nil {
			return err
		}
		counter, ok := g.requestCounts[peer]
		if !ok {
			counter = crdt.NewGCounter(g.self)
			g.requestCounts[peer] = counter
		}
		if err := counter.Merge(incoming); err != nil {
			return err
		}
	}

	for peer, data := range snap.PeerMeta {
		incoming := crdt.NewLWWRegister("")
		if err := incoming.Unmarshal(data); err != nil {
			return err
		}
		reg, ok := g.peerMeta[peer]
		if !ok {
			// Adopt the incoming register as is: a fresh local register
			// would carry a newer timestamp and win the merge with a nil
			// value.
			g.peerMeta[peer] = incoming
			continue
		}
		if err := reg.Merge(incoming); err != nil {
			return err
		}
	}

	if len(snap.KnownPeers) > 0 {
		incoming := crdt.NewORSet("")
		if err := incoming.Unmarshal(snap.KnownPeers); err != nil {
			return err
		}
		if err := g.knownPeers.Merge(incoming); err != nil {
			return err
		}
	}

	return nil
}
