package mesh

import (
	"container/list"
	"sync"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// DedupCacheCap bounds the LRU of recently seen content hashes, past
// which further fan-out of the same content is suppressed.
const DedupCacheCap = 4096

// dedupCache is a bounded LRU set of content hashes, used to suppress
// re-propagating something this node has already seen and forwarded.
type dedupCache struct {
	mu    sync.Mutex
	cap   int
	order *list.List
	index map[crypto.Hash]*list.Element
}

func newDedupCache(capacity int) *dedupCache {
	return &dedupCache{cap: capacity, order: list.New(), index: make(map[crypto.Hash]*list.Element)}
}

// seen reports whether h was already recorded, and records it if not.
func (c *dedupCache) seen(h crypto.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[h]; ok {
		c.order.MoveToFront(e)
		return true
	}

	e := c.order.PushFront(h)
	c.index[h] = e
	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(crypto.Hash))
	}
	return false
}

// OutboundQueueCap bounds how many payloads may be in flight to a
// single peer at once. Propagate never blocks waiting for a slot: a
// full queue means that peer is skipped for this payload rather than
// stalling fan-out to every other peer, per spec's mesh back-pressure
// rule.
const OutboundQueueCap = 64

// MaxConsecutiveSkips is how many times in a row a peer's outbound
// queue must be found full before its reputation is docked. A single
// full queue is transient congestion; a peer that stays congested
// across repeated payloads is the case spec's back-pressure rule
// means to penalize.
const MaxConsecutiveSkips = 3

// outboundQueue is a per-peer bound on in-flight sends, plus a
// consecutive-skip counter for the back-pressure reputation rule.
type outboundQueue struct {
	slots chan struct{}

	mu    sync.Mutex
	skips int
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{slots: make(chan struct{}, capacity)}
}

// tryAcquire claims a slot without blocking. Every successful acquire
// must be matched by exactly one release.
func (q *outboundQueue) tryAcquire() bool {
	select {
	case q.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (q *outboundQueue) release() { <-q.slots }

// recordSkip tracks a full-queue skip, reporting whether the
// consecutive count has now reached MaxConsecutiveSkips (and resetting
// it if so, so the next batch of skips starts counting fresh).
func (q *outboundQueue) recordSkip() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.skips++
	if q.skips >= MaxConsecutiveSkips {
		q.skips = 0
		return true
	}
	return false
}

func (q *outboundQueue) recordSent() {
	q.mu.Lock()
	q.skips = 0
	q.mu.Unlock()
}

// Validator checks structural/signature validity of propagated content
// before it is forwarded. Concrete validation (block/tx rules) lives in
// internal/consensus; this package only defines the call shape.
type Validator func(payload []byte) bool

// Sender delivers payload to a specific peer over whatever transport
// that peer is reachable through.
type Sender func(peer PeerRecord, payload []byte) error

// Propagator fans content out to the mesh: dedup by content hash,
// structural/signature validation, then gossip to every connected peer
// except the sender, the way the teacher's gossip protocol's
// performGossip loop fans CRDT state updates out to a fanout set —
// generalized here to forward every accepted payload to all peers
// rather than a random sample, since block/tx propagation needs full
// reach, not epidemic sampling. Every dedup/invalid/accept outcome and
// every back-pressure skip feeds reputation, per spec's propagation
// algorithm and back-pressure rule.
type Propagator struct {
	registry   *PeerRegistry
	dedup      *dedupCache
	validate   Validator
	send       Sender
	reputation *ReputationTracker

	mu     sync.Mutex
	queues map[UnifiedPeerId]*outboundQueue
}

// NewPropagator creates a propagator over registry, using validate to
// gate content and send to deliver it. reputation may be nil (a test
// harness with no mesh wiring), in which case outcomes are simply not
// scored.
func NewPropagator(registry *PeerRegistry, validate Validator, send Sender, reputation *ReputationTracker) *Propagator {
	return &Propagator{
		registry:   registry,
		dedup:      newDedupCache(DedupCacheCap),
		validate:   validate,
		send:       send,
		reputation: reputation,
		queues:     make(map[UnifiedPeerId]*outboundQueue),
	}
}

func (p *Propagator) queueFor(id UnifiedPeerId) *outboundQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[id]
	if !ok {
		q = newOutboundQueue(OutboundQueueCap)
		p.queues[id] = q
	}
	return q
}

func (p *Propagator) record(id UnifiedPeerId, event ReputationEvent) {
	if p.reputation == nil {
		return
	}
	_, _ = p.reputation.Record(id, event)
}

// Propagate validates and forwards payload (identified by contentHash)
// to every connected peer except from. Returns the number of peers it
// was sent to, and false if the content was a duplicate or failed
// validation.
//
// Matches spec's propagation algorithm: a duplicate increments from's
// rejection counter and drops; an invalid payload records a protocol
// violation against from; a valid, novel payload is forwarded and
// from's reputation is credited. Each destination peer whose outbound
// queue is full is skipped for this payload rather than blocking fan-out
// to the rest; a peer skipped MaxConsecutiveSkips times in a row has
// its own reputation docked.
func (p *Propagator) Propagate(contentHash crypto.Hash, payload []byte, from UnifiedPeerId) (int, bool) {
	if p.dedup.seen(contentHash) {
		p.record(from, EventReject)
		return 0, false
	}
	if p.validate != nil && !p.validate(payload) {
		p.record(from, EventProtocolViolation)
		return 0, false
	}

	peers := p.registry.Connected(from)
	sent := 0
	for _, peer := range peers {
		q := p.queueFor(peer.ID)
		if !q.tryAcquire() {
			if q.recordSkip() {
				p.record(peer.ID, EventReject)
			}
			continue
		}

		err := p.send(peer, payload)
		q.release()
		if err == nil {
			q.recordSent()
			sent++
		}
	}

	p.record(from, EventAccept)
	return sent, true
}
