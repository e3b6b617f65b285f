// Package dht implements Kademlia-style peer routing and the
// replay-protected, identity-bound messaging protocol that carries
// storage and contract operations over the mesh.
package dht

import (
	"container/list"
	"sync"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// BucketSize is the Kademlia k constant: the maximum number of peers
// held in any single k-bucket.
const BucketSize = 20

// NumBuckets is the number of distance buckets, one per bit of a
// crypto.Hash-sized node ID.
const NumBuckets = crypto.HashSize * 8

// PeerInfo is one routing table entry.
type PeerInfo struct {
	NodeID    crypto.Hash
	PublicKey crypto.PQSigPubKey
	Address   string
}

// RoutingTable is a Kademlia routing table: NumBuckets buckets, each
// holding up to BucketSize peers ordered by recency, most-recently-seen
// at the back, matching libp2p's kad-dht move-to-front-on-touch idiom.
type RoutingTable struct {
	mu      sync.Mutex
	self    crypto.Hash
	buckets [NumBuckets]*list.List
}

// NewRoutingTable creates an empty routing table for a local node
// identified by self.
func NewRoutingTable(self crypto.Hash) *RoutingTable {
	rt := &RoutingTable{self: self}
	for i := range rt.buckets {
		rt.buckets[i] = list.New()
	}
	return rt
}

// bucketIndex returns the index of the bucket that would hold a peer
// at the given node ID, based on the position of the highest differing
// bit between self and that ID.
func (rt *RoutingTable) bucketIndex(id crypto.Hash) int {
	for byteIdx := 0; byteIdx < crypto.HashSize; byteIdx++ {
		x := rt.self[byteIdx] ^ id[byteIdx]
		if x == 0 {
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if x&(1<<uint(bit)) != 0 {
				return byteIdx*8 + (7 - bit)
			}
		}
	}
	return NumBuckets - 1
}

// Upsert inserts or refreshes a peer, moving it to the most-recently-seen
// position. If the peer's bucket is full and the peer is new, it is
// dropped (no eviction of existing peers, matching Kademlia's
// least-recently-seen-survives rule for a bucket that has never
// observed a dead peer).
func (rt *RoutingTable) Upsert(p PeerInfo) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idx := rt.bucketIndex(p.NodeID)
	bucket := rt.buckets[idx]

	for e := bucket.Front(); e != nil; e = e.Next() {
		if e.Value.(PeerInfo).NodeID == p.NodeID {
			bucket.Remove(e)
			bucket.PushBack(p)
			return
		}
	}

	if bucket.Len() >= BucketSize {
		return
	}
	bucket.PushBack(p)
}

// Remove evicts a peer from the routing table.
func (rt *RoutingTable) Remove(id crypto.Hash) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idx := rt.bucketIndex(id)
	bucket := rt.buckets[idx]
	for e := bucket.Front(); e != nil; e = e.Next() {
		if e.Value.(PeerInfo).NodeID == id {
			bucket.Remove(e)
			return
		}
	}
}

// Distance computes the XOR distance between a and b as a crypto.Hash,
// treated as a big-endian unsigned integer for ordering.
func Distance(a, b crypto.Hash) crypto.Hash {
	var d crypto.Hash
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// Closest returns up to n peers closest to target by XOR distance,
// across the whole table.
func (rt *RoutingTable) Closest(target crypto.Hash, n int) []PeerInfo {
	rt.mu.Lock()
	all := make([]PeerInfo, 0)
	for _, bucket := range rt.buckets {
		for e := bucket.Front(); e != nil; e = e.Next() {
			all = append(all, e.Value.(PeerInfo))
		}
	}
	rt.mu.Unlock()

	sortByDistance(all, target)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func sortByDistance(peers []PeerInfo, target crypto.Hash) {
	for i := 1; i < len(peers); i++ {
		for j := i; j > 0; j-- {
			di := Distance(peers[j-1].NodeID, target)
			dj := Distance(peers[j].NodeID, target)
			if dj.Less(di) {
				peers[j-1], peers[j] = peers[j], peers[j-1]
			} else {
				break
			}
		}
	}
}

// Size returns the total number of peers held across all buckets.
func (rt *RoutingTable) Size() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.Len()
	}
	return total
}
