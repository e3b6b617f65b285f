// Package gossip carries pkg/dht's CRDT-backed GossipState between
// peers over libp2p streams: periodic push dissemination plus
// one-on-one anti-entropy, with every exchange a plain Export/Merge
// round trip so repeated or out-of-order delivery never corrupts state.
package gossip

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/zhtp/zhtp/pkg/dht"
)

// protocolID identifies this module's gossip stream protocol on the
// libp2p host, distinct from the mesh transport's own protocol IDs.
const protocolID = protocol.ID("/zhtp/gossip/1.0.0")

// GossipProtocol disseminates a GossipState across the mesh over
// libp2p streams: periodic fanout push plus anti-entropy with a single
// random peer, mirroring epidemic broadcast the way Kademlia
// implementations gossip routing-table churn.
type GossipProtocol struct {
	host       host.Host
	peers      map[peer.ID]*PeerInfo
	peersMutex sync.RWMutex

	incoming chan *Message
	outgoing chan *Message

	state *dht.GossipState

	fanout              int
	gossipInterval      time.Duration
	antiEntropyInterval time.Duration

	quit chan struct{}
}

// PeerInfo holds information about a connected peer.
type PeerInfo struct {
	ID       peer.ID
	LastSeen time.Time
}

// Message is a gossip envelope. Payload carries a JSON-encoded
// dht.Snapshot for every message type this protocol sends; TTL bounds
// relay hops for a future multi-hop forwarding extension but is not
// yet consulted (all exchange here is single-hop, direct-peer anti-
// entropy).
type Message struct {
	ID        string
	Type      MessageType
	Payload   []byte
	Timestamp time.Time
	Sender    peer.ID
	TTL       int
}

// MessageType distinguishes a fanout push from a one-on-one
// anti-entropy exchange; both carry the same Snapshot payload shape.
type MessageType int

const (
	PushMessage MessageType = iota
	AntiEntropyMessage
)

// NewGossipProtocol creates a gossip protocol instance bound to
// listenAddr, disseminating state on behalf of selfID.
func NewGossipProtocol(listenAddr string, selfID string) (*GossipProtocol, error) {
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(listenAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	gp := &GossipProtocol{
		host:                h,
		peers:               make(map[peer.ID]*PeerInfo),
		incoming:            make(chan *Message, 1000),
		outgoing:            make(chan *Message, 1000),
		state:               dht.NewGossipState(selfID),
		fanout:              3,
		gossipInterval:      1 * time.Second,
		antiEntropyInterval: 30 * time.Second,
		quit:                make(chan struct{}),
	}

	h.SetStreamHandler(protocolID, gp.handleStream)

	go gp.processMessages()
	go gp.gossipLoop()
	go gp.antiEntropyLoop()

	log.Printf("gossip: protocol started on %s", h.ID())
	return gp, nil
}

// State returns the CRDT-backed state this protocol disseminates.
// Callers record local observations directly against it (RecordServed,
// Observe, Forget); the protocol's own job is only propagation.
func (gp *GossipProtocol) State() *dht.GossipState {
	return gp.state
}

// Stop shuts the protocol down and closes the underlying host.
func (gp *GossipProtocol) Stop() error {
	close(gp.quit)
	return gp.host.Close()
}

// AddPeer connects to and registers a peer for gossip exchange.
func (gp *GossipProtocol) AddPeer(peerAddr string) error {
	addr, err := multiaddr.NewMultiaddr(peerAddr)
	if err != nil {
		return fmt.Errorf("invalid peer address: %w", err)
	}

	peerInfo, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("failed to parse peer info: %w", err)
	}

	if err := gp.host.Connect(context.Background(), *peerInfo); err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}

	gp.peersMutex.Lock()
	gp.peers[peerInfo.ID] = &PeerInfo{ID: peerInfo.ID, LastSeen: time.Now()}
	gp.peersMutex.Unlock()

	log.Printf("gossip: added peer %s", peerInfo.ID)
	return nil
}

// gossipLoop periodically pushes the local state to fanout random peers.
func (gp *GossipProtocol) gossipLoop() {
	ticker := time.NewTicker(gp.gossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gp.quit:
			return
		case <-ticker.C:
			gp.pushToFanout()
		}
	}
}

func (gp *GossipProtocol) pushToFanout() {
	peerIDs := gp.peerSnapshot()
	if len(peerIDs) == 0 {
		return
	}

	msg, err := gp.buildSnapshotMessage(PushMessage)
	if err != nil {
		log.Printf("gossip: failed to export state: %v", err)
		return
	}

	for _, p := range selectRandomPeers(peerIDs, gp.fanout) {
		gp.sendMessage(p, msg)
	}
}

// antiEntropyLoop periodically reconciles with one random peer.
func (gp *GossipProtocol) antiEntropyLoop() {
	ticker := time.NewTicker(gp.antiEntropyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gp.quit:
			return
		case <-ticker.C:
			gp.performAntiEntropy()
		}
	}
}

func (gp *GossipProtocol) performAntiEntropy() {
	peerIDs := gp.peerSnapshot()
	if len(peerIDs) == 0 {
		return
	}

	msg, err := gp.buildSnapshotMessage(AntiEntropyMessage)
	if err != nil {
		log.Printf("gossip: failed to export state: %v", err)
		return
	}

	target := selectRandomPeers(peerIDs, 1)[0]
	gp.sendMessage(target, msg)
}

func (gp *GossipProtocol) buildSnapshotMessage(msgType MessageType) (*Message, error) {
	snap, err := gp.state.Export()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        generateMessageID(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
		Sender:    gp.host.ID(),
		TTL:       3,
	}, nil
}

func (gp *GossipProtocol) peerSnapshot() []peer.ID {
	gp.peersMutex.RLock()
	defer gp.peersMutex.RUnlock()

	ids := make([]peer.ID, 0, len(gp.peers))
	for id := range gp.peers {
		ids = append(ids, id)
	}
	return ids
}

// processMessages drains incoming messages and merges their state.
func (gp *GossipProtocol) processMessages() {
	for {
		select {
		case <-gp.quit:
			return
		case msg := <-gp.incoming:
			gp.handleMessage(msg)
		}
	}
}

func (gp *GossipProtocol) handleMessage(msg *Message) {
	gp.peersMutex.Lock()
	if p, exists := gp.peers[msg.Sender]; exists {
		p.LastSeen = time.Now()
	}
	gp.peersMutex.Unlock()

	var snap dht.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		log.Printf("gossip: failed to decode snapshot from %s: %v", msg.Sender, err)
		return
	}

	if err := gp.state.Merge(snap); err != nil {
		log.Printf("gossip: failed to merge snapshot from %s: %v", msg.Sender, err)
	}
}

func (gp *GossipProtocol) handleStream(s network.Stream) {
	defer s.Close()

	var msg Message
	if err := json.NewDecoder(s).Decode(&msg); err != nil {
		log.Printf("gossip: failed to decode message: %v", err)
		return
	}

	select {
	case gp.incoming <- &msg:
	default:
		log.Println("gossip: incoming queue full, dropping message")
	}
}

func (gp *GossipProtocol) sendMessage(peerID peer.ID, msg *Message) {
	s, err := gp.host.NewStream(context.Background(), peerID, protocolID)
	if err != nil {
		log.Printf("gossip: failed to open stream to %s: %v", peerID, err)
		return
	}
	defer s.Close()

	if err := json.NewEncoder(s).Encode(msg); err != nil {
		log.Printf("gossip: failed to send message to %s: %v", peerID, err)
	}
}

// selectRandomPeers picks up to n distinct peers from peers.
func selectRandomPeers(peers []peer.ID, n int) []peer.ID {
	if len(peers) <= n {
		return peers
	}

	pool := append([]peer.ID(nil), peers...)
	selected := make([]peer.ID, n)
	for i := 0; i < n; i++ {
		idxByte := make([]byte, 1)
		rand.Read(idxByte)
		idx := int(idxByte[0]) % len(pool)
		selected[i] = pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	return selected
}

func generateMessageID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
