package main

import (
	"context"
	"crypto/ecdsa"
	crand "crypto/rand"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"

	"github.com/zhtp/zhtp/internal/cas"
	"github.com/zhtp/zhtp/internal/consensus"
	"github.com/zhtp/zhtp/internal/gossip"
	"github.com/zhtp/zhtp/internal/security"
	"github.com/zhtp/zhtp/internal/storage"
	"github.com/zhtp/zhtp/pkg/config"
	zhtpcrypto "github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/dht"
	"github.com/zhtp/zhtp/pkg/mesh"
)

// maxPropagatedPayload matches the ZHTP wire protocol's own frame cap
// (spec's 16 MiB max payload) — propagation validation rejects anything
// larger before it ever reaches a peer.
const maxPropagatedPayload = 16 << 20

func main() {
	configFile := flag.String("config", "./config/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewBadgerStore(cfg.Storage.Path, cfg.Storage.CacheSize, cfg.Storage.Sync)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	keyManager, err := security.NewKeyManager()
	if err != nil {
		log.Fatalf("Failed to initialize security: %v", err)
	}
	audit := security.NewAuditLogger(cfg.Security.AuditEnabled)

	casStore, err := cas.NewCAS(
		cfg.CAS.Endpoint,
		cfg.CAS.AccessKey,
		cfg.CAS.SecretKey,
		cfg.CAS.Bucket,
		cfg.CAS.UseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize CAS: %v", err)
	}

	nodeKey, err := zhtpcrypto.GenerateKeyPair()
	if err != nil {
		log.Fatalf("Failed to generate node identity: %v", err)
	}
	selfID := nodeKey.NodeID()
	log.Printf("node identity: %s", selfID)

	gossipProto, err := gossip.NewGossipProtocol(cfg.Gossip.ListenAddress, selfID.String())
	if err != nil {
		log.Fatalf("Failed to initialize gossip: %v", err)
	}
	defer gossipProto.Stop()

	for _, peerAddr := range cfg.Gossip.BootstrapPeers {
		if err := gossipProto.AddPeer(peerAddr); err != nil {
			log.Printf("Failed to add bootstrap peer %s: %v", peerAddr, err)
		}
	}

	dhtStore := dht.NewSealedStore(dht.NewStore(selfID, dht.DefaultReplicationPolicy()), keyManager)

	peerRegistry := mesh.NewPeerRegistry()
	reputation := mesh.NewReputationTracker(peerRegistry, mesh.DefaultReputationWeights())

	validators := consensus.NewValidatorSet([]consensus.Validator{
		{NodeID: selfID, PublicKey: nodeKey.PublicKey(), VotingPower: 1},
	})
	engine := consensus.NewEngine(consensus.Context{
		Validators: validators,
		Self:       selfID,
		Timeouts: consensus.TimeoutConfig{
			Propose:   cfg.Consensus.TimeoutPropose,
			PreVote:   cfg.Consensus.TimeoutPrevote,
			PreCommit: cfg.Consensus.TimeoutPrecommit,
		},
		Reputation: reputation,
	})
	if err := engine.SetIdentity(nodeKey); err != nil {
		log.Fatalf("Failed to set consensus identity: %v", err)
	}

	tcpKey, err := ecdsa.GenerateKey(crypto.S256(), crand.Reader)
	if err != nil {
		log.Fatalf("Failed to generate mesh transport key: %v", err)
	}

	conns := newPeerConnStore()
	tcpTransport := mesh.NewTransportTCP(mesh.TCPConfig{
		Port:     mustPort(cfg.Mesh.ListenAddress),
		Seeds:    cfg.Mesh.Bootstrap,
		MaxPeers: cfg.Mesh.MaxPeers,
	}, tcpKey)
	// Every connection devp2p hands us — inbound or the result of an
	// earlier Dial — lands here; this is the only place a live conn to
	// a peer exists, so it both registers the peer for propagation/
	// reputation and remembers the conn the propagator later writes to.
	tcpTransport.SetPeerHandler(func(peerAddr string, conn io.ReadWriteCloser) {
		conns.register(peerAddr, conn)
		peerRegistry.Upsert(mesh.PeerRecord{
			ID:         zhtpcrypto.SumHash([]byte(peerAddr)),
			Addresses:  []string{peerAddr},
			Transports: []string{"tcp"},
			LastSeen:   time.Now(),
		})
	})

	transports := mesh.NewTransportSet()
	transports.Add(tcpTransport)
	if err := transports.StartAll(); err != nil {
		log.Fatalf("Failed to start mesh transports: %v", err)
	}
	defer transports.StopAll()

	if err := gossipProto.Start(); err != nil {
		log.Fatalf("Failed to start gossip protocol: %v", err)
	}

	propagator := mesh.NewPropagator(peerRegistry, validatePropagatedPayload, conns.sender(), reputation)

	driver := newConsensusDriver(engine, audit, propagator)
	go driver.run(ctx, cfg.Consensus.BlockTime)

	audit.LogSecurityEvent("node_start", "zhtpd started, identity "+selfID.String())
	_ = casStore
	_ = dhtStore

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	audit.LogSecurityEvent("node_stop", "zhtpd shutting down")
}

// mustPort extracts a bindable port from a "host:port" listen address,
// defaulting to 26656 if it cannot be parsed (mesh.TCPConfig wants a
// bare port, not the full devp2p listen string).
func mustPort(listenAddr string) int {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 26656
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 26656
	}
	return port
}

// validatePropagatedPayload is Propagator's structural gate: this devnet
// doesn't yet decode payloads back into consensus.Block before forwarding
// (that belongs to the wire layer once it reads propagated frames), so
// the only check available here is the same size cap the wire protocol
// itself enforces.
func validatePropagatedPayload(payload []byte) bool {
	return len(payload) > 0 && len(payload) <= maxPropagatedPayload
}

// peerConnStore remembers the live connection devp2p handed us per peer
// address, since mesh.Transport.Dial only triggers an async connection
// attempt and returns no usable conn itself — the conn only becomes
// available once the peer handler callback fires.
type peerConnStore struct {
	mu    sync.Mutex
	conns map[string]io.ReadWriteCloser
}

func newPeerConnStore() *peerConnStore {
	return &peerConnStore{conns: make(map[string]io.ReadWriteCloser)}
}

func (c *peerConnStore) register(addr string, conn io.ReadWriteCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[addr] = conn
}

func (c *peerConnStore) get(addr string) (io.ReadWriteCloser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[addr]
	return conn, ok
}

// sender adapts the store into a mesh.Sender: a peer with no registered
// address or no live connection yet simply fails this send, which
// Propagate counts the same as any other delivery failure.
func (c *peerConnStore) sender() mesh.Sender {
	return func(peer mesh.PeerRecord, payload []byte) error {
		if len(peer.Addresses) == 0 {
			return fmt.Errorf("mesh: peer %s has no known address", peer.ID)
		}
		conn, ok := c.get(peer.Addresses[0])
		if !ok {
			return fmt.Errorf("mesh: no open connection to %s", peer.Addresses[0])
		}
		_, err := conn.Write(payload)
		return err
	}
}

// consensusDriver runs the engine's event loop outside of HandleEvent
// itself: feeding RoundCompleted / RoundFailed back in as the next
// StartRound (it schedules no per-step TimeoutEvent), since HandleEvent
// is a pure function of one event and never reaches for a clock or a
// timer on its own. Every committed block is also fanned out to the mesh
// through propagator, the same path a block arriving from a peer would
// take.
type consensusDriver struct {
	engine     *consensus.Engine
	audit      *security.AuditLogger
	propagator *mesh.Propagator
	height     uint64
}

func newConsensusDriver(engine *consensus.Engine, audit *security.AuditLogger, propagator *mesh.Propagator) *consensusDriver {
	return &consensusDriver{engine: engine, audit: audit, propagator: propagator, height: 1}
}

func (d *consensusDriver) run(ctx context.Context, blockTime time.Duration) {
	d.advance(ctx, consensus.StartRound{Height: d.height, Trigger: "height_advance"})

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(blockTime):
		}
	}
}

// advance feeds event into the engine and recursively re-feeds
// whatever it produces that HandleEvent itself accepts as input
// (ProposalReceived, VoteReceived): the engine only records a vote and
// reports it, it never re-enters itself to check quorum, so something
// outside it must close that loop one step at a time until a round
// reaches RoundCompleted or RoundFailed.
func (d *consensusDriver) advance(ctx context.Context, event consensus.Event) {
	out, err := d.engine.HandleEvent(event)
	if err != nil {
		log.Printf("consensus: %v", err)
		return
	}
	for _, ev := range out {
		switch e := ev.(type) {
		case consensus.ProposalReceived, consensus.VoteReceived:
			d.advance(ctx, ev)
		case consensus.RoundCompleted:
			d.audit.LogSecurityEvent("block_committed", e.Block.Hash().String())
			d.propagateBlock(e.Block)
			d.height = e.Height + 1
			d.advance(ctx, consensus.StartRound{Height: d.height, Trigger: "height_advance"})
		case consensus.RoundFailed:
			d.audit.LogSecurityEvent("round_failed", e.Reason)
			d.advance(ctx, consensus.StartRound{Height: e.Height, Trigger: "timeout"})
		}
	}
}

// propagateBlock fans a freshly committed block out to the mesh. Its
// "from" peer is the zero NodeID — this block originated locally, not
// from a peer to credit or penalize — so Propagate's reputation updates
// against it are simply no-ops (the zero ID is never a registered peer).
func (d *consensusDriver) propagateBlock(block *consensus.Block) {
	payload, err := cbor.Marshal(block)
	if err != nil {
		log.Printf("consensus: failed to encode committed block for propagation: %v", err)
		return
	}
	d.propagator.Propagate(block.Hash(), payload, zhtpcrypto.Hash{})
}
