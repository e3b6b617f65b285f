package mesh

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// peerConn adapts a p2p.MsgReadWriter into an io.ReadWriteCloser the
// rest of the mesh router reads ZHTP wire frames over.
type peerConn struct {
	peer *p2p.Peer
	rw   p2p.MsgReadWriter
}

func (c *peerConn) Read(p []byte) (int, error) {
	msg, err := c.rw.ReadMsg()
	if err != nil {
		return 0, err
	}
	defer msg.Discard()
	n, err := msg.Payload.Read(p)
	return n, err
}

func (c *peerConn) Write(p []byte) (int, error) {
	if err := p2p.Send(c.rw, 0, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *peerConn) Close() error { return nil }

// TransportTCP runs the mesh protocol over go-ethereum's devp2p
// server, generalizing the teacher's internal/gcl/p2p.go from a single
// fixed protocol/port into one registrable Transport.
type TransportTCP struct {
	config  TCPConfig
	privKey *ecdsa.PrivateKey
	server  *p2p.Server

	mu      sync.Mutex
	handler PeerHandler
}

// TCPConfig configures the TCP/devp2p transport.
type TCPConfig struct {
	Port           int
	Seeds          []string
	MaxPeers       int
	ProtocolName   string
}

// NewTransportTCP creates a TCP transport signed by privKey.
func NewTransportTCP(config TCPConfig, privKey *ecdsa.PrivateKey) *TransportTCP {
	if config.MaxPeers == 0 {
		config.MaxPeers = 50
	}
	if config.ProtocolName == "" {
		config.ProtocolName = "zhtp"
	}
	return &TransportTCP{config: config, privKey: privKey}
}

func (t *TransportTCP) Name() string { return "tcp" }

// SetPeerHandler registers the callback invoked per connected peer.
func (t *TransportTCP) SetPeerHandler(h PeerHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *TransportTCP) Start() error {
	serverConfig := p2p.Config{
		PrivateKey:      t.privKey,
		Name:            "zhtp-mesh",
		ListenAddr:      fmt.Sprintf(":%d", t.config.Port),
		Protocols:       []p2p.Protocol{t.protocol()},
		MaxPeers:        t.config.MaxPeers,
		MaxPendingPeers: t.config.MaxPeers,
		NoDiscovery:     false,
	}

	for _, seed := range t.config.Seeds {
		node, err := enode.Parse(enode.ValidSchemes, seed)
		if err != nil {
			log.Printf("mesh: failed to parse seed node %s: %v", seed, err)
			continue
		}
		serverConfig.BootstrapNodes = append(serverConfig.BootstrapNodes, node)
	}

	t.server = &p2p.Server{Config: serverConfig}
	if err := t.server.Start(); err != nil {
		return fmt.Errorf("mesh: start tcp transport: %w", err)
	}
	return nil
}

func (t *TransportTCP) Stop() error {
	if t.server != nil {
		t.server.Stop()
	}
	return nil
}

func (t *TransportTCP) Dial(address string) (io.ReadWriteCloser, error) {
	node, err := enode.Parse(enode.ValidSchemes, address)
	if err != nil {
		return nil, fmt.Errorf("mesh: dial: invalid address %q: %w", address, err)
	}
	t.server.AddPeer(node)
	return nil, nil
}

func (t *TransportTCP) protocol() p2p.Protocol {
	return p2p.Protocol{
		Name:    t.config.ProtocolName,
		Version: 1,
		Length:  16,
		Run:     t.handlePeer,
	}
}

func (t *TransportTCP) handlePeer(peer *p2p.Peer, rw p2p.MsgReadWriter) error {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	conn := &peerConn{peer: peer, rw: rw}
	if handler != nil {
		handler(peer.RemoteAddr().String(), conn)
	}

	for {
		msg, err := rw.ReadMsg()
		if err != nil {
			return err
		}
		msg.Discard()
	}
}
