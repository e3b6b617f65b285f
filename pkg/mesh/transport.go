package mesh

import (
	"fmt"
	"io"
)

// PeerHandler is invoked once per inbound or outbound connection a
// transport establishes, with a stream the mesh router reads/writes
// wire frames over.
type PeerHandler func(peerAddress string, conn io.ReadWriteCloser)

// Transport is the pluggable connection layer the mesh router runs
// over. Every concrete transport (TCP/QUIC, Bluetooth LE, RFCOMM)
// implements this same small interface so PeerRegistry, reputation,
// rate limiting, and propagation are transport-agnostic.
type Transport interface {
	Name() string
	Start() error
	Stop() error
	Dial(address string) (io.ReadWriteCloser, error)
	SetPeerHandler(PeerHandler)
}

// Registry of known transport constructors by name, so cmd/zhtpd can
// wire up whichever transports a node's configuration enables.
type TransportSet struct {
	transports map[string]Transport
}

// NewTransportSet creates an empty set.
func NewTransportSet() *TransportSet {
	return &TransportSet{transports: make(map[string]Transport)}
}

// Add registers a transport under its own Name().
func (s *TransportSet) Add(t Transport) {
	s.transports[t.Name()] = t
}

// Get returns a registered transport by name.
func (s *TransportSet) Get(name string) (Transport, bool) {
	t, ok := s.transports[name]
	return t, ok
}

// StartAll starts every registered transport, stopping any that
// already started if one fails.
func (s *TransportSet) StartAll() error {
	started := make([]Transport, 0, len(s.transports))
	for _, t := range s.transports {
		if err := t.Start(); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return fmt.Errorf("mesh: start transport %s: %w", t.Name(), err)
		}
		started = append(started, t)
	}
	return nil
}

// StopAll stops every registered transport, collecting but not
// stopping early on errors.
func (s *TransportSet) StopAll() error {
	var firstErr error
	for _, t := range s.transports {
		if err := t.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
