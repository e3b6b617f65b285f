package mesh

import (
	"fmt"
	"io"
	"sync"
)

// Dialer opens a connection to address over some underlying transport
// medium. Real Bluetooth LE/RFCOMM stacks are OS-specific and not
// reachable from a portable Go module without cgo bindings this
// module does not depend on; BLE and RFCOMM transports instead take an
// injectable Dialer so the same handshake/registry-upsert pipeline
// runs regardless of what actually carries the bytes (see DESIGN.md).
type Dialer func(address string) (io.ReadWriteCloser, error)

// Listener accepts inbound connections for a structurally-modeled
// transport, handed connections the same way a real radio stack would
// after an inbound pairing/connection completes.
type Listener interface {
	Accept() (io.ReadWriteCloser, string, error)
	Close() error
}

// bluetoothTransport is the shared implementation behind TransportBLE
// and TransportRFCOMM: both run the identical accept-loop/dial
// pipeline over an injected Listener/Dialer, differing only in name
// and in which real radio stack a production build would inject.
type bluetoothTransport struct {
	name     string
	listener Listener
	dial     Dialer

	mu      sync.Mutex
	handler PeerHandler
	quit    chan struct{}
	wg      sync.WaitGroup
}

func newBluetoothTransport(name string, listener Listener, dial Dialer) *bluetoothTransport {
	return &bluetoothTransport{name: name, listener: listener, dial: dial, quit: make(chan struct{})}
}

func (t *bluetoothTransport) Name() string { return t.name }

func (t *bluetoothTransport) SetPeerHandler(h PeerHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *bluetoothTransport) Start() error {
	if t.listener == nil {
		return nil
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

func (t *bluetoothTransport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, addr, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.quit:
				return
			default:
				continue
			}
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			go handler(addr, conn)
		}
	}
}

func (t *bluetoothTransport) Stop() error {
	close(t.quit)
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
	return nil
}

func (t *bluetoothTransport) Dial(address string) (io.ReadWriteCloser, error) {
	if t.dial == nil {
		return nil, fmt.Errorf("mesh: %s transport has no dialer configured", t.name)
	}
	return t.dial(address)
}

// TransportBLE models a Bluetooth Low Energy GATT-based connection.
type TransportBLE struct {
	*bluetoothTransport
}

// NewTransportBLE creates a BLE transport over listener/dial, either
// of which may be nil for a node that only dials out, or only accepts.
func NewTransportBLE(listener Listener, dial Dialer) *TransportBLE {
	return &TransportBLE{bluetoothTransport: newBluetoothTransport("ble", listener, dial)}
}

// TransportRFCOMM models a classic Bluetooth RFCOMM serial connection.
type TransportRFCOMM struct {
	*bluetoothTransport
}

// NewTransportRFCOMM creates an RFCOMM transport over listener/dial.
func NewTransportRFCOMM(listener Listener, dial Dialer) *TransportRFCOMM {
	return &TransportRFCOMM{bluetoothTransport: newBluetoothTransport("rfcomm", listener, dial)}
}
