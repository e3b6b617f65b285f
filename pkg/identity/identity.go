// Package identity implements peer identity and the node_id/public-key
// binding invariant: accepted peers must satisfy node_id == hash(public_key).
package identity

import (
	"fmt"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Identity is the triple spec.md names: node_id for Kademlia distance,
// public_key for verification, did for accountability, plus a
// device_id distinguishing multiple devices under one DID.
type Identity struct {
	NodeID    crypto.Hash
	PublicKey crypto.PQSigPubKey
	DID       string
	DeviceID  string
}

// New builds an Identity from a public key and derives node_id from
// it, guaranteeing the binding invariant holds by construction.
func New(pub crypto.PQSigPubKey, did, deviceID string) Identity {
	return Identity{
		NodeID:    crypto.NodeIDFromPublicKey(pub),
		PublicKey: pub,
		DID:       did,
		DeviceID:  deviceID,
	}
}

// Verify checks the identity-binding invariant for an identity
// received from the network: node_id must equal hash(public_key), and
// the public key must not be empty. There is deliberately no
// constructor that skips this check — a received identity always goes
// through Verify before being trusted.
func Verify(id Identity) error {
	if len(id.PublicKey) == 0 {
		return fmt.Errorf("identity: empty public key for node %s", id.NodeID)
	}
	want := crypto.NodeIDFromPublicKey(id.PublicKey)
	if want != id.NodeID {
		return fmt.Errorf("identity: node_id %s does not bind to public key (expected %s)", id.NodeID, want)
	}
	return nil
}
