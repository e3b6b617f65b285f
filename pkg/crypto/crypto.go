// Package crypto provides the module's hashing, keyed-MAC, and
// signature primitives; it has no key-encapsulation primitive. The
// signature types are named for the post-quantum roles the wire spec
// assigns them (PQSigPubKey, PQSignature) but are backed by secp256k1, the one
// signature scheme every retrieved example already depends on through
// go-ethereum — see DESIGN.md for why no lattice-based backend is
// wired in.
package crypto

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// HashSize is the fixed width of every content identifier in the
// module.
const HashSize = 32

// Hash is a fixed-width 32-byte content identifier. Ordering is
// defined bytewise, matching the Kademlia XOR-distance convention
// used by pkg/dht.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of h's bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Less implements the bytewise ordering spec.md mandates for Hash.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// HashFromBytes copies b into a Hash, erroring if b is not exactly
// HashSize bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("crypto: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// SumHash hashes the concatenation of all parts with BLAKE3.
func SumHash(parts ...[]byte) Hash {
	h := blake3.New(HashSize, nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// KeyedMAC computes a keyed BLAKE3 MAC of data under key, producing a
// 32-byte tag. Used by pkg/wire for request authentication.
func KeyedMAC(key, data []byte) [32]byte {
	h := blake3.New(32, key)
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyMAC compares a computed MAC against an expected one in
// constant time, as the wire protocol's replay/auth checks require.
func VerifyMAC(expected, got [32]byte) bool {
	return subtle.ConstantTimeCompare(expected[:], got[:]) == 1
}

// SignatureSize is the fixed width of a PQSignature.
const SignatureSize = 65

// PQSignature is a fixed-size signature value, shaped the way the
// wire and DHT specs expect a post-quantum signature to be carried
// (opaque fixed-size bytes), backed here by a secp256k1 recoverable
// signature.
type PQSignature [SignatureSize]byte

// PQSigPubKey is a compressed public key, the verification half of a
// peer identity.
type PQSigPubKey []byte

// KeyPair is a peer's signing identity.
type KeyPair struct {
	priv *ecdsa.PrivateKey
	pub  PQSigPubKey
}

// GenerateKeyPair creates a new random signing identity.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &KeyPair{
		priv: priv,
		pub:  ethcrypto.CompressPubkey(&priv.PublicKey),
	}, nil
}

// PublicKey returns the compressed public key bytes.
func (kp *KeyPair) PublicKey() PQSigPubKey { return kp.pub }

// NodeID derives the Kademlia node identity from the public key, the
// binding spec.md's identity invariant requires.
func (kp *KeyPair) NodeID() Hash { return SumHash(kp.pub) }

// Sign produces a PQSignature over the BLAKE3 hash of data.
func (kp *KeyPair) Sign(data []byte) (PQSignature, error) {
	digest := SumHash(data)
	sig, err := ethcrypto.Sign(digest[:], kp.priv)
	if err != nil {
		return PQSignature{}, fmt.Errorf("crypto: sign: %w", err)
	}
	var out PQSignature
	copy(out[:], sig)
	return out, nil
}

// Verify checks a PQSignature over data against pubKey.
func Verify(pubKey PQSigPubKey, data []byte, sig PQSignature) bool {
	digest := SumHash(data)
	recovered, err := ethcrypto.SigToPub(digest[:], sig[:])
	if err != nil {
		return false
	}
	candidate := ethcrypto.CompressPubkey(recovered)
	return subtle.ConstantTimeCompare(candidate, pubKey) == 1
}

// NodeIDFromPublicKey derives a node_id from any public key, used to
// check the identity-binding invariant on peers this process did not
// generate the key for.
func NodeIDFromPublicKey(pub PQSigPubKey) Hash {
	return SumHash(pub)
}
