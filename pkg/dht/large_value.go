package dht

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/zhtp/zhtp/internal/cas"
	"github.com/zhtp/zhtp/pkg/crypto"
)

// LargeValueThreshold is the payload size above which StoreLarge routes
// a value through the content-addressed store instead of embedding it
// directly in a ZkDhtValue. Values at or under this size travel in
// EncryptedData as before; anything larger only ever rides the DHT as a
// CAS object reference plus its Merkle root.
const LargeValueThreshold = 256 * 1024

// LargeValueStore wraps a Store with a content-addressed overflow path
// for payloads too large to replicate directly through the DHT's
// in-memory value map.
type LargeValueStore struct {
	*Store
	objects *cas.CAS
}

// NewLargeValueStore wraps store with objects as the large-object
// backing store.
func NewLargeValueStore(store *Store, objects *cas.CAS) *LargeValueStore {
	return &LargeValueStore{Store: store, objects: objects}
}

// StoreLarge stores data under key, routing it through the
// content-addressed store when it exceeds LargeValueThreshold. The
// ZkDhtValue recorded in the DHT's value map always carries only the
// CAS object CID and Merkle root for an overflowed payload, never the
// payload itself — keeping the map's footprint bounded regardless of
// how large individual values get.
func (l *LargeValueStore) StoreLarge(ctx context.Context, key crypto.Hash, data []byte, v ZkDhtValue) error {
	if len(data) <= LargeValueThreshold {
		v.EncryptedData = data
		l.StoreValue(key, v)
		return nil
	}

	info, err := l.objects.Store(ctx, bytes.NewReader(data), map[string]string{
		"dht_key": key.String(),
	})
	if err != nil {
		return fmt.Errorf("dht: failed to store large value in CAS: %w", err)
	}

	v.EncryptedData = []byte(info.CID)
	v.CASMerkleRoot = info.MerkleRoot
	l.StoreValue(key, v)
	return nil
}

// FetchLarge resolves a value stored via StoreLarge back to its full
// payload, dereferencing the CAS object if the value overflowed.
func (l *LargeValueStore) FetchLarge(ctx context.Context, key crypto.Hash, proof []byte, checker AccessChecker, now time.Time) ([]byte, error) {
	v, err := l.FindValue(key, proof, checker, now)
	if err != nil {
		return nil, err
	}

	if v.CASMerkleRoot == "" {
		return v.EncryptedData, nil
	}

	cid := string(v.EncryptedData)
	reader, err := l.objects.Retrieve(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("dht: failed to retrieve large value %s from CAS: %w", cid, err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("dht: failed to read large value %s from CAS: %w", cid, err)
	}
	return buf.Bytes(), nil
}
