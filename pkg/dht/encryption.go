package dht

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/zhtp/zhtp/internal/security"
	"github.com/zhtp/zhtp/pkg/crypto"
)

// SealedStore wraps a Store with envelope encryption for values stored
// under AccessRestricted or AccessPrivate: EncryptedData and
// EncryptedMetadata genuinely hold ciphertext rather than the field
// names being aspirational. AccessRequirements is left untouched by
// sealing — it still carries whatever access-policy proof requirement
// CheckAccess evaluates; the wrapped per-value AES key rides inside
// EncryptedData/EncryptedMetadata themselves, framed with a length
// prefix, so the two concerns (proof-gated access vs. ciphertext
// confidentiality) never collide in the same field.
type SealedStore struct {
	*Store
	keys *security.KeyManager
}

// NewSealedStore wraps store, sealing/unsealing values with keys.
func NewSealedStore(store *Store, keys *security.KeyManager) *SealedStore {
	return &SealedStore{Store: store, keys: keys}
}

// sealField encrypts data and frames it as
// [2-byte wrapped-key length][wrapped key][ciphertext].
func (s *SealedStore) sealField(data []byte) ([]byte, error) {
	ciphertext, wrappedKey, err := s.keys.EncryptData(data)
	if err != nil {
		return nil, err
	}
	if len(wrappedKey) > 0xFFFF {
		return nil, fmt.Errorf("dht: wrapped key too large to frame")
	}

	out := make([]byte, 2+len(wrappedKey)+len(ciphertext))
	binary.BigEndian.PutUint16(out[:2], uint16(len(wrappedKey)))
	copy(out[2:2+len(wrappedKey)], wrappedKey)
	copy(out[2+len(wrappedKey):], ciphertext)
	return out, nil
}

// unsealField reverses sealField.
func (s *SealedStore) unsealField(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, fmt.Errorf("dht: sealed field too short")
	}
	keyLen := int(binary.BigEndian.Uint16(framed[:2]))
	if len(framed) < 2+keyLen {
		return nil, fmt.Errorf("dht: sealed field truncated")
	}
	wrappedKey := framed[2 : 2+keyLen]
	ciphertext := framed[2+keyLen:]
	return s.keys.DecryptData(ciphertext, wrappedKey)
}

// Seal stores plaintext under key, encrypting it (and metadata, if
// present) unless v's AccessLevel is AccessPublic.
func (s *SealedStore) Seal(key crypto.Hash, plaintext []byte, metadata []byte, v ZkDhtValue) error {
	if v.AccessLevel == AccessPublic {
		v.EncryptedData = plaintext
		v.EncryptedMetadata = metadata
		s.StoreValue(key, v)
		return nil
	}

	sealedData, err := s.sealField(plaintext)
	if err != nil {
		return fmt.Errorf("dht: failed to seal value: %w", err)
	}
	v.EncryptedData = sealedData

	if len(metadata) > 0 {
		sealedMeta, err := s.sealField(metadata)
		if err != nil {
			return fmt.Errorf("dht: failed to seal metadata: %w", err)
		}
		v.EncryptedMetadata = sealedMeta
	}

	s.StoreValue(key, v)
	return nil
}

// Unseal retrieves and decrypts the value at key.
func (s *SealedStore) Unseal(key crypto.Hash, proof []byte, checker AccessChecker, now time.Time) ([]byte, error) {
	v, err := s.FindValue(key, proof, checker, now)
	if err != nil {
		return nil, err
	}
	if v.AccessLevel == AccessPublic {
		return v.EncryptedData, nil
	}

	plaintext, err := s.unsealField(v.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("dht: failed to unseal value: %w", err)
	}
	return plaintext, nil
}
