// Package security provides envelope encryption and audit logging for
// values that leave plaintext on the local node: DHT values stored
// under AccessRestricted/AccessPrivate (see pkg/dht's AccessLevel) carry
// ciphertext produced here, and the node's lifecycle and consensus
// outcomes (start, stop, committed blocks, failed rounds) are recorded
// through the audit log rather than a bare log.Printf.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
)

// KeyManager holds an RSA key pair used to wrap per-value AES keys:
// each value gets a fresh AES-256-GCM key, and only that key (not the
// value) is RSA-OAEP encrypted, so KeyManager never directly bounds
// plaintext size the way a bare RSA encryption would.
type KeyManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewKeyManager generates a fresh RSA key pair.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return &KeyManager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
	}, nil
}

// PublicKey returns the manager's RSA public key, so a peer can be
// handed a PEM-able key without exposing the private key.
func (km *KeyManager) PublicKey() *rsa.PublicKey {
	return km.publicKey
}

// EncryptData encrypts plaintext with a fresh AES-GCM key, returning
// the ciphertext and that key's RSA encryption. Both values are what
// pkg/dht's ZkDhtValue.EncryptedData/EncryptedMetadata carry for a
// Restricted or Private value.
func (km *KeyManager) EncryptData(plaintext []byte) (ciphertext, encryptedKey []byte, err error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, fmt.Errorf("failed to generate AES key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nonce, nonce, plaintext, nil)

	encryptedKey, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, km.publicKey, key, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt AES key: %w", err)
	}

	return ciphertext, encryptedKey, nil
}

// DecryptData reverses EncryptData.
func (km *KeyManager) DecryptData(ciphertext, encryptedKey []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, km.privateKey, encryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt AES key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// GenerateNonce returns size random bytes, used wherever a caller needs
// a fresh nonce outside of EncryptData's own (e.g. replay-protection
// nonces at the wire layer).
func GenerateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// AuditLogger records security-relevant events: detected Byzantine
// faults, peer bans, and DHT access-control rejections. A disabled
// logger is a no-op rather than a conditional at every call site.
type AuditLogger struct {
	enabled bool
}

// NewAuditLogger creates an audit logger. enabled gates whether events
// are actually written; a disabled logger is cheap to call
// unconditionally from a hot path.
func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogSecurityEvent records a named security event with free-form detail.
func (al *AuditLogger) LogSecurityEvent(eventType, details string) {
	if !al.enabled {
		return
	}
	log.Printf("security: event [%s]: %s", eventType, details)
}

// LogAccess records an access-control decision against a resource.
func (al *AuditLogger) LogAccess(resource, action, nodeID string) {
	if !al.enabled {
		return
	}
	log.Printf("security: access %s %s by %s", action, resource, nodeID)
}
