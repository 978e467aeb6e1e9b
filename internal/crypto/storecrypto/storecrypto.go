// Package storecrypto seals local store files at rest. Clinical data sits on a
// shared reception-desk machine, so every value is encrypted with
// XChaCha20-Poly1305 under a per-installation key kept next to the data.
package storecrypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyLen is the size of the store key in bytes.
const KeyLen = chacha20poly1305.KeySize

// LoadOrCreateKey reads the key file, generating a fresh key on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != KeyLen {
			return nil, fmt.Errorf("key file %s: bad length %d", path, len(key))
		}
		return key, nil
	case errors.Is(err, os.ErrNotExist):
		key = make([]byte, KeyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, key, 0o600); err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, err
	}
}

// Seal encrypts plaintext with a random nonce prefixed to the ciphertext. The
// store key name is bound as AAD so a sealed value cannot be swapped between
// keys of the namespace.
func Seal(key []byte, name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, []byte(name))...)
	return out, nil
}

// Open decrypts a value produced by Seal for the same key name.
func Open(key []byte, name string, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed value too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, []byte(name))
}
