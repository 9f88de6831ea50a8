// Package vault provides AES-GCM sealing of partition files at rest.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	keySize  = 32 // AES-256
	saltSize = 16
	saltFile = "_vault.salt"
)

// ErrDecrypt is returned for a wrong key or tampered data.
var ErrDecrypt = errors.New("decryption failed (wrong key or tampered data)")

// Encrypt seals plaintext with a 32-byte key. The nonce is prepended to the output.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Create the unique nonce (number used once) for this encryption
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, actual := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, actual, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveKey stretches a passphrase into an AES-256 key with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keySize)
}

// Box seals values with a fixed key.
type Box struct {
	key []byte
}

// NewBox wraps a 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(key))
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &Box{key: k}, nil
}

// OpenBox derives the key for a data directory from a passphrase. The salt is
// created on first use and kept next to the data, so the same passphrase
// opens the same directory again.
func OpenBox(dataDir, passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase is empty")
	}
	salt, err := loadOrCreateSalt(filepath.Join(dataDir, saltFile))
	if err != nil {
		return nil, err
	}
	return NewBox(DeriveKey(passphrase, salt))
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltSize {
			return nil, fmt.Errorf("vault salt %s has %d bytes, want %d", path, len(salt), saltSize)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

// Seal implements engine.Sealer.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	return Encrypt(plaintext, b.key)
}

// Open implements engine.Sealer.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	return Decrypt(sealed, b.key)
}
