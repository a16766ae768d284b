package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MasterKeyEnv is consulted by LoadMasterKey when no key file is given.
const MasterKeyEnv = "MEDREC_MASTER_KEY"

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrEmptyMasterKey     = errors.New("master key is empty")
)

// LoadMasterKey returns raw key material from, in order:
//  1. the file at path (if path is non-empty)
//  2. the MEDREC_MASTER_KEY environment variable
//  3. 32 fresh random bytes (ephemeral; ephemeral is reported as true)
//
// Ephemeral material means anything sealed will not survive a restart.
func LoadMasterKey(path string) (material []byte, ephemeral bool, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("read master key file: %w", err)
		}
		data = []byte(strings.TrimSpace(string(data)))
		if len(data) == 0 {
			return nil, false, ErrEmptyMasterKey
		}
		return data, false, nil
	}

	if v := os.Getenv(MasterKeyEnv); v != "" {
		return []byte(v), false, nil
	}

	material = make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, false, fmt.Errorf("generate ephemeral master key: %w", err)
	}
	return material, true, nil
}

// Sealer provides authenticated encryption (XChaCha20-Poly1305) under a key
// derived with HKDF-SHA256 from master key material. The info string binds
// the derived key to one purpose, so the same master key can back several
// sealers without sharing keys.
//
// Output format: [24-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a purpose-bound key from master.
func NewSealer(master []byte, info string) (*Sealer, error) {
	if len(master) == 0 {
		return nil, ErrEmptyMasterKey
	}

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts and authenticates data produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err := s.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// SealString is Seal for text values, returning base64url.
func (s *Sealer) SealString(plaintext string) (string, error) {
	out, err := s.Seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(encoded string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	out, err := s.Open(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
