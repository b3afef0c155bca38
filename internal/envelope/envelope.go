// Package envelope implements the server-side encryption layer applied to key material at rest.
//
// Sealed values are versioned JSON documents {"v":1,"alg":"AES-256-GCM","iv":"...","ct":"..."} with
// standard padded base64 fields. The client-side layer inside the plaintext is never touched.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// CurrentVersion is written by Seal.
	CurrentVersion = 1
	// AlgorithmAESGCM is the only algorithm of version 1.
	AlgorithmAESGCM = "AES-256-GCM"

	keySize  = 32
	hkdfInfo = "heirkeeper/server-envelope/v1"
)

var (
	ErrUnsupportedVersion   = errors.New("unsupported envelope version")
	ErrUnsupportedAlgorithm = errors.New("unsupported envelope algorithm")
	ErrMalformed            = errors.New("malformed envelope")
	ErrNotCanonical         = errors.New("value is not canonical base64")
)

// Envelope is the stored representation of a sealed value.
type Envelope struct {
	Version    int    `json:"v"`
	Algorithm  string `json:"alg"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ct"`
}

// Sealer seals and opens server-layer envelopes.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the envelope key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("envelope secret is empty")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive envelope key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns the JSON text of the envelope.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	iv := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	env := Envelope{
		Version:    CurrentVersion,
		Algorithm:  AlgorithmAESGCM,
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(s.aead.Seal(nil, iv, plaintext, aad(CurrentVersion, AlgorithmAESGCM))),
	}

	out, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(out), nil
}

// Open decrypts an envelope produced by Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(sealed), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Algorithm != AlgorithmAESGCM {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, env.Algorithm)
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad iv", ErrMalformed)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrMalformed)
	}

	plaintext, err := s.aead.Open(nil, iv, ct, aad(env.Version, env.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("failed to open envelope: %w", err)
	}
	return plaintext, nil
}

// SealString is Seal for text values.
func (s *Sealer) SealString(plaintext string) (string, error) {
	return s.Seal([]byte(plaintext))
}

// OpenString is Open for text values.
func (s *Sealer) OpenString(sealed string) (string, error) {
	out, err := s.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SealJSON marshals v and seals the result as a whole.
func (s *Sealer) SealJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.Seal(data)
}

// OpenJSON opens sealed and unmarshals the plaintext into v.
func (s *Sealer) OpenJSON(sealed string, v any) error {
	data, err := s.Open(sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal sealed value: %w", err)
	}
	return nil
}

func aad(version int, alg string) []byte {
	return []byte(fmt.Sprintf("v%d|%s", version, alg))
}
