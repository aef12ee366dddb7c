package users

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var hkdfInfoCacheTokens = []byte("agenda.users.cache.tokens.v1")

// tokenSealer encrypts access tokens with XChaCha20-Poly1305. A sealed blob
// is nonce || ciphertext+tag; the user id is bound as additional data so a
// blob cannot be replayed onto another user.
type tokenSealer struct {
	aead cipher.AEAD
}

func newTokenSealer(secret string) (*tokenSealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfoCacheTokens), key); err != nil {
		return nil, fmt.Errorf("derive cache key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cache cipher: %w", err)
	}
	return &tokenSealer{aead: aead}, nil
}

func (s *tokenSealer) seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (s *tokenSealer) open(blob, aad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(blob) < n+s.aead.Overhead() {
		return nil, errors.New("sealed tokens too short")
	}
	return s.aead.Open(nil, blob[:n], blob[n:], aad)
}
