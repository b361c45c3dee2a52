package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal.
const sealedPrefix = "enc:v1:"

// Cipher seals short secrets such as connection URIs under a per-scope key
// derived from one master key.
type Cipher struct {
	master []byte
}

// New creates a Cipher. The master key must be KeySize bytes.
func New(master []byte) (*Cipher, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, KeySize)
	copy(k, master)
	return &Cipher{master: k}, nil
}

// IsSealed reports whether s was produced by Seal.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealedPrefix)
}

// Seal encrypts plaintext for scope. Empty input stays empty.
func (c *Cipher) Seal(scope, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := c.aead(scope)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	// nonce is prepended so the value is self-contained
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(scope))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value sealed for scope. Values without the sealed prefix
// are returned unchanged so records written before encryption was enabled
// stay readable.
func (c *Cipher) Open(scope, sealed string) (string, error) {
	if !IsSealed(sealed) {
		return sealed, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}

	aead, err := c.aead(scope)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}

	n := aead.NonceSize()
	if len(raw) < n+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := aead.Open(nil, raw[:n], raw[n:], []byte(scope))
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func (c *Cipher) aead(scope string) (cipher.AEAD, error) {
	key, err := deriveKey(c.master, scope)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
