// Package crypto seals configuration secrets with AES-256-GCM so they can be
// stored in config files as "enc:<base64>".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SecretPrefix marks a sealed value.
const SecretPrefix = "enc:"

var (
	ErrInvalidKey        = errors.New("crypto: invalid encryption key")
	ErrEncryptionFailed  = errors.New("crypto: encryption failed")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
	ErrInvalidCipherText = errors.New("crypto: invalid cipher text")
)

// newGCM derives a 32-byte key from any passphrase with SHA-256.
func newGCM(key string) (cipher.AEAD, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func Encrypt(plainText string, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return "", err
		}
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plainText), nil)), nil
}

func Decrypt(cipherText string, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return "", err
		}
		return "", ErrDecryptionFailed
	}

	data, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil || len(data) < gcm.NonceSize() {
		return "", ErrInvalidCipherText
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SecretPrefix)
}

// SealSecret returns value encrypted and prefixed with SecretPrefix.
func SealSecret(value, key string) (string, error) {
	enc, err := Encrypt(value, key)
	if err != nil {
		return "", err
	}
	return SecretPrefix + enc, nil
}

// OpenSecret decrypts a sealed value. Values without the prefix are returned
// unchanged.
func OpenSecret(value, key string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	return Decrypt(strings.TrimPrefix(value, SecretPrefix), key)
}
