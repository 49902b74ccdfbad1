package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/loginforge/authd/internal/domain"
)

// AESCipher wraps signed tokens in AES-256-CBC with PKCS7 padding before they
// travel in links or cookies. The wrap is defense-in-depth on top of the
// token signature; decryption failure is an internal fault and must never be
// reported as an expired token.
type AESCipher struct {
	key []byte
	iv  []byte
}

// NewAESCipher validates key/IV sizes up front. The IV is fixed per
// deployment: the plaintexts are already unique signed tokens, and a stable
// wrap keeps the idempotent OTP re-issue comparison possible.
func NewAESCipher(key, iv []byte) (*AESCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("cipher iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &AESCipher{key: key, iv: iv}, nil
}

func (c *AESCipher) EncryptOpaque(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: init cipher", domain.ErrEncryptionFailure)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (c *AESCipher) DecryptOpaque(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext", domain.ErrEncryptionFailure)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block aligned", domain.ErrEncryptionFailure)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: init cipher", domain.ErrEncryptionFailure)
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)
	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncryptionFailure, err)
	}
	return string(unpadded), nil
}

// KeyedHash produces a one-way HMAC-SHA256 digest for shared-secret
// comparisons that do not warrant a full signed token (fingerprints, codes).
func (c *AESCipher) KeyedHash(value string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashEquals compares two digests in constant time.
func (c *AESCipher) HashEquals(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
