package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// TokenPrefix marks values produced by Encrypt
const TokenPrefix = "v1:"

var (
	ErrKeyNotConfigured = errors.New("encryption key is not configured")
	ErrInvalidKey       = errors.New("invalid encryption key")
	ErrDecrypt          = errors.New("invalid encrypted data or wrong encryption key")
)

var encoding = base64.RawURLEncoding

// Kind tells how a stored value was read back
type Kind int

const (
	// KindDecrypted means the stored value was a token and was authenticated
	KindDecrypted Kind = iota + 1
	// KindPlaintextLegacy means the stored value predates encryption
	KindPlaintextLegacy
)

func (k Kind) String() string {
	switch k {
	case KindDecrypted:
		return "decrypted"
	case KindPlaintextLegacy:
		return "plaintext_legacy"
	default:
		return "unknown"
	}
}

// Result is the outcome of Decrypt
type Result struct {
	Value string
	Kind  Kind
}

// Legacy reports whether the value still needs to be migrated
func (r Result) Legacy() bool { return r.Kind == KindPlaintextLegacy }

// Cipher encrypts column values with XChaCha20-Poly1305
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a raw 32-byte key
func New(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Cipher{aead: aead}, nil
}

// NewFromBase64 builds a Cipher from a base64 (std or url) encoded key, the
// format DB_ENCRYPTION_KEY is stored in.
func NewFromBase64(encoded string) (*Cipher, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrKeyNotConfigured
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			return New(key)
		}
	}
	return nil, fmt.Errorf("%w: not base64", ErrInvalidKey)
}

// GenerateKey returns a fresh base64 encoded key
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext into a prefixed token. The empty string stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return TokenPrefix + encoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Values without the token prefix
// are returned as KindPlaintextLegacy; a prefixed value that does not
// authenticate is an error.
func (c *Cipher) Decrypt(value string) (Result, error) {
	if !IsEncrypted(value) {
		return Result{Value: value, Kind: KindPlaintextLegacy}, nil
	}

	raw, err := encoding.DecodeString(strings.TrimPrefix(value, TokenPrefix))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return Result{}, ErrDecrypt
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Result{}, ErrDecrypt
	}
	return Result{Value: string(plain), Kind: KindDecrypted}, nil
}

// IsEncrypted reports whether value carries the token prefix
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, TokenPrefix)
}

// HashToken returns the hex SHA-256 of value. Tokens are stored encrypted
// with random nonces, so lookups go through this deterministic digest.
func HashToken(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
