package fieldcrypt

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Redacted replaces secrets in JSON output and logs
const Redacted = "********"

var (
	_defaultMu     sync.RWMutex
	_defaultCipher *Cipher
	_legacyLogger  = zap.NewNop()
)

// UseCipher sets the cipher EncryptedString columns are read and written with
func UseCipher(c *Cipher) {
	_defaultMu.Lock()
	defer _defaultMu.Unlock()
	_defaultCipher = c
}

// UseLogger sets the logger warned when a legacy plaintext value is read
func UseLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	_defaultMu.Lock()
	defer _defaultMu.Unlock()
	_legacyLogger = l
}

func defaults() (*Cipher, *zap.Logger) {
	_defaultMu.RLock()
	defer _defaultMu.RUnlock()
	return _defaultCipher, _legacyLogger
}

// EncryptedString is a string column stored as a token. It holds the
// plaintext in memory, is sealed by Value and opened by Scan.
type EncryptedString string

// Reveal returns the plaintext
func (s EncryptedString) Reveal() string { return string(s) }

// String redacts the value so it never reaches logs by accident
func (s EncryptedString) String() string {
	if s == "" {
		return ""
	}
	return Redacted
}

// Value implements driver.Valuer
func (s EncryptedString) Value() (driver.Value, error) {
	if s == "" {
		return "", nil
	}
	c, _ := defaults()
	if c == nil {
		return nil, ErrKeyNotConfigured
	}
	return c.Encrypt(string(s))
}

// Scan implements sql.Scanner
func (s *EncryptedString) Scan(src any) error {
	var stored string
	switch v := src.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		stored = v
	case []byte:
		stored = string(v)
	default:
		return fmt.Errorf("fieldcrypt: cannot scan %T into EncryptedString", src)
	}

	if stored == "" {
		*s = ""
		return nil
	}

	c, log := defaults()
	if c == nil {
		if IsEncrypted(stored) {
			return ErrKeyNotConfigured
		}
		log.Warn("reading unencrypted legacy value")
		*s = EncryptedString(stored)
		return nil
	}

	res, err := c.Decrypt(stored)
	if err != nil {
		return err
	}
	if res.Legacy() {
		log.Warn("reading unencrypted legacy value")
	}
	*s = EncryptedString(res.Value)
	return nil
}

// MarshalJSON never exposes the secret
func (s EncryptedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts plaintext from API payloads
func (s *EncryptedString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = EncryptedString(v)
	return nil
}
