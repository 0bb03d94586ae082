// Package keychain manages the database encryption key in the OS
// secret store. The key never lives next to the data it protects.
package keychain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keySize is the raw key length in bytes (256 bits).
const keySize = 32

// LoadOrCreateKey returns the hex-encoded database key for the given
// service/account pair, generating and persisting a fresh one on
// first run. A present but malformed entry is an error, never a
// silent regeneration: regenerating would orphan the encrypted data.
func LoadOrCreateKey(service, account string) (string, error) {
	existing, err := keyring.Get(service, account)
	if err == nil {
		if decodeErr := validate(existing); decodeErr != nil {
			return "", fmt.Errorf("stored key unusable: %w", decodeErr)
		}
		return existing, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("load key: %w", err)
	}

	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	key := hex.EncodeToString(raw)
	if err := keyring.Set(service, account, key); err != nil {
		return "", fmt.Errorf("save key: %w", err)
	}
	return key, nil
}

func validate(key string) error {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return err
	}
	if len(raw) != keySize {
		return fmt.Errorf("key is %d bytes, want %d", len(raw), keySize)
	}
	return nil
}
