package credential

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"
)

const serviceName = "postale"

// ErrNotFound is returned when no password is stored for an address.
var ErrNotFound = errors.New("credential: not found")

// Vault stores mailbox passwords in the system keyring, keyed by account
// address.
type Vault struct {
	ring keyring.Keyring
}

// defaultConfig returns the keyring configuration used outside tests.
func defaultConfig() keyring.Config {
	return keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/postale/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("postale-file-key"),
		KeychainTrustApplication: true,
	}
}

// Open returns a Vault backed by the first available system keyring.
func Open() (*Vault, error) {
	return openWith(defaultConfig())
}

func openWith(cfg keyring.Config) (*Vault, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Vault{ring: ring}, nil
}

// Get retrieves the password stored for address.
func (v *Vault) Get(address string) (string, error) {
	item, err := v.ring.Get(address)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("credential %q: %w", address, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", address, err)
	}

	return string(item.Data), nil
}

// Set stores password for address, replacing any previous value.
func (v *Vault) Set(address string, password string) error {
	err := v.ring.Set(keyring.Item{
		Key:   address,
		Data:  []byte(password),
		Label: "postale: " + address,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", address, err)
	}

	return nil
}

// Delete removes the password for address. Deleting a missing entry is
// not an error.
func (v *Vault) Delete(address string) error {
	err := v.ring.Remove(address)
	if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", address, err)
	}

	return nil
}
