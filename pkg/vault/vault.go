// Package vault isolates credential material in the host OS secret store.
// The topology store never sees plaintext credentials, only the opaque
// references minted here.
package vault

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

// ServiceName is the keychain service under which entries are stored.
const ServiceName = "netval-app"

// Material is the credential payload for one device. Password and KeyPath
// are alternatives; at least a username is required.
type Material struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
}

// Vault stores and retrieves credential material by opaque reference.
type Vault interface {
	Store(projectID, deviceID string, m Material) (string, error)
	Load(ref string) (Material, error)
	Delete(ref string) error
}

// keyringVault is the OS secret store implementation. The underlying OS
// API is single-writer; no extra locking is needed here.
type keyringVault struct{}

// New returns a Vault backed by the host OS secret store.
func New() Vault {
	return keyringVault{}
}

func (keyringVault) Store(projectID, deviceID string, m Material) (string, error) {
	if m.Username == "" {
		return "", fmt.Errorf("credential username is required")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	ref := fmt.Sprintf("%s:%s:%s", projectID, deviceID, uuid.NewString())
	if err := keyring.Set(ServiceName, ref, string(payload)); err != nil {
		return "", fmt.Errorf("storing credential: %w", err)
	}
	return ref, nil
}

func (keyringVault) Load(ref string) (Material, error) {
	payload, err := keyring.Get(ServiceName, ref)
	if err != nil {
		return Material{}, fmt.Errorf("loading credential: %w", err)
	}
	var m Material
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Material{}, fmt.Errorf("decoding credential: %w", err)
	}
	return m, nil
}

func (keyringVault) Delete(ref string) error {
	if err := keyring.Delete(ServiceName, ref); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// memoryVault keeps material in a map, for tests and platforms without a
// secret store.
type memoryVault struct {
	entries map[string]Material
}

// NewMemory returns an in-memory Vault.
func NewMemory() Vault {
	return &memoryVault{entries: make(map[string]Material)}
}

func (v *memoryVault) Store(projectID, deviceID string, m Material) (string, error) {
	if m.Username == "" {
		return "", fmt.Errorf("credential username is required")
	}
	ref := fmt.Sprintf("%s:%s:%s", projectID, deviceID, uuid.NewString())
	v.entries[ref] = m
	return ref, nil
}

func (v *memoryVault) Load(ref string) (Material, error) {
	m, ok := v.entries[ref]
	if !ok {
		return Material{}, fmt.Errorf("credential ref not found")
	}
	return m, nil
}

func (v *memoryVault) Delete(ref string) error {
	delete(v.entries, ref)
	return nil
}
