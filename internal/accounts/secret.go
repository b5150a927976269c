package accounts

import "sync"

// SecretStore is the narrow interface to wherever secrets actually live
// (OS keychain, vault, environment). Keys are account IDs.
type SecretStore interface {
	// Get retrieves a secret. The second return value is false when no
	// secret is stored under the key.
	Get(key string) (string, bool, error)
	// Set stores a secret under the key, replacing any previous value.
	Set(key, secret string) error
	// Delete removes the secret under the key. Deleting a missing key is
	// not an error.
	Delete(key string) error
}

// MemorySecretStore is an in-memory SecretStore for tests and single-run
// deployments where tokens come from the environment.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

func (m *MemorySecretStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[key]
	return secret, ok, nil
}

func (m *MemorySecretStore) Set(key, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = secret
	return nil
}

func (m *MemorySecretStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}
