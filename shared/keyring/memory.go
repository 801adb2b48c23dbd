package keyring

import (
	"strings"
	"sync"
)

// MemoryProvider keeps secrets in process memory. It behaves like
// KeyringProvider and is meant for tests and ephemeral setups.
type MemoryProvider struct {
	mu      sync.Mutex
	secrets map[string]string
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider returns a provider seeded with secrets. The map is copied.
func NewMemoryProvider(secrets map[string]string) *MemoryProvider {
	p := &MemoryProvider{secrets: make(map[string]string, len(secrets))}
	for key, value := range secrets {
		p.secrets[key] = value
	}
	return p
}

func (p *MemoryProvider) Get(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value, ok := p.secrets[key]
	if !ok {
		return "", &SecretError{Op: "get", Key: key, Err: ErrNotFound}
	}
	return value, nil
}

func (p *MemoryProvider) Set(key string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &SecretError{Op: "set", Key: key, Err: ErrEmpty}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets[key] = value
	return nil
}

func (p *MemoryProvider) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.secrets[key]; !ok {
		return &SecretError{Op: "delete", Key: key, Err: ErrNotFound}
	}
	delete(p.secrets, key)
	return nil
}

// Has reports whether key is stored.
func (p *MemoryProvider) Has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.secrets[key]
	return ok
}
