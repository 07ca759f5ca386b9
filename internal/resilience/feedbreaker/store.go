package feedbreaker

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// ErrLocked is returned by Store.Lock while another holder has the key.
var ErrLocked = errors.New("breaker key locked")

// Store holds the shared state of every feed circuit.
//
// Lock must fail with ErrLocked instead of blocking while the key is held;
// gobreaker retries it for a few seconds before giving up.
type Store interface {
	gobreaker.SharedDataStore
	// ListData returns every record written with SetData, keyed by name.
	ListData() (map[string][]byte, error)
}

// MemoryStore keeps circuit state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	locked map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		locked: make(map[string]bool),
	}
}

// Lock implements gobreaker.SharedDataStore.
func (m *MemoryStore) Lock(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[name] {
		return ErrLocked
	}
	m.locked[name] = true
	return nil
}

// Unlock implements gobreaker.SharedDataStore.
func (m *MemoryStore) Unlock(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, name)
	return nil
}

// GetData implements gobreaker.SharedDataStore. A missing name yields nil data.
func (m *MemoryStore) GetData(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[name]...), nil
}

// SetData implements gobreaker.SharedDataStore.
func (m *MemoryStore) SetData(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

// ListData implements Store.
func (m *MemoryStore) ListData() (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}
