package pass

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"eventpass/storage"
)

// Manager adapts a raw storage.Database into the typed Storage interface the
// pass ledgers consume, using RLP for stored records.
type Manager struct {
	db storage.Database
}

// NewManager binds the state manager to its backing database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the stored record for key into out. The boolean reports
// whether a record existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("pass: state manager not configured")
	}
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("pass: decode record %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes and persists the record under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("pass: state manager not configured")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("pass: encode record %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}
