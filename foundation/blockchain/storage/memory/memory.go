// Package memory implements the ability to read and write the blockchain and
// peers to memory.
package memory

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
)

// Memory represents the serialization implementation for reading and storing
// the chain in memory. The encoded form is kept so loads exercise the same
// decoding as the disk backends. This implements the storage.Storage interface.
type Memory struct {
	mu    sync.RWMutex
	chain []byte
	peers []byte
}

// New constructs an Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// SaveChain stores the encoded snapshot of the blocks.
func (m *Memory) SaveChain(blocks []database.Block) error {
	data, err := storage.EncodeChain(blocks)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chain = data
	return nil
}

// LoadChain returns the stored blocks.
func (m *Memory) LoadChain() ([]database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.chain == nil {
		return nil, storage.ErrNotFound
	}

	return storage.DecodeChain(m.chain)
}

// SavePeers stores the set of hosts.
func (m *Memory) SavePeers(hosts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.peers = storage.EncodePeers(hosts)
	return nil
}

// LoadPeers returns the stored hosts.
func (m *Memory) LoadPeers() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.peers == nil {
		return nil, storage.ErrNotFound
	}

	return storage.DecodePeers(m.peers), nil
}

// Raw returns the encoded chain snapshot. Tests use this to corrupt it.
func (m *Memory) Raw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]byte(nil), m.chain...)
}

// SetRaw replaces the encoded chain snapshot.
func (m *Memory) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chain = append([]byte(nil), data...)
}
