// Package bolt implements the ability to read and write the blockchain and
// peers to a single embedded bbolt database file.
package bolt

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
	bbolt "go.etcd.io/bbolt"
)

// FileName is the name of the database file inside the data directory.
const FileName = "node.db"

var (
	bucket   = []byte("node")
	chainKey = []byte("chain")
	peersKey = []byte("peers")
)

// Bolt represents the serialization implementation for reading and storing
// the chain and peers in a bbolt database. This implements the
// storage.Storage interface.
type Bolt struct {
	db *bbolt.DB
}

// New opens or creates the database file inside dbPath.
func New(dbPath string) (*Bolt, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(dbPath, FileName), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// SaveChain stores the snapshot of the blocks.
func (b *Bolt) SaveChain(blocks []database.Block) error {
	data, err := storage.EncodeChain(blocks)
	if err != nil {
		return err
	}

	return b.put(chainKey, data)
}

// LoadChain reads the snapshot of the blocks.
func (b *Bolt) LoadChain() ([]database.Block, error) {
	data, err := b.get(chainKey)
	if err != nil {
		return nil, err
	}

	return storage.DecodeChain(data)
}

// SavePeers stores the set of hosts.
func (b *Bolt) SavePeers(hosts []string) error {
	return b.put(peersKey, storage.EncodePeers(hosts))
}

// LoadPeers reads the set of hosts.
func (b *Bolt) LoadPeers() ([]string, error) {
	data, err := b.get(peersKey)
	if err != nil {
		return nil, err
	}

	return storage.DecodePeers(data), nil
}

// =============================================================================

func (b *Bolt) put(key []byte, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

// get copies the value out since bbolt memory is only valid inside the
// transaction.
func (b *Bolt) get(key []byte) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return storage.ErrNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})

	return data, err
}
