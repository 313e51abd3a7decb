// Package disk implements the ability to read and write the blockchain and
// peers to files on disk.
package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
)

// Names of the files written inside the data directory.
const (
	ChainFile = "chain.json"
	PeerFile  = "peers.txt"
)

// Disk represents the serialization implementation for reading and storing
// the chain and peers in files on disk. This implements the storage.Storage
// interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since every write opens
// and closes its own file.
func (d *Disk) Close() error {
	return nil
}

// SaveChain writes the snapshot of the blocks in a human readable format.
func (d *Disk) SaveChain(blocks []database.Block) error {
	data, err := storage.EncodeChain(blocks)
	if err != nil {
		return err
	}

	return d.write(ChainFile, data)
}

// LoadChain reads the snapshot of the blocks.
func (d *Disk) LoadChain() ([]database.Block, error) {
	data, err := d.read(ChainFile)
	if err != nil {
		return nil, err
	}

	return storage.DecodeChain(data)
}

// SavePeers writes one host per line.
func (d *Disk) SavePeers(hosts []string) error {
	return d.write(PeerFile, storage.EncodePeers(hosts))
}

// LoadPeers reads the hosts, ignoring blank lines.
func (d *Disk) LoadPeers() ([]string, error) {
	data, err := d.read(PeerFile)
	if err != nil {
		return nil, err
	}

	return storage.DecodePeers(data), nil
}

// =============================================================================

// write replaces the named file. The data is written to a temp file first so
// a crash never leaves a half written file behind.
func (d *Disk) write(name string, data []byte) error {
	f, err := os.CreateTemp(d.dbPath, name+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, filepath.Join(d.dbPath, name))
}

// read returns the contents of the named file.
func (d *Disk) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.dbPath, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}

	return data, err
}
