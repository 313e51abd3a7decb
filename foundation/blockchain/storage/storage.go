// Package storage defines the format used to persist the blockchain and the
// set of known peers. Backends live in the sub packages.
package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
)

// Set of errors returned by the storage backends.
var (
	ErrNotFound = errors.New("nothing has been stored")
	ErrCorrupt  = errors.New("stored chain is corrupt")
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain and peers.
type Storage interface {
	LoadChain() ([]database.Block, error)
	SaveChain(blocks []database.Block) error
	LoadPeers() ([]string, error)
	SavePeers(hosts []string) error
	Close() error
}

// LoadVerified loads the chain from the storage. When verify is set every
// block must link to its parent and carry a valid proof of work, otherwise
// ErrCorrupt is returned. Without verify a chain adopted under the longer
// chain rule alone loads as it was saved.
func LoadVerified(s Storage, verify bool) ([]database.Block, error) {
	blocks, err := s.LoadChain()
	if err != nil {
		return nil, err
	}

	if verify {
		if err := database.VerifyBlocks(blocks); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}

	return blocks, nil
}

// =============================================================================

// Snapshot represents what is serialized for the chain. Root is the merkle
// root over the block hashes and may be empty for older snapshots.
type Snapshot struct {
	Blocks []database.Block `json:"blocks"`
	Root   string           `json:"root,omitempty"`
}

// leaf adapts a block hash for the merkle tree.
type leaf string

// Hash implements the merkle.Hashable interface.
func (l leaf) Hash() ([]byte, error) {
	sum := sha256.Sum256([]byte(l))
	return sum[:], nil
}

// Root calculates the merkle root over the hashes of the blocks.
func Root(blocks []database.Block) (string, error) {
	leafs := make([]leaf, len(blocks))
	for i, block := range blocks {
		leafs[i] = leaf(block.Hash)
	}

	tree, err := merkle.NewTree(leafs)
	if err != nil {
		return "", err
	}

	return tree.RootHex(), nil
}

// EncodeChain produces the serialized snapshot for the blocks.
func EncodeChain(blocks []database.Block) ([]byte, error) {
	root, err := Root(blocks)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{
		Blocks: blocks,
		Root:   root,
	}

	return json.MarshalIndent(snap, "", "  ")
}

// DecodeChain parses a serialized snapshot and checks it against its root.
func DecodeChain(data []byte) ([]database.Block, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	if len(snap.Blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks", ErrCorrupt)
	}

	if snap.Root == "" {
		return snap.Blocks, nil
	}

	root, err := Root(snap.Blocks)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	if root != snap.Root {
		return nil, fmt.Errorf("%w: merkle root mismatch, got %s, exp %s", ErrCorrupt, root, snap.Root)
	}

	return snap.Blocks, nil
}

// EncodePeers produces one host per line.
func EncodePeers(hosts []string) []byte {
	var b strings.Builder
	for _, host := range hosts {
		b.WriteString(host)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// DecodePeers reads one host per line, ignoring blank lines.
func DecodePeers(data []byte) []string {
	var hosts []string

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		host := strings.TrimSpace(scanner.Text())
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
	}

	return hosts
}
