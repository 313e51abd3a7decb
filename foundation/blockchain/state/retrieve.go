package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// Summary provides the shape of the chain without its blocks.
type Summary struct {
	Length   int    `json:"length"`
	TipIndex uint64 `json:"tip_index"`
	TipHash  string `json:"tip_hash"`
}

// RetrieveTip returns a copy of the current latest block.
func (s *State) RetrieveTip() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Tip()
}

// RetrieveSummary returns the length and tip of the chain.
func (s *State) RetrieveSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip := s.chain.Tip()

	return Summary{
		Length:   s.chain.Len(),
		TipIndex: tip.Index,
		TipHash:  tip.Hash,
	}
}

// RetrieveChain returns a copy of every block in the chain.
func (s *State) RetrieveChain() []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Blocks()
}

// QueryBlock returns the block with the specified hash. When contains is not
// empty the block's data must also hold that substring.
func (s *State) QueryBlock(hash string, contains string) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, found := s.chain.FindBlock(hash, contains)
	if !found {
		return database.Block{}, ErrBlockNotFound
	}

	return block, nil
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.registry.List()
}

// RegisterPeer adds the endpoint to the known peers, returning whether it
// was newly added.
func (s *State) RegisterPeer(endpoint string) bool {
	return s.registry.Register(endpoint)
}
