package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// errTipMoved is returned by commit when another block landed between
// snapshotting the tip and committing the mined block.
var errTipMoved = errors.New("tip moved")

// MineNewBlock validates the payload, solves the proof of work for a block
// holding data on top of the current tip and commits it. The search runs
// without holding the lock. If the tip moves in the meantime the mine is
// restarted on the new tip. On success the block is broadcast to the known
// peers.
func (s *State) MineNewBlock(data string) (database.Block, error) {
	if err := database.ValidatePayload(data); err != nil {
		return database.Block{}, err
	}

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		tip := s.RetrieveTip()

		s.evHandler("state: MineNewBlock: MINING: attempt[%d]: perform POW on tip[%d]", attempt, tip.Index)

		block := database.MineNext(tip, data, database.NowMillis())

		err := s.commit(tip, block)
		switch {
		case err == nil:
			s.evHandler("state: MineNewBlock: MINING: SOLVED: blk[%d]: hash[%s]: nonce[%d]", block.Index, block.Hash, block.Nonce)
			s.blockEvent(block)
			s.broadcast(block)
			return block, nil

		case errors.Is(err, errTipMoved):
			s.evHandler("state: MineNewBlock: MINING: tip moved, restarting")
			continue

		default:
			return database.Block{}, err
		}
	}

	return database.Block{}, ErrTipAdvanced
}

// ProcessPeerBlock takes a block received from a peer, validates it and if
// that passes, adds the block to the local blockchain.
func (s *State) ProcessPeerBlock(block database.Block) error {
	s.evHandler("state: ProcessPeerBlock: started: blk[%d]: prevBlk[%s]: newBlk[%s]", block.Index, block.PrevHash, block.Hash)

	s.mu.Lock()
	err := s.chain.AddBlock(block)
	s.mu.Unlock()

	if err != nil {
		s.evHandler("state: ProcessPeerBlock: REJECTED: blk[%d]: %s", block.Index, err)
		return err
	}

	s.evHandler("state: ProcessPeerBlock: completed: newBlk[%s]", block.Hash)
	s.blockEvent(block)

	return nil
}

// =============================================================================

// commit appends the block while holding the lock, provided the tip is still
// the one the block was mined against.
func (s *State) commit(tip database.Block, block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chain.Tip() != tip {
		return errTipMoved
	}

	if err := s.chain.AddBlock(block); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// broadcast hands the block to the broadcaster. This must be called without
// holding the lock.
func (s *State) broadcast(block database.Block) {
	if s.broadcaster == nil {
		return
	}

	peers := s.registry.List()
	if len(peers) == 0 {
		return
	}

	s.broadcaster.BroadcastBlock(block, peers)
}

// blockEvent provides a specific event about a new block in the chain for
// the events stream.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
