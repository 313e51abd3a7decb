// Package database handles the in memory representation of the blockchain:
// blocks, their proof of work, and the ordered chain of sealed blocks.
package database

import (
	"fmt"
	"strings"
)

// Chain represents an ordered, non-empty sequence of blocks. A Chain is not
// safe for concurrent use, the owner must provide exclusive access.
type Chain struct {
	blocks []Block
}

// NewChain constructs a chain holding only the genesis block.
func NewChain() Chain {
	return Chain{
		blocks: []Block{Genesis()},
	}
}

// LoadChain constructs a chain from an existing sequence of blocks. An empty
// sequence produces a new chain.
func LoadChain(blocks []Block) Chain {
	if len(blocks) == 0 {
		return NewChain()
	}

	cpy := make([]Block, len(blocks))
	copy(cpy, blocks)

	return Chain{blocks: cpy}
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Tip returns the last block in the chain.
func (c *Chain) Tip() Block {
	if len(c.blocks) == 0 {
		panic("database: chain has no blocks, genesis is missing")
	}

	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the blocks in the chain.
func (c *Chain) Blocks() []Block {
	cpy := make([]Block, len(c.blocks))
	copy(cpy, c.blocks)
	return cpy
}

// AddBlock appends the candidate if it links to the tip and carries a valid
// proof of work. On failure the chain is left untouched.
func (c *Chain) AddBlock(candidate Block) error {
	tip := c.Tip()

	if candidate.PrevHash != tip.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrLinkMismatch, candidate.PrevHash, tip.Hash)
	}

	if err := candidate.Verify(); err != nil {
		return err
	}

	c.blocks = append(c.blocks, candidate)

	return nil
}

// Mine searches for the next block holding data on top of the current tip.
// The chain is not modified, the caller must call AddBlock with the result.
func (c *Chain) Mine(data string) Block {
	return MineNext(c.Tip(), data, NowMillis())
}

// ReplaceIfLonger adopts the candidate sequence when it is strictly longer
// than the current chain. The candidate is not validated here.
func (c *Chain) ReplaceIfLonger(candidate []Block) bool {
	if len(candidate) <= len(c.blocks) {
		return false
	}

	c.blocks = make([]Block, len(candidate))
	copy(c.blocks, candidate)

	return true
}

// Prune retains the most recent retain blocks and returns the number of
// blocks dropped. After a prune the first block's previous hash no longer
// resolves inside the chain, so the chain can't be verified from genesis.
func (c *Chain) Prune(retain int) int {
	if retain < 1 || len(c.blocks) <= retain {
		return 0
	}

	drop := len(c.blocks) - retain

	kept := make([]Block, retain)
	copy(kept, c.blocks[drop:])
	c.blocks = kept

	return drop
}

// FindBlock locates the block with the specified hash. When contains is not
// empty, the block's data must also hold that substring.
func (c *Chain) FindBlock(hash string, contains string) (Block, bool) {
	for _, block := range c.blocks {
		if block.Hash != hash {
			continue
		}

		if contains != "" && !strings.Contains(block.Data, contains) {
			return Block{}, false
		}

		return block, true
	}

	return Block{}, false
}

// =============================================================================

// VerifyBlocks checks the internal linkage and proof of work of a sequence of
// blocks. The first block is trusted as the anchor: a genesis block or the
// first block of a pruned chain.
func VerifyBlocks(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: no blocks", ErrLinkMismatch)
	}

	first := blocks[0]
	switch {
	case first.Index == 0:
		if !first.IsGenesis() || first.Hash != Genesis().Hash {
			return fmt.Errorf("%w: block[0] is not the genesis block", ErrLinkMismatch)
		}

	default:
		if err := first.Verify(); err != nil {
			return fmt.Errorf("block[%d]: %w", first.Index, err)
		}
	}

	for i := 1; i < len(blocks); i++ {
		prev, block := blocks[i-1], blocks[i]

		if block.PrevHash != prev.Hash {
			return fmt.Errorf("block[%d]: %w: got %s, exp %s", block.Index, ErrLinkMismatch, block.PrevHash, prev.Hash)
		}

		if block.Index != prev.Index+1 {
			return fmt.Errorf("block[%d]: %w: index does not follow %d", block.Index, ErrLinkMismatch, prev.Index)
		}

		if err := block.Verify(); err != nil {
			return fmt.Errorf("block[%d]: %w", block.Index, err)
		}
	}

	return nil
}
