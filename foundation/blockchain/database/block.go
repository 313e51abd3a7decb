package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Set of errors produced when a block is rejected by the chain.
var (
	ErrLinkMismatch       = errors.New("block does not link to the chain tip")
	ErrProofOfWorkInvalid = errors.New("block proof of work is invalid")
)

// Set of errors produced when validating a mining payload.
var (
	ErrPayloadEmpty    = errors.New("data payload is empty")
	ErrPayloadTooLarge = errors.New("data payload is too large")
)

// MaxPayloadBytes is the largest data payload accepted for mining.
const MaxPayloadBytes = 1024

// Fixed values for the genesis block.
const (
	GenesisPrevHash = "0"
	GenesisData     = "GENESIS"
)

// =============================================================================

// Block represents a sealed record in the chain. A block is never mutated
// after it is sealed.
type Block struct {
	Index     uint64 `json:"index"`     // Position in the chain, 0 is genesis.
	Timestamp uint64 `json:"timestamp"` // Milliseconds since epoch, set by the producer.
	PrevHash  string `json:"prev_hash"` // Hash of the previous block in the chain.
	Hash      string `json:"hash"`      // Hash of all the other fields.
	Data      string `json:"data"`      // Opaque payload.
	Nonce     uint64 `json:"nonce"`     // Value identified to solve the hash solution.
}

// Seal constructs a block and computes its hash. No validation is performed.
func Seal(index uint64, timestamp uint64, prevHash string, data string, nonce uint64) Block {
	return Block{
		Index:     index,
		Timestamp: timestamp,
		PrevHash:  prevHash,
		Hash:      Digest(index, timestamp, prevHash, data, nonce),
		Data:      data,
		Nonce:     nonce,
	}
}

// Genesis returns the fixed first block of every chain.
func Genesis() Block {
	return Seal(0, 0, GenesisPrevHash, GenesisData, 0)
}

// IsGenesis reports whether the block carries the genesis sentinel fields.
func (b Block) IsGenesis() bool {
	return b.Index == 0 && b.PrevHash == GenesisPrevHash && b.Data == GenesisData && b.Nonce == 0
}

// Verify re-derives the hash from the block fields and checks it against
// the stored hash and the POW rules.
func (b Block) Verify() error {
	hash := Digest(b.Index, b.Timestamp, b.PrevHash, b.Data, b.Nonce)
	if hash != b.Hash {
		return fmt.Errorf("%w: hash mismatch, got %s, exp %s", ErrProofOfWorkInvalid, b.Hash, hash)
	}

	if !MeetsDifficulty(b.Hash) {
		return fmt.Errorf("%w: %s does not meet difficulty %d", ErrProofOfWorkInvalid, b.Hash, Difficulty)
	}

	return nil
}

// MineNext performs the work of finding a nonce that solves the POW puzzle
// for a block that follows the specified tip. The search starts at nonce 0
// and has no upper bound or cancellation point.
func MineNext(tip Block, data string, timestamp uint64) Block {
	index := tip.Index + 1

	var nonce uint64
	for {
		hash := Digest(index, timestamp, tip.Hash, data, nonce)
		if MeetsDifficulty(hash) {
			return Block{
				Index:     index,
				Timestamp: timestamp,
				PrevHash:  tip.Hash,
				Hash:      hash,
				Data:      data,
				Nonce:     nonce,
			}
		}
		nonce++
	}
}

// ValidatePayload checks a data payload before any mining work takes place.
func ValidatePayload(data string) error {
	if strings.TrimSpace(data) == "" {
		return ErrPayloadEmpty
	}

	if len(data) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(data), MaxPayloadBytes)
	}

	return nil
}

// NowMillis returns the current UTC time in milliseconds.
func NowMillis() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}
