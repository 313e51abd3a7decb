// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// Set of errors returned by the state API.
var (
	ErrTipAdvanced   = errors.New("chain tip kept advancing while mining")
	ErrBlockNotFound = errors.New("block not found")
)

// maxCommitAttempts bounds how many times a mine is restarted when the tip
// moves before the result can be committed.
const maxCommitAttempts = 8

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the blockchain.
type EventHandler func(v string, args ...any)

// Broadcaster interface represents the behavior required to send a newly
// committed block to the known peers. Implementations must not block.
type Broadcaster interface {
	BroadcastBlock(block database.Block, to []peer.Peer)
}

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Blocks        []database.Block
	Registry      *peer.Registry
	Broadcaster   Broadcaster
	VerifyOnAdopt bool
	EvHandler     EventHandler
}

// State manages the blockchain. The chain is only touched while holding mu,
// and the lock is never held while mining or talking to peers.
type State struct {
	mu    sync.RWMutex
	chain database.Chain

	registry      *peer.Registry
	broadcaster   Broadcaster
	verifyOnAdopt bool
	evHandler     EventHandler
}

// New constructs the state from the loaded blocks. Without blocks the chain
// starts at genesis.
func New(cfg Config) *State {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = peer.NewRegistry(peer.RegistryConfig{EvHandler: peer.EventHandler(ev)})
	}

	s := State{
		chain:         database.LoadChain(cfg.Blocks),
		registry:      registry,
		broadcaster:   cfg.Broadcaster,
		verifyOnAdopt: cfg.VerifyOnAdopt,
		evHandler:     ev,
	}

	tip := s.chain.Tip()
	ev("state: New: chain loaded: length[%d]: tip[%d]: hash[%s]", s.chain.Len(), tip.Index, tip.Hash)

	return &s
}

// Registry returns the peer registry used by the node.
func (s *State) Registry() *peer.Registry {
	return s.registry
}
