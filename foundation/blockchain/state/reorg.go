package state

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// ReplaceChain adopts the candidate chain when it is strictly longer than
// the local chain. When the node is configured to verify adopted chains, a
// candidate that fails linkage or proof of work checks is rejected with an
// error.
func (s *State) ReplaceChain(candidate []database.Block) (bool, error) {
	s.evHandler("state: ReplaceChain: started: candidate length[%d]", len(candidate))

	if s.verifyOnAdopt {
		if err := database.VerifyBlocks(candidate); err != nil {
			s.evHandler("state: ReplaceChain: REJECTED: %s", err)
			return false, fmt.Errorf("verify candidate: %w", err)
		}
	}

	s.mu.Lock()
	replaced := s.chain.ReplaceIfLonger(candidate)
	length := s.chain.Len()
	s.mu.Unlock()

	s.evHandler("state: ReplaceChain: completed: replaced[%v]: length[%d]", replaced, length)

	return replaced, nil
}

// Prune keeps the most recent retain blocks and reports the length of the
// chain before and after.
func (s *State) Prune(retain int) (before int, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before = s.chain.Len()
	dropped := s.chain.Prune(retain)
	after = s.chain.Len()

	s.evHandler("state: Prune: retain[%d]: dropped[%d]: from[%d]: to[%d]", retain, dropped, before, after)

	return before, after
}
