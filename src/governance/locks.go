package governance

import (
	"sync"

	"github.com/OneOfOne/xxhash"
)

const lockStripes = 256

// lockTable serialises commands per proposal and per (voter, proposal).
// Votes take the proposal stripe shared and the voter stripe exclusive;
// transitions take the proposal stripe exclusive. Acquisition order is always
// proposal then voter.
type lockTable struct {
	proposals [lockStripes]sync.RWMutex
	voters    [lockStripes]sync.Mutex
}

func stripe(key string) int {
	return int(xxhash.ChecksumString64(key) % lockStripes)
}

func (t *lockTable) lockProposal(id string) func() {
	m := &t.proposals[stripe(id)]
	m.Lock()
	return m.Unlock
}

func (t *lockTable) lockVote(voter, proposalID string) func() {
	pm := &t.proposals[stripe(proposalID)]
	pm.RLock()
	vm := &t.voters[stripe(voter+"\x00"+proposalID)]
	vm.Lock()
	return func() {
		vm.Unlock()
		pm.RUnlock()
	}
}
