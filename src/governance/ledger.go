package governance

import (
	"context"
	"sort"
	"sync"
)

// VoteLedger is the append-only vote record. Append never overwrites: a second
// vote for the same (voter, proposal) fails with ErrAlreadyVoted.
type VoteLedger interface {
	Append(ctx context.Context, v Vote) (Vote, error)
	Has(ctx context.Context, voter, proposalID string) (bool, error)
	Get(ctx context.Context, voter, proposalID string) (Vote, error)
	Counts(ctx context.Context, proposalID string) (Counts, error)
	ForProposal(ctx context.Context, proposalID string) ([]Vote, error)
}

type voteKey struct {
	voter      string
	proposalID string
}

// MemoryLedger is an in-process VoteLedger indexed by (voter, proposal) and by
// proposal.
type MemoryLedger struct {
	mu         sync.RWMutex
	byKey      map[voteKey]Vote
	byProposal map[string][]Vote
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byKey:      make(map[voteKey]Vote),
		byProposal: make(map[string][]Vote),
	}
}

func (l *MemoryLedger) Append(_ context.Context, v Vote) (Vote, error) {
	k := voteKey{voter: v.Voter, proposalID: v.ProposalID}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byKey[k]; exists {
		return Vote{}, &IneligibleError{Reason: ReasonAlreadyVoted}
	}
	l.byKey[k] = v
	l.byProposal[v.ProposalID] = append(l.byProposal[v.ProposalID], v)
	return v, nil
}

func (l *MemoryLedger) Has(_ context.Context, voter, proposalID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byKey[voteKey{voter: voter, proposalID: proposalID}]
	return ok, nil
}

func (l *MemoryLedger) Get(_ context.Context, voter, proposalID string) (Vote, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.byKey[voteKey{voter: voter, proposalID: proposalID}]
	if !ok {
		return Vote{}, ErrNotFound
	}
	return v, nil
}

func (l *MemoryLedger) Counts(_ context.Context, proposalID string) (Counts, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var c Counts
	for _, v := range l.byProposal[proposalID] {
		switch v.Choice {
		case ChoiceFor:
			c.For++
		case ChoiceAgainst:
			c.Against++
		}
	}
	return c, nil
}

func (l *MemoryLedger) ForProposal(_ context.Context, proposalID string) ([]Vote, error) {
	l.mu.RLock()
	out := append([]Vote(nil), l.byProposal[proposalID]...)
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CastAt.Before(out[j].CastAt) })
	return out, nil
}
