package governance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 10000
	maxCategoryLen    = 64
	maxRegionLen      = maxIdentifierLen
)

// transitions is the lifecycle state machine. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusUnderReview},
	StatusUnderReview: {StatusActive},
	StatusActive:      {StatusPassed, StatusRejected, StatusExpired},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ProposalStore holds proposal records. Only the Controller mutates them.
type ProposalStore interface {
	Create(ctx context.Context, p Proposal) (Proposal, error)
	Get(ctx context.Context, id string) (Proposal, error)
	List(ctx context.Context, f Filter) ([]Proposal, error)
	// Transition moves id from `from` to `to`, applying mutate to the record
	// in the same write. It fails with a *TransitionError when the current
	// status is not `from` or the move is not in the state machine.
	Transition(ctx context.Context, id string, from, to Status, mutate func(*Proposal)) (Proposal, error)
	// Delete removes a Draft or UnderReview proposal.
	Delete(ctx context.Context, id string) error
}

// ValidateProposal checks the required fields of a proposal about to be
// stored, and that its deadline lies strictly after now.
func ValidateProposal(p Proposal, now time.Time) error {
	required := []struct{ field, value string }{
		{"title", p.Title},
		{"description", p.Description},
		{"region", p.Region},
		{"category", p.Category},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalidProposal(r.field, "is required")
		}
	}
	if len(p.Title) > maxTitleLen {
		return invalidProposal("title", fmt.Sprintf("exceeds %d characters", maxTitleLen))
	}
	if len(p.Description) > maxDescriptionLen {
		return invalidProposal("description", fmt.Sprintf("exceeds %d characters", maxDescriptionLen))
	}
	if len(p.Category) > maxCategoryLen {
		return invalidProposal("category", fmt.Sprintf("exceeds %d characters", maxCategoryLen))
	}
	if len(p.Region) > maxRegionLen {
		return invalidProposal("region", fmt.Sprintf("exceeds %d characters", maxRegionLen))
	}
	if p.Deadline.IsZero() {
		return invalidProposal("deadline", "is required")
	}
	if !p.Deadline.After(now) {
		return invalidProposal("deadline", "must be in the future")
	}
	if p.RoleGate != RoleProposer && p.RoleGate != RoleValidator {
		return invalidProposal("roleGate", "must be proposer or validator")
	}
	if p.Quorum < 1 {
		return invalidProposal("quorum", "must be at least 1")
	}
	return nil
}

// MemoryProposals is an in-process ProposalStore.
type MemoryProposals struct {
	mu        sync.RWMutex
	proposals map[string]Proposal
}

// NewMemoryProposals returns an empty store.
func NewMemoryProposals() *MemoryProposals {
	return &MemoryProposals{proposals: make(map[string]Proposal)}
}

func (s *MemoryProposals) Create(_ context.Context, p Proposal) (Proposal, error) {
	if p.ID == "" {
		return Proposal{}, invalidProposal("id", "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.proposals[p.ID]; exists {
		return Proposal{}, invalidProposal("id", "already exists")
	}
	s.proposals[p.ID] = p
	return p, nil
}

func (s *MemoryProposals) Get(_ context.Context, id string) (Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryProposals) List(_ context.Context, f Filter) ([]Proposal, error) {
	s.mu.RLock()
	out := make([]Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	SortProposals(out)
	return out, nil
}

func (s *MemoryProposals) Transition(_ context.Context, id string, from, to Status, mutate func(*Proposal)) (Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	if p.Status != from || !CanTransition(from, to) {
		return Proposal{}, &TransitionError{ID: id, From: p.Status, To: to}
	}
	next := p
	if mutate != nil {
		mutate(&next)
	}
	next.Status = to
	s.proposals[id] = next
	return next, nil
}

func (s *MemoryProposals) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusDraft && p.Status != StatusUnderReview {
		return &TransitionError{ID: id, From: p.Status, Detail: "only draft or under review proposals can be discarded"}
	}
	delete(s.proposals, id)
	return nil
}

// SortProposals orders by creation time, then ID.
func SortProposals(ps []Proposal) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
