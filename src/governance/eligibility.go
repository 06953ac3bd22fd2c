package governance

import (
	"context"
	"fmt"
	"time"
)

// Eligibility is the outcome of a CanVote check.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
	ParcelID string `json:"parcelId,omitempty"`
}

// Facts is a snapshot of what the registry knows about a voter.
type Facts struct {
	Role    Role
	Parcels []Parcel
}

// Resolver decides whether an identity may vote on a proposal. It performs
// lookups only and never mutates state.
type Resolver struct {
	registry  Registry
	proposals ProposalStore
	ledger    VoteLedger
	clock     Clock
}

// NewResolver wires a resolver over the given collaborators.
func NewResolver(registry Registry, proposals ProposalStore, ledger VoteLedger, clock Clock) *Resolver {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Resolver{registry: registry, proposals: proposals, ledger: ledger, clock: clock}
}

// Snapshot reads role and parcels for identity from the registry.
func (r *Resolver) Snapshot(ctx context.Context, identity string) (Facts, error) {
	role, err := r.registry.ResolveRole(ctx, identity)
	if err != nil {
		return Facts{}, fmt.Errorf("resolve role: %w", err)
	}
	parcels, err := r.registry.ResolveParcels(ctx, identity)
	if err != nil {
		return Facts{}, fmt.Errorf("resolve parcels: %w", err)
	}
	return Facts{Role: role, Parcels: parcels}, nil
}

// CanVote evaluates every eligibility rule for identity on proposalID.
func (r *Resolver) CanVote(ctx context.Context, identity, proposalID string) (Eligibility, error) {
	p, err := r.proposals.Get(ctx, proposalID)
	if err != nil {
		return Eligibility{}, err
	}
	facts, err := r.Snapshot(ctx, identity)
	if err != nil {
		return Eligibility{}, err
	}
	voted, err := r.ledger.Has(ctx, identity, proposalID)
	if err != nil {
		return Eligibility{}, err
	}
	return Evaluate(facts, p, voted, r.clock.Now()), nil
}

// Evaluate applies the eligibility rules, in order, to already-loaded facts.
func Evaluate(facts Facts, p Proposal, alreadyVoted bool, now time.Time) Eligibility {
	if !facts.Role.AtLeast(RoleLandowner) {
		return Eligibility{Reason: ReasonRoleInsufficient}
	}
	parcel, ok := QualifyingParcel(facts.Parcels, p.Region)
	if !ok {
		return Eligibility{Reason: ReasonNoQualifyingParcel}
	}
	if !VotingOpen(p, now) {
		return Eligibility{Reason: ReasonVotingClosed}
	}
	if alreadyVoted {
		return Eligibility{Reason: ReasonAlreadyVoted}
	}
	return Eligibility{Eligible: true, ParcelID: parcel.ID}
}

// VotingOpen reports whether p accepts votes at now.
func VotingOpen(p Proposal, now time.Time) bool {
	return p.Status == StatusActive && now.Before(p.Deadline)
}

// QualifyingParcel picks the lowest-ID eligible parcel in region.
func QualifyingParcel(parcels []Parcel, region string) (Parcel, bool) {
	var best Parcel
	found := false
	for _, pc := range parcels {
		if !pc.Eligible() || pc.Region != region {
			continue
		}
		if !found || pc.ID < best.ID {
			best = pc
			found = true
		}
	}
	return best, found
}
