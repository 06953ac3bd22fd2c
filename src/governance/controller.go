package governance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Deps wires a Controller. Clock, Policy, Catalog and Publishers are optional.
type Deps struct {
	Proposals  ProposalStore
	Parcels    ParcelStore
	Ledger     VoteLedger
	Registry   Registry
	Clock      Clock
	Policy     Policy
	Catalog    Catalog
	Publishers []Publisher
}

// Controller is the command entry point of the engine. It enforces role
// checks, lifecycle transitions and vote eligibility; the presentation layer
// only reads state and submits commands through it.
type Controller struct {
	proposals  ProposalStore
	parcels    ParcelStore
	ledger     VoteLedger
	registry   Registry
	resolver   *Resolver
	tally      *Tally
	clock      Clock
	policy     Policy
	catalog    Catalog
	publishers []Publisher
	locks      lockTable
	newID      func() string
}

// NewController builds a controller over deps.
func NewController(deps Deps) *Controller {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	policy := deps.Policy
	if policy.Quorum < 1 {
		policy.Quorum = DefaultPolicy().Quorum
	}
	if policy.TieBreak == "" {
		policy.TieBreak = TieReject
	}
	return &Controller{
		proposals:  deps.Proposals,
		parcels:    deps.Parcels,
		ledger:     deps.Ledger,
		registry:   deps.Registry,
		resolver:   NewResolver(deps.Registry, deps.Proposals, deps.Ledger, clock),
		tally:      NewTally(deps.Ledger, deps.Parcels, policy, clock),
		clock:      clock,
		policy:     policy,
		catalog:    deps.Catalog,
		publishers: deps.Publishers,
		newID:      uuid.NewString,
	}
}

// Policy returns the tally policy in force.
func (c *Controller) Policy() Policy { return c.policy }

// Catalog returns the accepted regions and categories.
func (c *Controller) Catalog() Catalog { return c.catalog }

// CreateProposal stores a new Draft. Nothing is written when validation or the
// role gate fails.
func (c *Controller) CreateProposal(ctx context.Context, proposer string, d Draft) (Proposal, error) {
	now := c.clock.Now()
	p := Proposal{
		ID:          c.newID(),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Region:      strings.TrimSpace(d.Region),
		Proposer:    proposer,
		RoleGate:    d.RoleGate,
		Status:      StatusDraft,
		Quorum:      d.Quorum,
		Deadline:    d.Deadline.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.RoleGate == "" {
		p.RoleGate = RoleProposer
	}
	if p.Quorum == 0 {
		p.Quorum = c.policy.Quorum
	}
	if err := ValidateProposal(p, now); err != nil {
		return Proposal{}, err
	}
	if !c.catalog.HasRegion(p.Region) {
		return Proposal{}, invalidProposal("region", "is not a known region")
	}
	if !c.catalog.HasCategory(p.Category) {
		return Proposal{}, invalidProposal("category", "is not a known category")
	}

	role, err := c.registry.ResolveRole(ctx, proposer)
	if err != nil {
		return Proposal{}, fmt.Errorf("resolve role: %w", err)
	}
	if !role.AtLeast(p.RoleGate) {
		return Proposal{}, fmt.Errorf("%w: creating a proposal requires the %s role", ErrForbidden, p.RoleGate)
	}

	created, err := c.proposals.Create(ctx, p)
	if err != nil {
		return Proposal{}, err
	}
	c.publish(ctx, proposalEvent(EventProposalCreated, created, proposer, now))
	return created, nil
}

// SubmitProposal moves a Draft to UnderReview. Only the proposer or a
// validator may submit, and the draft must still be complete with a future
// deadline.
func (c *Controller) SubmitProposal(ctx context.Context, actor, id string) (Proposal, error) {
	role, err := c.registry.ResolveRole(ctx, actor)
	if err != nil {
		return Proposal{}, fmt.Errorf("resolve role: %w", err)
	}
	next, err := c.submit(ctx, actor, role, id)
	if err != nil {
		return Proposal{}, err
	}
	c.publish(ctx, proposalEvent(EventProposalSubmitted, next, actor, *next.SubmittedAt))
	return next, nil
}

func (c *Controller) submit(ctx context.Context, actor string, role Role, id string) (Proposal, error) {
	unlock := c.locks.lockProposal(id)
	defer unlock()

	p, err := c.proposals.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.Proposer != actor && !role.AtLeast(RoleValidator) {
		return Proposal{}, fmt.Errorf("%w: only the proposer or a validator may submit", ErrForbidden)
	}
	if p.Status != StatusDraft {
		return Proposal{}, c.illegal(&TransitionError{ID: id, From: p.Status, To: StatusUnderReview})
	}
	now := c.clock.Now()
	if err := ValidateProposal(p, now); err != nil {
		return Proposal{}, err
	}
	next, err := c.proposals.Transition(ctx, id, StatusDraft, StatusUnderReview, func(p *Proposal) {
		p.SubmittedAt = &now
		p.UpdatedAt = now
	})
	if err != nil {
		return Proposal{}, c.illegal(err)
	}
	return next, nil
}

// ApproveProposal opens an UnderReview proposal for voting. The approver must
// be a validator other than the proposer, and the deadline must still lie in
// the future.
func (c *Controller) ApproveProposal(ctx context.Context, validator, id string) (Proposal, error) {
	role, err := c.registry.ResolveRole(ctx, validator)
	if err != nil {
		return Proposal{}, fmt.Errorf("resolve role: %w", err)
	}
	if !role.AtLeast(RoleValidator) {
		return Proposal{}, fmt.Errorf("%w: approval requires the validator role", ErrForbidden)
	}
	next, err := c.approve(ctx, validator, id)
	if err != nil {
		return Proposal{}, err
	}
	c.publish(ctx, proposalEvent(EventProposalActivated, next, validator, *next.ActivatedAt))
	return next, nil
}

func (c *Controller) approve(ctx context.Context, validator, id string) (Proposal, error) {
	unlock := c.locks.lockProposal(id)
	defer unlock()

	p, err := c.proposals.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.Proposer == validator {
		return Proposal{}, fmt.Errorf("%w: validators cannot approve their own proposals", ErrForbidden)
	}
	if p.Status != StatusUnderReview {
		return Proposal{}, c.illegal(&TransitionError{ID: id, From: p.Status, To: StatusActive})
	}
	now := c.clock.Now()
	if !p.Deadline.After(now) {
		return Proposal{}, invalidProposal("deadline", "must be in the future at activation")
	}
	next, err := c.proposals.Transition(ctx, id, StatusUnderReview, StatusActive, func(p *Proposal) {
		p.ApprovedBy = validator
		p.ActivatedAt = &now
		p.UpdatedAt = now
	})
	if err != nil {
		return Proposal{}, c.illegal(err)
	}
	return next, nil
}

// DiscardProposal deletes a Draft or UnderReview proposal on behalf of its
// proposer or a validator.
func (c *Controller) DiscardProposal(ctx context.Context, actor, id string) error {
	role, err := c.registry.ResolveRole(ctx, actor)
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}
	p, err := c.discard(ctx, actor, role, id)
	if err != nil {
		return err
	}
	c.publish(ctx, proposalEvent(EventProposalDiscarded, p, actor, c.clock.Now()))
	return nil
}

func (c *Controller) discard(ctx context.Context, actor string, role Role, id string) (Proposal, error) {
	unlock := c.locks.lockProposal(id)
	defer unlock()

	p, err := c.proposals.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.Proposer != actor && !role.AtLeast(RoleValidator) {
		return Proposal{}, fmt.Errorf("%w: only the proposer or a validator may discard", ErrForbidden)
	}
	if err := c.proposals.Delete(ctx, id); err != nil {
		return Proposal{}, c.illegal(err)
	}
	return p, nil
}

// AdvanceProposal closes an Active proposal whose deadline has passed,
// deciding Passed, Rejected or Expired from the tally. Terminal proposals are
// returned unchanged.
func (c *Controller) AdvanceProposal(ctx context.Context, id string) (Proposal, error) {
	next, closed, err := c.advance(ctx, id)
	if err != nil || !closed {
		return next, err
	}

	ev := proposalEvent(EventProposalClosed, next, "", *next.ClosedAt)
	if snap, err := c.tally.Snapshot(ctx, next); err == nil {
		ev.Tally = &snap
	}
	c.publish(ctx, ev)
	return next, nil
}

// advance reports closed=false for proposals that were already terminal.
func (c *Controller) advance(ctx context.Context, id string) (Proposal, bool, error) {
	unlock := c.locks.lockProposal(id)
	defer unlock()

	p, err := c.proposals.Get(ctx, id)
	if err != nil {
		return Proposal{}, false, err
	}
	if p.Status.Terminal() {
		return p, false, nil
	}
	now := c.clock.Now()
	switch {
	case p.Status == StatusDraft:
		return Proposal{}, false, c.illegal(&TransitionError{ID: id, From: p.Status, Detail: "draft proposals advance only when submitted"})
	case p.Status == StatusUnderReview:
		return Proposal{}, false, c.illegal(&TransitionError{ID: id, From: p.Status, Detail: "proposals under review advance only on validator approval"})
	case now.Before(p.Deadline):
		return Proposal{}, false, c.illegal(&TransitionError{ID: id, From: p.Status, Detail: "voting is open until " + p.Deadline.Format("2006-01-02T15:04:05Z07:00")})
	}

	counts, err := c.ledger.Counts(ctx, id)
	if err != nil {
		return Proposal{}, false, err
	}
	to := Decide(counts, p.Quorum, c.policy.TieBreak)
	next, err := c.proposals.Transition(ctx, id, StatusActive, to, func(p *Proposal) {
		p.ClosedAt = &now
		p.UpdatedAt = now
	})
	if err != nil {
		return Proposal{}, false, c.illegal(err)
	}
	return next, true, nil
}

// SweepDue advances every Active proposal whose deadline has passed. A
// failure on one proposal is logged and the sweep continues.
func (c *Controller) SweepDue(ctx context.Context) ([]Proposal, error) {
	active, err := c.proposals.List(ctx, Filter{Status: StatusActive})
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	var closed []Proposal
	var errs []error
	for _, p := range active {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		if now.Before(p.Deadline) {
			continue
		}
		next, err := c.AdvanceProposal(ctx, p.ID)
		if err != nil {
			log.Printf("governance: sweep proposal %s: %v", p.ID, err)
			errs = append(errs, err)
			continue
		}
		closed = append(closed, next)
	}
	return closed, errors.Join(errs...)
}

// CastVote records identity's vote after re-checking eligibility inside the
// (voter, proposal) critical section.
func (c *Controller) CastVote(ctx context.Context, identity, proposalID string, choice Choice) (Vote, error) {
	if !choice.Valid() {
		return Vote{}, &ValidationError{Field: "choice", Reason: "must be for or against"}
	}
	// Registry facts are read before entering the critical section.
	facts, err := c.resolver.Snapshot(ctx, identity)
	if err != nil {
		return Vote{}, err
	}

	vote, p, err := c.appendVote(ctx, identity, proposalID, choice, facts)
	if err != nil {
		return Vote{}, err
	}

	ev := proposalEvent(EventVoteCast, p, identity, vote.CastAt)
	ev.Choice = choice
	c.publish(ctx, ev)
	return vote, nil
}

func (c *Controller) appendVote(ctx context.Context, identity, proposalID string, choice Choice, facts Facts) (Vote, Proposal, error) {
	unlock := c.locks.lockVote(identity, proposalID)
	defer unlock()

	p, err := c.proposals.Get(ctx, proposalID)
	if err != nil {
		return Vote{}, Proposal{}, err
	}
	voted, err := c.ledger.Has(ctx, identity, proposalID)
	if err != nil {
		return Vote{}, Proposal{}, err
	}
	now := c.clock.Now()
	el := Evaluate(facts, p, voted, now)
	if !el.Eligible {
		return Vote{}, Proposal{}, &IneligibleError{Reason: el.Reason}
	}
	vote, err := c.ledger.Append(ctx, Vote{
		Voter:      identity,
		ProposalID: proposalID,
		Choice:     choice,
		ParcelID:   el.ParcelID,
		CastAt:     now,
	})
	if err != nil {
		return Vote{}, Proposal{}, err
	}
	return vote, p, nil
}

// Eligibility reports whether identity may currently vote on proposalID.
func (c *Controller) Eligibility(ctx context.Context, identity, proposalID string) (Eligibility, error) {
	return c.resolver.CanVote(ctx, identity, proposalID)
}

// Tally computes the current snapshot for proposalID.
func (c *Controller) Tally(ctx context.Context, proposalID string) (TallySnapshot, error) {
	p, err := c.proposals.Get(ctx, proposalID)
	if err != nil {
		return TallySnapshot{}, err
	}
	return c.tally.Snapshot(ctx, p)
}

// GetProposal looks up one proposal.
func (c *Controller) GetProposal(ctx context.Context, id string) (Proposal, error) {
	return c.proposals.Get(ctx, id)
}

// ListProposals returns proposals matching f.
func (c *Controller) ListProposals(ctx context.Context, f Filter) ([]Proposal, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "is not a known status"}
	}
	return c.proposals.List(ctx, f)
}

// VoteOf returns the vote identity cast on proposalID.
func (c *Controller) VoteOf(ctx context.Context, identity, proposalID string) (Vote, error) {
	return c.ledger.Get(ctx, identity, proposalID)
}

// IngestParcel is the registry ingestion callback: it upserts a parcel record.
func (c *Controller) IngestParcel(ctx context.Context, p Parcel) (Parcel, error) {
	return c.parcels.Upsert(ctx, p)
}

// Parcel looks up one parcel.
func (c *Controller) Parcel(ctx context.Context, id string) (Parcel, error) {
	return c.parcels.Get(ctx, id)
}

// ParcelsOwnedBy lists the parcels of owner.
func (c *Controller) ParcelsOwnedBy(ctx context.Context, owner string) ([]Parcel, error) {
	return c.parcels.OwnedBy(ctx, owner)
}

// ParcelsInRegion lists the parcels of region.
func (c *Controller) ParcelsInRegion(ctx context.Context, region string) ([]Parcel, error) {
	return c.parcels.InRegion(ctx, region)
}

// ParcelState is how a parcel appears on a proposal's map.
type ParcelState string

const (
	ParcelEligible   ParcelState = "eligible"
	ParcelVoted      ParcelState = "voted"
	ParcelIneligible ParcelState = "ineligible"
)

// MapParcel is a parcel annotated for one proposal.
type MapParcel struct {
	Parcel
	State ParcelState `json:"state"`
}

// ParcelMap annotates every parcel in the proposal's region: voted when its
// owner has voted, eligible when it qualifies and voting is open, ineligible
// otherwise. Owner roles are not re-resolved here.
func (c *Controller) ParcelMap(ctx context.Context, proposalID string) ([]MapParcel, error) {
	p, err := c.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	parcels, err := c.parcels.InRegion(ctx, p.Region)
	if err != nil {
		return nil, err
	}
	votes, err := c.ledger.ForProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		voted[v.Voter] = true
	}
	open := VotingOpen(p, c.clock.Now())
	out := make([]MapParcel, 0, len(parcels))
	for _, pc := range parcels {
		state := ParcelIneligible
		switch {
		case voted[pc.Owner]:
			state = ParcelVoted
		case open && pc.Eligible():
			state = ParcelEligible
		}
		out = append(out, MapParcel{Parcel: pc, State: state})
	}
	return out, nil
}

func (c *Controller) illegal(err error) error {
	if errors.Is(err, ErrIllegalTransition) {
		log.Printf("governance: %v", err)
	}
	return err
}

func (c *Controller) publish(ctx context.Context, ev Event) {
	for _, pub := range c.publishers {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, ev); err != nil {
			log.Printf("governance: publish %s for %s: %v", ev.Kind, ev.ProposalID, err)
		}
	}
}
