package governance

import (
	"context"
	"strings"
	"time"
)

// TieBreak decides a quorate proposal whose For and Against counts are equal.
type TieBreak string

const (
	// TieReject keeps the status quo: strict majority is required to pass.
	TieReject TieBreak = "reject"
	TiePass   TieBreak = "pass"
)

// ParseTieBreak maps configuration input to a TieBreak, defaulting to TieReject.
func ParseTieBreak(s string) TieBreak {
	if TieBreak(strings.ToLower(strings.TrimSpace(s))) == TiePass {
		return TiePass
	}
	return TieReject
}

// Policy holds the deployer-configurable tally rules.
type Policy struct {
	// Quorum is the default minimum number of votes cast, copied onto each
	// proposal at creation unless the draft overrides it.
	Quorum   int
	TieBreak TieBreak
}

// DefaultPolicy is a quorum of one vote and strict-majority passing.
func DefaultPolicy() Policy {
	return Policy{Quorum: 1, TieBreak: TieReject}
}

// Outcome is the derived result of a tally.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomePassed   Outcome = "passed"
	OutcomeRejected Outcome = "rejected"
	OutcomeExpired  Outcome = "expired"
)

// TallySnapshot is a point-in-time aggregate. It is never stored.
type TallySnapshot struct {
	ProposalID     string    `json:"proposalId"`
	Status         Status    `json:"status"`
	For            int       `json:"for"`
	Against        int       `json:"against"`
	Total          int       `json:"total"`
	EligibleVoters int       `json:"eligibleVoters"`
	ForPercentage  float64   `json:"forPercentage"`
	Quorum         int       `json:"quorum"`
	QuorumMet      bool      `json:"quorumMet"`
	Outcome        Outcome   `json:"outcome"`
	At             time.Time `json:"at"`
}

// ForPercentage is For / (For+Against) * 100, or 0 when nothing was cast.
func ForPercentage(c Counts) float64 {
	total := c.Total()
	if total <= 0 {
		return 0
	}
	return float64(c.For) / float64(total) * 100
}

// Decide returns the terminal status an Active proposal moves to once its
// deadline has passed.
func Decide(c Counts, quorum int, tie TieBreak) Status {
	if c.Total() < quorum || c.Total() == 0 {
		return StatusExpired
	}
	if c.For > c.Against {
		return StatusPassed
	}
	if c.For == c.Against && tie == TiePass {
		return StatusPassed
	}
	return StatusRejected
}

// Tally aggregates votes into snapshots.
type Tally struct {
	ledger  VoteLedger
	parcels ParcelStore
	policy  Policy
	clock   Clock
}

// NewTally builds a tally engine.
func NewTally(ledger VoteLedger, parcels ParcelStore, policy Policy, clock Clock) *Tally {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tally{ledger: ledger, parcels: parcels, policy: policy, clock: clock}
}

// Snapshot computes the current tally for p.
func (t *Tally) Snapshot(ctx context.Context, p Proposal) (TallySnapshot, error) {
	counts, err := t.ledger.Counts(ctx, p.ID)
	if err != nil {
		return TallySnapshot{}, err
	}
	inRegion, err := t.parcels.InRegion(ctx, p.Region)
	if err != nil {
		return TallySnapshot{}, err
	}
	owners := make(map[string]struct{})
	for _, pc := range inRegion {
		if pc.Eligible() {
			owners[pc.Owner] = struct{}{}
		}
	}
	return t.build(p, counts, len(owners), t.clock.Now()), nil
}

func (t *Tally) build(p Proposal, c Counts, eligible int, now time.Time) TallySnapshot {
	quorum := p.Quorum
	if quorum < 1 {
		quorum = t.policy.Quorum
	}
	snap := TallySnapshot{
		ProposalID:     p.ID,
		Status:         p.Status,
		For:            c.For,
		Against:        c.Against,
		Total:          c.Total(),
		EligibleVoters: eligible,
		ForPercentage:  ForPercentage(c),
		Quorum:         quorum,
		QuorumMet:      c.Total() >= quorum && c.Total() > 0,
		Outcome:        OutcomePending,
		At:             now,
	}
	switch {
	case p.Status.Terminal():
		snap.Outcome = Outcome(p.Status)
	case p.Status == StatusActive && !now.Before(p.Deadline):
		snap.Outcome = Outcome(Decide(c, quorum, t.policy.TieBreak))
	}
	return snap
}
