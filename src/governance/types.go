// Package governance implements the land-parcel proposal engine: proposal
// lifecycle, vote eligibility, the append-only vote ledger and tallying.
package governance

import (
	"strings"
	"time"
)

// Role is the governance role an identity holds according to the registry.
type Role string

const (
	RoleUnknown   Role = "unknown"
	RoleLandowner Role = "landowner"
	RoleProposer  Role = "proposer"
	RoleValidator Role = "validator"
)

func (r Role) rank() int {
	switch r {
	case RoleLandowner:
		return 1
	case RoleProposer:
		return 2
	case RoleValidator:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() > 0 && r.rank() >= min.rank()
}

// ParseRole maps free-form input to a Role, returning RoleUnknown for anything else.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleLandowner:
		return RoleLandowner
	case RoleProposer:
		return RoleProposer
	case RoleValidator:
		return RoleValidator
	default:
		return RoleUnknown
	}
}

// Status is a proposal lifecycle state.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusActive      Status = "active"
	StatusPassed      Status = "passed"
	StatusRejected    Status = "rejected"
	StatusExpired     Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusRejected || s == StatusExpired
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusActive, StatusPassed, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Choice is a vote direction.
type Choice string

const (
	ChoiceFor     Choice = "for"
	ChoiceAgainst Choice = "against"
)

// Valid reports whether c is For or Against.
func (c Choice) Valid() bool {
	return c == ChoiceFor || c == ChoiceAgainst
}

// Parcel is a unit of land with an owner and a region.
type Parcel struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Region        string    `json:"region"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	OwnerVerified bool      `json:"ownerVerified"`
	Disputed      bool      `json:"disputed"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Eligible is the derived eligibility flag: an active parcel with a verified
// owner that is not under dispute.
func (p Parcel) Eligible() bool {
	return p.Active && p.OwnerVerified && !p.Disputed
}

// Proposal is a governance item targeting one region.
type Proposal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Region      string     `json:"region"`
	Proposer    string     `json:"proposer"`
	RoleGate    Role       `json:"roleGate"`
	Status      Status     `json:"status"`
	Quorum      int        `json:"quorum"`
	Deadline    time.Time  `json:"deadline"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// Draft carries the caller-supplied fields of a new proposal.
type Draft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Region      string    `json:"region"`
	Deadline    time.Time `json:"deadline"`
	RoleGate    Role      `json:"roleGate,omitempty"`
	Quorum      int       `json:"quorum,omitempty"`
}

// Filter narrows a proposal listing. Zero fields match everything.
type Filter struct {
	Status Status
	Region string
}

// Match reports whether p satisfies the filter.
func (f Filter) Match(p Proposal) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	return true
}

// Vote is an immutable ledger record.
type Vote struct {
	Voter      string    `json:"voter"`
	ProposalID string    `json:"proposalId"`
	Choice     Choice    `json:"choice"`
	ParcelID   string    `json:"parcelId"`
	CastAt     time.Time `json:"castAt"`
}

// Counts is the per-choice aggregate of a proposal's votes.
type Counts struct {
	For     int `json:"for"`
	Against int `json:"against"`
}

// Total is For + Against.
func (c Counts) Total() int { return c.For + c.Against }
