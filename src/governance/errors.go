package governance

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrInvalidProposal        = errors.New("invalid proposal")
	ErrInvalidOwnershipRecord = errors.New("invalid ownership record")
	ErrNotFound               = errors.New("not found")
	ErrIllegalTransition      = errors.New("illegal transition")
	ErrNotEligible            = errors.New("not eligible")
	ErrAlreadyVoted           = errors.New("already voted")
	ErrProposalNotActive      = errors.New("proposal not active")
	ErrForbidden              = errors.New("forbidden")
)

// ValidationError describes malformed input. Kind is ErrInvalidProposal or
// ErrInvalidOwnershipRecord; both also match ErrValidation.
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	kind := ErrValidation
	if e.Kind != nil {
		kind = e.Kind
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Kind}
}

func invalidProposal(field, reason string) error {
	return &ValidationError{Kind: ErrInvalidProposal, Field: field, Reason: reason}
}

func invalidOwnership(field, reason string) error {
	return &ValidationError{Kind: ErrInvalidOwnershipRecord, Field: field, Reason: reason}
}

// Reason codes reported by the eligibility resolver.
type Reason string

const (
	ReasonRoleInsufficient   Reason = "RoleInsufficient"
	ReasonNoQualifyingParcel Reason = "NoQualifyingParcel"
	ReasonVotingClosed       Reason = "VotingClosed"
	ReasonAlreadyVoted       Reason = "AlreadyVoted"
)

// IneligibleError is returned by CastVote when the resolver refuses the vote.
// It matches ErrAlreadyVoted, ErrProposalNotActive or ErrNotEligible depending
// on the reason.
type IneligibleError struct {
	Reason Reason
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s: %s", e.sentinel(), e.Reason)
}

func (e *IneligibleError) sentinel() error {
	switch e.Reason {
	case ReasonAlreadyVoted:
		return ErrAlreadyVoted
	case ReasonVotingClosed:
		return ErrProposalNotActive
	default:
		return ErrNotEligible
	}
}

func (e *IneligibleError) Unwrap() error { return e.sentinel() }

// TransitionError reports a lifecycle move the state machine does not allow.
type TransitionError struct {
	ID     string
	From   Status
	To     Status
	Detail string
}

func (e *TransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: proposal %s in %s: %s", ErrIllegalTransition, e.ID, e.From, e.Detail)
	}
	return fmt.Sprintf("%s: proposal %s cannot move from %s to %s", ErrIllegalTransition, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// ReasonOf extracts the eligibility reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ie *IneligibleError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}
