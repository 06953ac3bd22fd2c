package governance

import (
	"context"
	"time"
)

// EventKind names a committed state change.
type EventKind string

const (
	EventProposalCreated   EventKind = "proposal.created"
	EventProposalSubmitted EventKind = "proposal.submitted"
	EventProposalActivated EventKind = "proposal.activated"
	EventProposalClosed    EventKind = "proposal.closed"
	EventProposalDiscarded EventKind = "proposal.discarded"
	EventVoteCast          EventKind = "vote.cast"
)

// Event is emitted after a command commits.
type Event struct {
	Kind       EventKind      `json:"kind"`
	ProposalID string         `json:"proposalId"`
	Title      string         `json:"title,omitempty"`
	Region     string         `json:"region,omitempty"`
	Status     Status         `json:"status,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Choice     Choice         `json:"choice,omitempty"`
	Deadline   time.Time      `json:"deadline,omitempty"`
	Tally      *TallySnapshot `json:"tally,omitempty"`
	At         time.Time      `json:"at"`
}

// Publisher receives committed events. Failures are logged by the caller and
// never undo the command.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

func proposalEvent(kind EventKind, p Proposal, actor string, at time.Time) Event {
	return Event{
		Kind:       kind,
		ProposalID: p.ID,
		Title:      p.Title,
		Region:     p.Region,
		Status:     p.Status,
		Actor:      actor,
		Deadline:   p.Deadline,
		At:         at,
	}
}
