package governance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const downtown = "Downtown District"

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	ctx       context.Context
	clock     *ManualClock
	proposals *MemoryProposals
	parcels   *MemoryParcels
	ledger    *MemoryLedger
	registry  *StoreRegistry
	events    *recorder
	ctl       *Controller
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	clock := NewManualClock(epoch)
	parcels := NewMemoryParcels(clock)
	f := &fixture{
		ctx:       context.Background(),
		clock:     clock,
		proposals: NewMemoryProposals(),
		parcels:   parcels,
		ledger:    NewMemoryLedger(),
		registry:  NewStoreRegistry(parcels),
		events:    &recorder{},
	}
	f.ctl = NewController(Deps{
		Proposals:  f.proposals,
		Parcels:    f.parcels,
		Ledger:     f.ledger,
		Registry:   f.registry,
		Clock:      clock,
		Policy:     policy,
		Catalog:    DefaultCatalog(),
		Publishers: []Publisher{f.events},
	})
	f.registry.SetRole("proposer", RoleProposer)
	f.registry.SetRole("validator", RoleValidator)
	return f
}

// landowner registers identity as a landowner with one eligible parcel in region.
func (f *fixture) landowner(t *testing.T, identity, parcelID, region string) {
	t.Helper()
	f.registry.SetRole(identity, RoleLandowner)
	_, err := f.ctl.IngestParcel(f.ctx, Parcel{
		ID:            parcelID,
		Owner:         identity,
		Region:        region,
		OwnerVerified: true,
		Active:        true,
	})
	require.NoError(t, err)
}

func (f *fixture) draft(region string, quorum int) Draft {
	return Draft{
		Title:       "Mixed use zoning",
		Description: "Allow mixed-use development in the core.",
		Category:    "Zoning Amendment",
		Region:      region,
		Deadline:    f.clock.Now().Add(72 * time.Hour),
		Quorum:      quorum,
	}
}

// activeProposal creates, submits and approves a proposal.
func (f *fixture) activeProposal(t *testing.T, region string, quorum int) Proposal {
	t.Helper()
	p, err := f.ctl.CreateProposal(f.ctx, "proposer", f.draft(region, quorum))
	require.NoError(t, err)
	_, err = f.ctl.SubmitProposal(f.ctx, "proposer", p.ID)
	require.NoError(t, err)
	p, err = f.ctl.ApproveProposal(f.ctx, "validator", p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, p.Status)
	return p
}

// voters registers n landowners in region and returns their identities.
func (f *fixture) voters(t *testing.T, region string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("owner-%02d", i)
		f.landowner(t, ids[i], fmt.Sprintf("parcel-%02d", i), region)
	}
	return ids
}
