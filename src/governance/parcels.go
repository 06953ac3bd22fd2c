package governance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const maxIdentifierLen = 128

// ParcelStore holds parcel records. Writes arrive only through Upsert, the
// registry ingestion callback.
type ParcelStore interface {
	Get(ctx context.Context, id string) (Parcel, error)
	OwnedBy(ctx context.Context, owner string) ([]Parcel, error)
	InRegion(ctx context.Context, region string) ([]Parcel, error)
	Upsert(ctx context.Context, p Parcel) (Parcel, error)
}

// ValidateParcel checks an ownership record before ingestion.
func ValidateParcel(p Parcel) error {
	if err := checkIdentifier(p.ID); err != "" {
		return invalidOwnership("id", err)
	}
	if err := checkIdentifier(p.Owner); err != "" {
		return invalidOwnership("owner", err)
	}
	if err := checkIdentifier(p.Region); err != "" {
		return invalidOwnership("region", err)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return invalidOwnership("latitude", "out of range")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return invalidOwnership("longitude", "out of range")
	}
	return nil
}

func checkIdentifier(s string) string {
	switch {
	case s == "":
		return "is required"
	case strings.TrimSpace(s) != s:
		return "has surrounding whitespace"
	case len(s) > maxIdentifierLen:
		return "is too long"
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "contains control characters"
		}
	}
	return ""
}

// MemoryParcels is an in-process ParcelStore.
type MemoryParcels struct {
	mu      sync.RWMutex
	clock   Clock
	parcels map[string]Parcel
}

// NewMemoryParcels returns an empty store.
func NewMemoryParcels(clock Clock) *MemoryParcels {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryParcels{clock: clock, parcels: make(map[string]Parcel)}
}

func (s *MemoryParcels) Get(_ context.Context, id string) (Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parcels[id]
	if !ok {
		return Parcel{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryParcels) OwnedBy(_ context.Context, owner string) ([]Parcel, error) {
	return s.collect(func(p Parcel) bool { return p.Owner == owner }), nil
}

func (s *MemoryParcels) InRegion(_ context.Context, region string) ([]Parcel, error) {
	return s.collect(func(p Parcel) bool { return p.Region == region }), nil
}

func (s *MemoryParcels) Upsert(_ context.Context, p Parcel) (Parcel, error) {
	if err := ValidateParcel(p); err != nil {
		return Parcel{}, err
	}
	p.UpdatedAt = s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.parcels[p.ID]; ok {
		merged, err := MergeParcel(prev, p)
		if err != nil {
			return Parcel{}, err
		}
		p = merged
	}
	s.parcels[p.ID] = p
	return p, nil
}

// MergeParcel applies an ingested record to the stored one. Only the owner
// and the eligibility inputs change; region and coordinates are fixed at
// first ingestion.
func MergeParcel(prev, next Parcel) (Parcel, error) {
	if next.Region != prev.Region {
		return Parcel{}, invalidOwnership("region", "cannot change for an existing parcel")
	}
	prev.Owner = next.Owner
	prev.OwnerVerified = next.OwnerVerified
	prev.Disputed = next.Disputed
	prev.Active = next.Active
	prev.UpdatedAt = next.UpdatedAt
	return prev, nil
}

func (s *MemoryParcels) collect(keep func(Parcel) bool) []Parcel {
	s.mu.RLock()
	out := make([]Parcel, 0)
	for _, p := range s.parcels {
		if keep(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
