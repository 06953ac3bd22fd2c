package data

import (
	"context"
	"errors"

	"github.com/stake-plus/landvote/src/api/types"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParcelStore keeps the ownership records fed in by the land registry.
type ParcelStore struct {
	db    *gorm.DB
	clock governance.Clock
}

func NewParcelStore(db *gorm.DB, clock governance.Clock) *ParcelStore {
	if clock == nil {
		clock = governance.SystemClock{}
	}
	return &ParcelStore{db: db, clock: clock}
}

func (s *ParcelStore) Get(ctx context.Context, id string) (governance.Parcel, error) {
	var row types.Parcel
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return governance.Parcel{}, governance.ErrNotFound
		}
		return governance.Parcel{}, err
	}
	return toParcel(row), nil
}

func (s *ParcelStore) OwnedBy(ctx context.Context, owner string) ([]governance.Parcel, error) {
	return s.find(ctx, "owner = ?", owner)
}

func (s *ParcelStore) InRegion(ctx context.Context, region string) ([]governance.Parcel, error) {
	return s.find(ctx, "region = ?", region)
}

// Upsert validates and stores a record. An existing parcel keeps its region
// and coordinates; only owner and eligibility columns are updated.
func (s *ParcelStore) Upsert(ctx context.Context, p governance.Parcel) (governance.Parcel, error) {
	if err := governance.ValidateParcel(p); err != nil {
		return governance.Parcel{}, err
	}
	p.UpdatedAt = s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev types.Parcel
		err := tx.First(&prev, "id = ?", p.ID).Error
		switch {
		case err == nil:
			merged, err := governance.MergeParcel(toParcel(prev), p)
			if err != nil {
				return err
			}
			p = merged
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		row := types.Parcel{
			ID:            p.ID,
			Owner:         p.Owner,
			Region:        p.Region,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			OwnerVerified: p.OwnerVerified,
			Disputed:      p.Disputed,
			Active:        p.Active,
			CreatedAt:     p.UpdatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"owner", "owner_verified", "disputed", "active", "updated_at",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return governance.Parcel{}, err
	}
	return p, nil
}

func (s *ParcelStore) find(ctx context.Context, query string, arg string) ([]governance.Parcel, error) {
	var rows []types.Parcel
	if err := s.db.WithContext(ctx).Where(query, arg).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.Parcel, 0, len(rows))
	for _, r := range rows {
		out = append(out, toParcel(r))
	}
	return out, nil
}

func toParcel(r types.Parcel) governance.Parcel {
	return governance.Parcel{
		ID:            r.ID,
		Owner:         r.Owner,
		Region:        r.Region,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		OwnerVerified: r.OwnerVerified,
		Disputed:      r.Disputed,
		Active:        r.Active,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}
