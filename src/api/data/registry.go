package data

import (
	"context"
	"errors"
	"strings"

	"github.com/stake-plus/landvote/src/api/types"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry resolves identities against the landowners table and their parcels.
// Unverified landowners resolve to the unknown role.
type Registry struct {
	db      *gorm.DB
	parcels *ParcelStore
}

func NewRegistry(db *gorm.DB, parcels *ParcelStore) *Registry {
	return &Registry{db: db, parcels: parcels}
}

func (r *Registry) ResolveRole(ctx context.Context, identity string) (governance.Role, error) {
	var row types.Landowner
	if err := r.db.WithContext(ctx).First(&row, "address = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return governance.RoleUnknown, nil
		}
		return governance.RoleUnknown, err
	}
	if !row.Verified {
		return governance.RoleUnknown, nil
	}
	return governance.ParseRole(row.Role), nil
}

func (r *Registry) ResolveParcels(ctx context.Context, identity string) ([]governance.Parcel, error) {
	return r.parcels.OwnedBy(ctx, identity)
}

// Landowner is an identity record as delivered by the registry feed.
type Landowner struct {
	Address  string `json:"address" yaml:"address"`
	Role     string `json:"role" yaml:"role"`
	Verified bool   `json:"verified" yaml:"verified"`
	Discord  string `json:"discord,omitempty" yaml:"discord"`
}

// UpsertLandowner records or replaces an identity's role.
func (r *Registry) UpsertLandowner(ctx context.Context, l Landowner) error {
	addr := strings.TrimSpace(l.Address)
	if addr == "" || addr != l.Address {
		return &governance.ValidationError{Kind: governance.ErrInvalidOwnershipRecord, Field: "address", Reason: "must be a non-empty identifier"}
	}
	role := governance.ParseRole(l.Role)
	if role == governance.RoleUnknown {
		return &governance.ValidationError{Kind: governance.ErrInvalidOwnershipRecord, Field: "role", Reason: "unknown role " + l.Role}
	}
	row := types.Landowner{Address: addr, Role: string(role), Verified: l.Verified, Discord: l.Discord}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "verified", "discord", "updated_at"}),
	}).Create(&row).Error
}

// Landowners lists every identity record ordered by address.
func (r *Registry) Landowners(ctx context.Context) ([]Landowner, error) {
	var rows []types.Landowner
	if err := r.db.WithContext(ctx).Order("address ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Landowner, 0, len(rows))
	for _, row := range rows {
		out = append(out, Landowner{Address: row.Address, Role: row.Role, Verified: row.Verified, Discord: row.Discord})
	}
	return out, nil
}
