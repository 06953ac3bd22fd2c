package types

import "time"

// Landowners known to the identity registry
type Landowner struct {
	Address   string `gorm:"primaryKey;size:128"`
	Role      string `gorm:"size:16;not null;default:landowner"`
	Verified  bool   `gorm:"default:false"`
	Discord   string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Land parcels
type Parcel struct {
	ID            string  `gorm:"primaryKey;size:128"`
	Owner         string  `gorm:"size:128;index;not null"`
	Region        string  `gorm:"size:128;index;not null"`
	Latitude      float64 `gorm:"default:0"`
	Longitude     float64 `gorm:"default:0"`
	OwnerVerified bool    `gorm:"not null"`
	Disputed      bool    `gorm:"not null"`
	Active        bool    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Governance proposals
type Proposal struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text;not null"`
	Category    string    `gorm:"size:64;not null"`
	Region      string    `gorm:"size:128;index;not null"`
	Proposer    string    `gorm:"size:128;not null"`
	RoleGate    string    `gorm:"size:16;not null"`
	Status      string    `gorm:"size:16;index;not null"`
	Quorum      int       `gorm:"not null"`
	Deadline    time.Time `gorm:"index;not null"`
	SubmittedAt *time.Time
	ApprovedBy  string `gorm:"size:128"`
	ActivatedAt *time.Time
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Votes, append-only. One row per (voter, proposal).
type Vote struct {
	ID         uint64    `gorm:"primaryKey"`
	ProposalID string    `gorm:"size:36;not null;index;uniqueIndex:idx_votes_voter_proposal,priority:2"`
	Voter      string    `gorm:"size:128;not null;uniqueIndex:idx_votes_voter_proposal,priority:1"`
	Choice     string    `gorm:"size:8;not null"`
	ParcelID   string    `gorm:"size:128;not null"`
	CastAt     time.Time `gorm:"not null"`
}

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

// AllModels lists every table the API migrates.
var AllModels = []interface{}{
	&Setting{}, &Landowner{}, &Parcel{}, &Proposal{}, &Vote{},
}
