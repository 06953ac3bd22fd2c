package data

import (
	"context"
	"errors"

	"github.com/stake-plus/landvote/src/api/types"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
)

// VoteLedger stores votes append-only. The (voter, proposal_id) unique index
// is the final guard against a second vote from another replica.
type VoteLedger struct{ db *gorm.DB }

func NewVoteLedger(db *gorm.DB) *VoteLedger { return &VoteLedger{db: db} }

func (l *VoteLedger) Append(ctx context.Context, v governance.Vote) (governance.Vote, error) {
	row := types.Vote{
		ProposalID: v.ProposalID,
		Voter:      v.Voter,
		Choice:     string(v.Choice),
		ParcelID:   v.ParcelID,
		CastAt:     v.CastAt.UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return governance.Vote{}, &governance.IneligibleError{Reason: governance.ReasonAlreadyVoted}
		}
		return governance.Vote{}, err
	}
	return v, nil
}

func (l *VoteLedger) Has(ctx context.Context, voter, proposalID string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&types.Vote{}).
		Where("voter = ? AND proposal_id = ?", voter, proposalID).
		Count(&n).Error
	return n > 0, err
}

func (l *VoteLedger) Get(ctx context.Context, voter, proposalID string) (governance.Vote, error) {
	var row types.Vote
	err := l.db.WithContext(ctx).
		Where("voter = ? AND proposal_id = ?", voter, proposalID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return governance.Vote{}, governance.ErrNotFound
		}
		return governance.Vote{}, err
	}
	return toVote(row), nil
}

// Counts groups the proposal's votes by choice.
func (l *VoteLedger) Counts(ctx context.Context, proposalID string) (governance.Counts, error) {
	type row struct {
		Choice string
		Count  int
	}
	var rows []row
	err := l.db.WithContext(ctx).Model(&types.Vote{}).
		Select("choice, COUNT(*) as count").
		Where("proposal_id = ?", proposalID).
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return governance.Counts{}, err
	}
	var c governance.Counts
	for _, r := range rows {
		switch governance.Choice(r.Choice) {
		case governance.ChoiceFor:
			c.For = r.Count
		case governance.ChoiceAgainst:
			c.Against = r.Count
		}
	}
	return c, nil
}

func (l *VoteLedger) ForProposal(ctx context.Context, proposalID string) ([]governance.Vote, error) {
	var rows []types.Vote
	err := l.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("cast_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]governance.Vote, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVote(r))
	}
	return out, nil
}

func toVote(r types.Vote) governance.Vote {
	return governance.Vote{
		Voter:      r.Voter,
		ProposalID: r.ProposalID,
		Choice:     governance.Choice(r.Choice),
		ParcelID:   r.ParcelID,
		CastAt:     r.CastAt.UTC(),
	}
}
