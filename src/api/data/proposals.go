package data

import (
	"context"
	"errors"
	"time"

	"github.com/stake-plus/landvote/src/api/types"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
)

// ProposalStore persists proposals in MySQL. Transitions are conditional
// updates on the current status so concurrent API replicas cannot both move
// the same proposal.
type ProposalStore struct{ db *gorm.DB }

func NewProposalStore(db *gorm.DB) *ProposalStore { return &ProposalStore{db: db} }

func (s *ProposalStore) Create(ctx context.Context, p governance.Proposal) (governance.Proposal, error) {
	row := proposalRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return governance.Proposal{}, &governance.ValidationError{Kind: governance.ErrInvalidProposal, Field: "id", Reason: "already exists"}
		}
		return governance.Proposal{}, err
	}
	return toProposal(row), nil
}

func (s *ProposalStore) Get(ctx context.Context, id string) (governance.Proposal, error) {
	row, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return governance.Proposal{}, err
	}
	return toProposal(row), nil
}

func (s *ProposalStore) List(ctx context.Context, f governance.Filter) ([]governance.Proposal, error) {
	q := s.db.WithContext(ctx).Model(&types.Proposal{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Region != "" {
		q = q.Where("region = ?", f.Region)
	}
	var rows []types.Proposal
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.Proposal, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProposal(r))
	}
	return out, nil
}

func (s *ProposalStore) Transition(ctx context.Context, id string, from, to governance.Status, mutate func(*governance.Proposal)) (governance.Proposal, error) {
	var out governance.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, id)
		if err != nil {
			return err
		}
		current := governance.Status(row.Status)
		if current != from || !governance.CanTransition(from, to) {
			return &governance.TransitionError{ID: id, From: current, To: to}
		}
		next := toProposal(row)
		if mutate != nil {
			mutate(&next)
		}
		next.Status = to

		res := tx.Model(&types.Proposal{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]interface{}{
				"status":       string(to),
				"submitted_at": next.SubmittedAt,
				"approved_by":  next.ApprovedBy,
				"activated_at": next.ActivatedAt,
				"closed_at":    next.ClosedAt,
				"updated_at":   next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &governance.TransitionError{ID: id, From: current, To: to, Detail: "status changed concurrently"}
		}
		out = next
		return nil
	})
	if err != nil {
		return governance.Proposal{}, err
	}
	return out, nil
}

func (s *ProposalStore) Delete(ctx context.Context, id string) error {
	db := s.db.WithContext(ctx)
	res := db.Where("id = ? AND status IN ?", id, []string{string(governance.StatusDraft), string(governance.StatusUnderReview)}).
		Delete(&types.Proposal{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	row, err := s.load(db, id)
	if err != nil {
		return err
	}
	return &governance.TransitionError{ID: id, From: governance.Status(row.Status), Detail: "only draft or under review proposals can be discarded"}
}

func (s *ProposalStore) load(db *gorm.DB, id string) (types.Proposal, error) {
	var row types.Proposal
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Proposal{}, governance.ErrNotFound
		}
		return types.Proposal{}, err
	}
	return row, nil
}

func proposalRow(p governance.Proposal) types.Proposal {
	return types.Proposal{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Region:      p.Region,
		Proposer:    p.Proposer,
		RoleGate:    string(p.RoleGate),
		Status:      string(p.Status),
		Quorum:      p.Quorum,
		Deadline:    p.Deadline.UTC(),
		SubmittedAt: utcPtr(p.SubmittedAt),
		ApprovedBy:  p.ApprovedBy,
		ActivatedAt: utcPtr(p.ActivatedAt),
		ClosedAt:    utcPtr(p.ClosedAt),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func toProposal(r types.Proposal) governance.Proposal {
	return governance.Proposal{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Region:      r.Region,
		Proposer:    r.Proposer,
		RoleGate:    governance.Role(r.RoleGate),
		Status:      governance.Status(r.Status),
		Quorum:      r.Quorum,
		Deadline:    r.Deadline.UTC(),
		SubmittedAt: utcPtr(r.SubmittedAt),
		ApprovedBy:  r.ApprovedBy,
		ActivatedAt: utcPtr(r.ActivatedAt),
		ClosedAt:    utcPtr(r.ClosedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
