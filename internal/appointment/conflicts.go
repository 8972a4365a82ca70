package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

type BlockResult struct {
	Block     availability.Block    `json:"block"`
	Window    availability.Interval `json:"window"`
	State     DraftState            `json:"state"`
	DraftID   *uuid.UUID            `json:"draft_id,omitempty"`
	Conflicts []Summary             `json:"conflicts,omitempty"`
	Cancelled []Summary             `json:"cancelled,omitempty"`
}

func cancelReasonBlock(b availability.Block) string {
	if b.Reason == "" {
		return "agenda_blocked"
	}
	return "agenda_blocked: " + b.Reason
}

// CreateOrUpdateBlock saves a block when its immediate window is free. When
// active appointments overlap that window nothing is saved: a draft is kept
// for the operator and ErrConflictsPending is returned along with the
// conflicting appointments.
func (s *Service) CreateOrUpdateBlock(ctx context.Context, b availability.Block) (*BlockResult, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	} else {
		existing, err := s.repo.GetBlock(ctx, b.ID)
		switch {
		case errors.Is(err, ErrBlockNotFound):
		case err != nil:
			return nil, fmt.Errorf("load block: %w", err)
		case existing.CompanyID != b.CompanyID:
			return nil, ErrCompanyMismatch
		}
	}
	b.Active = true

	if err := b.Validate(); err != nil {
		return nil, err
	}

	cat, err := s.catalog(ctx, b.CompanyID)
	if err != nil {
		return nil, err
	}
	if b.Target == availability.TargetProfessional {
		pro, err := s.repo.GetProfessional(ctx, *b.ProfessionalID)
		if err != nil {
			if errors.Is(err, ErrProfessionalNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load professional: %w", err)
		}
		if pro.CompanyID != b.CompanyID {
			return nil, ErrProfessionalNotFound
		}
	}

	now := s.now()
	window, ok := b.ImmediateOccurrence(now, cat.loc)
	if !ok {
		return nil, fmt.Errorf("%w: weekly recurrence ended before its next occurrence", availability.ErrInvalidBlock)
	}

	conflicts, err := s.repo.ApplyBlock(ctx, ApplyBlockRequest{
		Block:  b,
		Window: window,
		Now:    now,
	})
	if errors.Is(err, ErrConflictsPending) {
		ids := make([]uuid.UUID, 0, len(conflicts))
		for _, a := range conflicts {
			ids = append(ids, a.ID)
		}
		draft := BlockDraft{
			ID:          uuid.New(),
			CompanyID:   b.CompanyID,
			Block:       b,
			Window:      window,
			State:       DraftStateConflictChecked,
			ConflictIDs: ids,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.SaveBlockDraft(ctx, draft); err != nil {
			return nil, fmt.Errorf("save block draft: %w", err)
		}

		s.metrics.BlockOutcome("conflicts_pending")
		s.log.Info().
			Str("block_id", b.ID.String()).
			Str("draft_id", draft.ID.String()).
			Int("conflicts", len(conflicts)).
			Msg("block held for confirmation")

		return &BlockResult{
			Block:     b,
			Window:    window,
			State:     DraftStateConflictChecked,
			DraftID:   &draft.ID,
			Conflicts: summaries(conflicts),
		}, ErrConflictsPending
	}
	if err != nil {
		return nil, fmt.Errorf("apply block: %w", err)
	}

	s.forget(b.CompanyID, cat.version)
	s.metrics.BlockOutcome("applied")
	s.log.Info().Str("block_id", b.ID.String()).Msg("block applied")

	return &BlockResult{Block: b, Window: window, State: DraftStateApplied}, nil
}

// ConfirmBlockWithCancellations applies a held block and cancels every
// appointment still overlapping its window. The store does both in one
// transaction: either the block and all cancellations land or nothing does.
func (s *Service) ConfirmBlockWithCancellations(ctx context.Context, companyID, draftID uuid.UUID) (*BlockResult, error) {
	draft, err := s.loadDraft(ctx, companyID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.State != DraftStateConflictChecked {
		return nil, ErrInvalidDraftState
	}

	cancelled, err := s.repo.ApplyBlock(ctx, ApplyBlockRequest{
		DraftID:         &draft.ID,
		Block:           draft.Block,
		Window:          draft.Window,
		CancelConflicts: true,
		Now:             s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidDraftState) || errors.Is(err, ErrBlockDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("apply block draft: %w", err)
	}

	s.metrics.BlockOutcome("confirmed")
	for _, a := range cancelled {
		s.log.Info().
			Str("appointment_id", a.ID.String()).
			Str("block_id", draft.Block.ID.String()).
			Msg("appointment cancelled by block")
	}

	block := draft.Block
	block.Active = true
	return &BlockResult{
		Block:     block,
		Window:    draft.Window,
		State:     DraftStateApplied,
		DraftID:   &draft.ID,
		Cancelled: summaries(cancelled),
	}, nil
}

// AbortBlock discards a held block. Appointments are left untouched and an
// edited block keeps its previous window.
func (s *Service) AbortBlock(ctx context.Context, companyID, draftID uuid.UUID) (*BlockResult, error) {
	if _, err := s.loadDraft(ctx, companyID, draftID); err != nil {
		return nil, err
	}
	draft, err := s.repo.AbortBlockDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, ErrInvalidDraftState) || errors.Is(err, ErrBlockDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("abort block draft: %w", err)
	}

	s.metrics.BlockOutcome("aborted")
	return &BlockResult{
		Block:   draft.Block,
		Window:  draft.Window,
		State:   DraftStateAborted,
		DraftID: &draft.ID,
	}, nil
}

func (s *Service) DeactivateBlock(ctx context.Context, companyID, blockID uuid.UUID) (*availability.Block, error) {
	existing, err := s.repo.GetBlock(ctx, blockID)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load block: %w", err)
	}
	if companyID != uuid.Nil && existing.CompanyID != companyID {
		return nil, ErrCompanyMismatch
	}

	b, err := s.repo.DeactivateBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("deactivate block: %w", err)
	}
	s.log.Info().Str("block_id", blockID.String()).Msg("block deactivated")
	return b, nil
}

// SaveTemplate validates and stores an availability template. Existing
// appointments are not re-checked against the new hours.
func (s *Service) SaveTemplate(ctx context.Context, tpl availability.Template) (*availability.Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	} else {
		existing, err := s.repo.GetTemplate(ctx, tpl.ID)
		switch {
		case errors.Is(err, ErrTemplateNotFound):
		case err != nil:
			return nil, fmt.Errorf("load template: %w", err)
		case existing.CompanyID != tpl.CompanyID:
			return nil, ErrCompanyMismatch
		}
	}

	saved, err := s.repo.SaveTemplate(ctx, tpl)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("save template: %w", err)
	}
	s.log.Info().Str("template_id", saved.ID.String()).Msg("availability template saved")
	return saved, nil
}

func (s *Service) loadDraft(ctx context.Context, companyID, draftID uuid.UUID) (*BlockDraft, error) {
	draft, err := s.repo.GetBlockDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, ErrBlockDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load block draft: %w", err)
	}
	if companyID != uuid.Nil && draft.CompanyID != companyID {
		return nil, ErrCompanyMismatch
	}
	return draft, nil
}
