package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/menusam/partner-billing/pkg/db"
	"github.com/menusam/partner-billing/pkg/db/models"
	dbtypes "github.com/menusam/partner-billing/pkg/db/types"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
	"github.com/menusam/partner-billing/pkg/pagination"
	"github.com/menusam/partner-billing/pkg/types"
)

const (
	reasonExcerptLength         = 140
	pendingDisputeConstraint    = "ux_billing_disputes_one_pending_per_period"
	maxDisputedTransactionCount = 500
)

// CreateDisputeInput captures a partner's contestation of a period.
type CreateDisputeInput struct {
	PeriodID               uuid.UUID
	EstablishmentID        uuid.UUID
	Reason                 string
	DisputedTransactionIDs []uuid.UUID
	Evidence               []types.Evidence
}

// CreateDisputeResult carries the id of the new dispute.
type CreateDisputeResult struct {
	DisputeID uuid.UUID
}

// RespondToDisputeInput carries the admin decision on a pending dispute.
type RespondToDisputeInput struct {
	DisputeID             uuid.UUID
	AdminUserID           uuid.UUID
	Decision              enums.DisputeDecision
	Response              string
	CorrectionAmountCents *int64
}

// CreateDispute opens a dispute on a post-close period and moves the period to disputed.
func (s *Service) CreateDispute(ctx context.Context, input CreateDisputeInput) (CreateDisputeResult, error) {
	if input.PeriodID == uuid.Nil {
		return CreateDisputeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}
	if input.EstablishmentID == uuid.Nil {
		return CreateDisputeResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "establishment context missing")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return CreateDisputeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if len(input.DisputedTransactionIDs) > maxDisputedTransactionCount {
		return CreateDisputeResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d disputed transactions allowed", maxDisputedTransactionCount))
	}
	disputed := make(dbtypes.UUIDArray, 0, len(input.DisputedTransactionIDs))
	for _, id := range input.DisputedTransactionIDs {
		if id == uuid.Nil {
			return CreateDisputeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "disputed transaction id invalid")
		}
		if !disputed.Contains(id) {
			disputed = append(disputed, id)
		}
	}

	now := s.now().UTC()
	var disputeID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, input.PeriodID, &input.EstablishmentID)
		if err != nil {
			return err
		}
		if !TriggerOpenDispute.CanFire(period.Status) {
			return s.rejectTransition(ctx, TriggerOpenDispute, period.Status)
		}
		pending, err := repo.HasPendingDispute(ctx, period.ID)
		if err != nil {
			return storageError(err, "check pending disputes")
		}
		if pending {
			s.metrics.IncTransition(string(TriggerOpenDispute), metrics.OutcomeRejected)
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "billing period already has a pending dispute")
		}

		if err := s.applyPeriod(ctx, repo, period, TriggerOpenDispute, map[string]any{}); err != nil {
			return err
		}

		dispute := &models.BillingDispute{
			ID:                   uuid.New(),
			BillingPeriodID:      period.ID,
			EstablishmentID:      period.EstablishmentID,
			Reason:               reason,
			DisputedTransactions: disputed,
			Evidence:             types.EvidenceList(input.Evidence),
			Status:               enums.BillingDisputeStatusOpen,
		}
		if err := repo.CreateDispute(ctx, dispute); err != nil {
			if dbpkg.IsUniqueViolation(err, pendingDisputeConstraint) {
				return pkgerrors.New(pkgerrors.CodeInvalidStatus, "billing period already has a pending dispute")
			}
			return storageError(err, "create dispute")
		}
		disputeID = dispute.ID

		s.logg.Info(s.disputeContext(ctx, dispute), "billing.dispute.opened")
		return s.emit(ctx, tx, enums.EventBillingDisputeOpened, enums.AggregateBillingDispute, dispute.ID,
			buildActor(uuid.Nil, &input.EstablishmentID, enums.ActorRolePartner), now, payloads.DisputeOpenedEvent{
				DisputeID:                dispute.ID,
				PeriodID:                 period.ID,
				EstablishmentID:          period.EstablishmentID,
				PeriodCode:               period.PeriodCode,
				ReasonExcerpt:            excerpt(reason, reasonExcerptLength),
				DisputedTransactionCount: len(disputed),
				EvidenceCount:            len(input.Evidence),
			})
	})
	if err != nil {
		return CreateDisputeResult{}, err
	}
	return CreateDisputeResult{DisputeID: disputeID}, nil
}

// MarkDisputeUnderReview records that an admin picked up an open dispute.
func (s *Service) MarkDisputeUnderReview(ctx context.Context, disputeID, adminUserID uuid.UUID) (*models.BillingDispute, error) {
	if err := requireDisputeInput(disputeID, adminUserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var out *models.BillingDispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		if err := s.applyDispute(ctx, repo, dispute, DisputeActionReview, map[string]any{
			"reviewed_by":       adminUserID,
			"review_started_at": now,
		}, pkgerrors.CodeInvalidStatus); err != nil {
			return err
		}
		dispute.ReviewedBy = &adminUserID
		dispute.ReviewStartedAt = &now

		out = dispute
		return s.emit(ctx, tx, enums.EventBillingDisputeUnderReview, enums.AggregateBillingDispute, dispute.ID,
			buildActor(adminUserID, nil, enums.ActorRoleAdmin), now, payloads.DisputeUnderReviewEvent{
				DisputeID:       dispute.ID,
				PeriodID:        dispute.BillingPeriodID,
				EstablishmentID: dispute.EstablishmentID,
				ReviewedBy:      adminUserID,
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RespondToDispute resolves a pending dispute. Accepting stores the correction
// amount and corrects the period; rejecting clears it and resolves the period.
func (s *Service) RespondToDispute(ctx context.Context, input RespondToDisputeInput) (*models.BillingDispute, error) {
	if err := requireDisputeInput(input.DisputeID, input.AdminUserID); err != nil {
		return nil, err
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", input.Decision))
	}

	// A rejection stores no correction, whatever the caller sent.
	var correction *int64
	action := DisputeActionReject
	if input.Decision == enums.DisputeDecisionAccept {
		action = DisputeActionAccept
		amount := int64(0)
		if input.CorrectionAmountCents != nil {
			amount = *input.CorrectionAmountCents
		}
		if amount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "correction amount must not be negative")
		}
		correction = &amount
	}
	response := strings.TrimSpace(input.Response)

	now := s.now().UTC()
	var out *models.BillingDispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadDispute(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if err := s.applyDispute(ctx, repo, dispute, action, map[string]any{
			"admin_response":          response,
			"admin_responded_by":      input.AdminUserID,
			"admin_responded_at":      now,
			"correction_amount_cents": correction,
		}, pkgerrors.CodeAlreadyResolved); err != nil {
			return err
		}
		dispute.AdminResponse = &response
		dispute.AdminRespondedBy = &input.AdminUserID
		dispute.AdminRespondedAt = &now
		dispute.CorrectionAmountCents = correction

		period, err := s.loadPeriod(ctx, repo, dispute.BillingPeriodID, nil)
		if err != nil {
			return err
		}
		if err := s.applyPeriod(ctx, repo, period, periodTriggerFor(input.Decision), map[string]any{}); err != nil {
			return err
		}

		actor := buildActor(input.AdminUserID, nil, enums.ActorRoleAdmin)
		if err := s.emit(ctx, tx, enums.EventBillingDisputeResolved, enums.AggregateBillingDispute, dispute.ID, actor, now, payloads.DisputeResolvedEvent{
			DisputeID:             dispute.ID,
			PeriodID:              period.ID,
			EstablishmentID:       dispute.EstablishmentID,
			PeriodCode:            period.PeriodCode,
			Decision:              input.Decision,
			AdminResponse:         response,
			CorrectionAmountCents: correction,
		}); err != nil {
			return err
		}
		if correction != nil && *correction > 0 {
			if err := s.emit(ctx, tx, enums.EventCorrectionCreditNoteRequested, enums.AggregateBillingDispute, dispute.ID, actor, now, payloads.CorrectionCreditNoteRequestedEvent{
				DisputeID:             dispute.ID,
				PeriodID:              period.ID,
				EstablishmentID:       dispute.EstablishmentID,
				PeriodCode:            period.PeriodCode,
				CorrectionAmountCents: *correction,
			}); err != nil {
				return err
			}
		}
		out = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EscalateDispute reopens a rejected dispute for a final admin answer within the SLA window.
func (s *Service) EscalateDispute(ctx context.Context, disputeID, adminUserID uuid.UUID) (*models.BillingDispute, error) {
	if err := requireDisputeInput(disputeID, adminUserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	resolveBy := AddBusinessDays(now.In(s.loc), s.cfg.EscalationSLABusinessDays).UTC()
	var out *models.BillingDispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		if err := s.applyDispute(ctx, repo, dispute, DisputeActionEscalate, map[string]any{
			"escalated_at": now,
		}, pkgerrors.CodeInvalidStatus); err != nil {
			return err
		}
		dispute.EscalatedAt = &now

		out = dispute
		return s.emit(ctx, tx, enums.EventBillingDisputeEscalated, enums.AggregateBillingDispute, dispute.ID,
			buildActor(adminUserID, nil, enums.ActorRoleAdmin), now, payloads.DisputeEscalatedEvent{
				DisputeID:       dispute.ID,
				PeriodID:        dispute.BillingPeriodID,
				EstablishmentID: dispute.EstablishmentID,
				EscalatedAt:     now,
				ResolveBy:       resolveBy,
				SLABusinessDays: s.cfg.EscalationSLABusinessDays,
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDisputesInput filters dispute listings.
type ListDisputesInput struct {
	EstablishmentID *uuid.UUID
	PeriodID        *uuid.UUID
	Status          *enums.BillingDisputeStatus
	Params          pagination.Params
}

// ListDisputesResult is one page of disputes.
type ListDisputesResult struct {
	Disputes   []models.BillingDispute
	NextCursor string
}

// ListDisputes pages through disputes newest first.
func (s *Service) ListDisputes(ctx context.Context, input ListDisputesInput) (ListDisputesResult, error) {
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return ListDisputesResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	disputes, next, err := s.repo.ListDisputes(ctx, ListDisputesQuery{
		EstablishmentID: input.EstablishmentID,
		PeriodID:        input.PeriodID,
		Status:          input.Status,
		Limit:           input.Params.Limit,
		Cursor:          cursor,
	})
	if err != nil {
		return ListDisputesResult{}, storageError(err, "list disputes")
	}
	result := ListDisputesResult{Disputes: disputes}
	if next != nil {
		result.NextCursor = next.String()
	}
	return result, nil
}

func (s *Service) loadDispute(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.BillingDispute, error) {
	dispute, err := repo.FindDisputeByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, storageError(err, "load dispute")
	}
	return dispute, nil
}

// applyDispute moves the dispute with a conditional update. rejectCode is the
// error code reported when the dispute is not in an allowed status.
func (s *Service) applyDispute(ctx context.Context, repo Repository, dispute *models.BillingDispute, action DisputeAction, updates map[string]any, rejectCode pkgerrors.Code) error {
	event := "dispute_" + string(action)
	reject := func(current enums.BillingDisputeStatus) error {
		s.metrics.IncTransition(event, metrics.OutcomeRejected)
		msg := fmt.Sprintf("dispute is %s; %s not allowed", current, action)
		if rejectCode == pkgerrors.CodeAlreadyResolved {
			msg = fmt.Sprintf("dispute already resolved (%s)", current)
		}
		return pkgerrors.New(rejectCode, msg).WithDetails(map[string]any{"status": string(current)})
	}

	if !action.CanApply(dispute.Status) {
		return reject(dispute.Status)
	}
	updates["status"] = action.Target()
	applied, err := repo.TransitionDispute(ctx, dispute.ID, action.AllowedFrom(), updates)
	if err != nil {
		s.metrics.IncTransition(event, metrics.OutcomeError)
		return storageError(err, "update dispute")
	}
	if !applied {
		current := dispute.Status
		if fresh, err := repo.FindDisputeByID(ctx, dispute.ID); err == nil {
			current = fresh.Status
		}
		return reject(current)
	}

	from := dispute.Status
	dispute.Status = action.Target()
	s.metrics.IncTransition(event, metrics.OutcomeApplied)
	logCtx := s.logg.WithFields(s.disputeContext(ctx, dispute), map[string]any{
		"action":      string(action),
		"from_status": string(from),
		"to_status":   string(dispute.Status),
	})
	s.logg.Info(logCtx, "billing.dispute.transitioned")
	return nil
}

func (s *Service) disputeContext(ctx context.Context, dispute *models.BillingDispute) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"dispute_id":       dispute.ID.String(),
		"period_id":        dispute.BillingPeriodID.String(),
		"establishment_id": dispute.EstablishmentID.String(),
	})
}

func requireDisputeInput(disputeID, adminUserID uuid.UUID) error {
	if disputeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if adminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func excerpt(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "…"
}
