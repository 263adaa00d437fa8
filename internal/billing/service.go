package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
	"github.com/menusam/partner-billing/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the billing service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.BillingMetrics
	Config  config.BillingConfig
	Now     func() time.Time
}

// Service runs the billing period and dispute workflows plus the batch jobs that drive them.
type Service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.BillingMetrics
	cfg     config.BillingConfig
	loc     *time.Location
	now     func() time.Time
}

// NewService validates dependencies and returns a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.CallToInvoiceDeadlineDays <= 0 {
		return nil, fmt.Errorf("call to invoice deadline days must be positive")
	}
	if params.Config.ScanPageSize <= 0 {
		params.Config.ScanPageSize = config.DefaultBillingConfig().ScanPageSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		cfg:     params.Config,
		loc:     params.Config.Location(),
		now:     now,
	}, nil
}

// CallToInvoiceResult reports the outcome of a partner call to invoice.
type CallToInvoiceResult struct {
	InvoiceGenerated bool
}

// EnsurePeriod returns the id of the establishment's period covering date,
// creating an open period when none exists.
func (s *Service) EnsurePeriod(ctx context.Context, establishmentID uuid.UUID, date time.Time) (uuid.UUID, error) {
	return s.ensurePeriod(ctx, s.repo, establishmentID, date)
}

func (s *Service) ensurePeriod(ctx context.Context, repo Repository, establishmentID uuid.UUID, date time.Time) (uuid.UUID, error) {
	code := PeriodCodeFor(date.In(s.loc))
	existing, err := repo.FindPeriodByCode(ctx, establishmentID, code)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	dates, err := DateRangeFor(code)
	if err != nil {
		return uuid.Nil, err
	}
	period := &models.BillingPeriod{
		ID:              uuid.New(),
		EstablishmentID: establishmentID,
		PeriodCode:      code,
		StartDate:       dates.Start,
		EndDate:         dates.End,
		Status:          enums.BillingPeriodStatusOpen,
	}
	created, insertErr := repo.CreatePeriod(ctx, period)
	if insertErr == nil && created {
		s.logg.Info(s.periodContext(ctx, period), "billing.period.created")
		return period.ID, nil
	}

	// Lost the race with a concurrent caller; the winner's row should be visible now.
	existing, err = repo.FindPeriodByCode(ctx, establishmentID, code)
	if err == nil {
		return existing.ID, nil
	}
	if insertErr != nil {
		return uuid.Nil, insertErr
	}
	return uuid.Nil, fmt.Errorf("billing period %s for establishment %s conflicted on insert but was not found: %w", code, establishmentID, err)
}

// CallToInvoice records that the partner issued their commission invoice for a closed period.
func (s *Service) CallToInvoice(ctx context.Context, periodID, establishmentID uuid.UUID) (CallToInvoiceResult, error) {
	if periodID == uuid.Nil {
		return CallToInvoiceResult{}, pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}
	if establishmentID == uuid.Nil {
		return CallToInvoiceResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "establishment context missing")
	}

	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, periodID, &establishmentID)
		if err != nil {
			return err
		}
		if !TriggerCallToInvoice.CanFire(period.Status) {
			return s.rejectTransition(ctx, TriggerCallToInvoice, period.Status)
		}
		if period.CallToInvoiceDeadline != nil && now.After(*period.CallToInvoiceDeadline) {
			s.metrics.IncTransition(string(TriggerCallToInvoice), metrics.OutcomeRejected)
			return pkgerrors.New(pkgerrors.CodeDeadlinePassed,
				fmt.Sprintf("call to invoice deadline passed on %s", period.CallToInvoiceDeadline.In(s.loc).Format(time.RFC3339)))
		}

		if err := s.applyPeriod(ctx, repo, period, TriggerCallToInvoice, map[string]any{
			"invoice_submitted_at": now,
		}); err != nil {
			return err
		}
		period.InvoiceSubmittedAt = &now

		actor := buildActor(uuid.Nil, &establishmentID, enums.ActorRolePartner)
		if err := s.emit(ctx, tx, enums.EventBillingInvoiceSubmitted, enums.AggregateBillingPeriod, period.ID, actor, now, payloads.InvoiceSubmittedEvent{
			PeriodID:             period.ID,
			EstablishmentID:      period.EstablishmentID,
			PeriodCode:           period.PeriodCode,
			TotalCommissionCents: period.TotalCommissionCents,
			SubmittedAt:          now,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventCommissionInvoiceRequested, enums.AggregateBillingPeriod, period.ID, actor, now, payloads.CommissionInvoiceRequestedEvent{
			PeriodID:             period.ID,
			EstablishmentID:      period.EstablishmentID,
			PeriodCode:           period.PeriodCode,
			StartDate:            period.StartDate.Format(time.DateOnly),
			EndDate:              period.EndDate.Format(time.DateOnly),
			TotalGrossCents:      period.TotalGrossCents,
			TotalCommissionCents: period.TotalCommissionCents,
			TotalNetCents:        period.TotalNetCents,
			TotalRefundsCents:    period.TotalRefundsCents,
			TransactionCount:     period.TransactionCount,
		})
	})
	if err != nil {
		return CallToInvoiceResult{}, err
	}
	return CallToInvoiceResult{InvoiceGenerated: true}, nil
}

// ValidateInvoice accepts a submitted invoice and sets the payment due date.
func (s *Service) ValidateInvoice(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error) {
	if err := requireAdminInput(periodID, adminUserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dueDate := now.AddDate(0, 0, s.cfg.PaymentDelayDays)
	var out *models.BillingPeriod
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, periodID, nil)
		if err != nil {
			return err
		}
		if err := s.applyPeriod(ctx, repo, period, TriggerValidateInvoice, map[string]any{
			"invoice_validated_at": now,
			"invoice_validated_by": adminUserID,
			"payment_due_date":     dueDate,
		}); err != nil {
			return err
		}
		period.InvoiceValidatedAt = &now
		period.InvoiceValidatedBy = &adminUserID
		period.PaymentDueDate = &dueDate

		out = period
		return s.emit(ctx, tx, enums.EventBillingInvoiceValidated, enums.AggregateBillingPeriod, period.ID,
			buildActor(adminUserID, nil, enums.ActorRoleAdmin), now, payloads.InvoiceValidatedEvent{
				PeriodID:        period.ID,
				EstablishmentID: period.EstablishmentID,
				PeriodCode:      period.PeriodCode,
				PaymentDueDate:  dueDate,
				ValidatedBy:     adminUserID,
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SchedulePayment books the payment run of a validated invoice. The due date is kept.
func (s *Service) SchedulePayment(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error) {
	if err := requireAdminInput(periodID, adminUserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var out *models.BillingPeriod
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, periodID, nil)
		if err != nil {
			return err
		}
		if err := s.applyPeriod(ctx, repo, period, TriggerSchedulePayment, map[string]any{
			"payment_scheduled_at": now,
		}); err != nil {
			return err
		}
		period.PaymentScheduledAt = &now

		out = period
		return s.emit(ctx, tx, enums.EventBillingPaymentScheduled, enums.AggregateBillingPeriod, period.ID,
			buildActor(adminUserID, nil, enums.ActorRoleAdmin), now, payloads.PaymentScheduledEvent{
				PeriodID:        period.ID,
				EstablishmentID: period.EstablishmentID,
				PeriodCode:      period.PeriodCode,
				PaymentDueDate:  period.PaymentDueDate,
				ScheduledBy:     adminUserID,
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExecutePayment marks a validated or scheduled period as paid.
func (s *Service) ExecutePayment(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error) {
	if err := requireAdminInput(periodID, adminUserID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var out *models.BillingPeriod
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, periodID, nil)
		if err != nil {
			return err
		}
		if err := s.applyPeriod(ctx, repo, period, TriggerExecutePayment, map[string]any{
			"payment_executed_at": now,
			"payment_executed_by": adminUserID,
		}); err != nil {
			return err
		}
		period.PaymentExecutedAt = &now
		period.PaymentExecutedBy = &adminUserID

		out = period
		return s.emit(ctx, tx, enums.EventBillingPaymentExecuted, enums.AggregateBillingPeriod, period.ID,
			buildActor(adminUserID, nil, enums.ActorRoleAdmin), now, payloads.PaymentExecutedEvent{
				PeriodID:        period.ID,
				EstablishmentID: period.EstablishmentID,
				PeriodCode:      period.PeriodCode,
				NetAmountCents:  period.TotalNetCents,
				ExecutedAt:      now,
				ExecutedBy:      adminUserID,
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResumeAfterDispute moves a period whose dispute was rejected back to the
// invoice stage it had reached, so validation and payment can continue.
func (s *Service) ResumeAfterDispute(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error) {
	if err := requireAdminInput(periodID, adminUserID); err != nil {
		return nil, err
	}

	var out *models.BillingPeriod
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		period, err := s.loadPeriod(ctx, repo, periodID, nil)
		if err != nil {
			return err
		}
		if err := s.applyPeriodTo(ctx, repo, period, TriggerResumePeriod, resumeTarget(period), map[string]any{}); err != nil {
			return err
		}
		out = period
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPeriod loads a period. When establishmentID is set, periods of other establishments are reported as not found.
func (s *Service) GetPeriod(ctx context.Context, periodID uuid.UUID, establishmentID *uuid.UUID) (*models.BillingPeriod, error) {
	return s.loadPeriod(ctx, s.repo, periodID, establishmentID)
}

// ListPeriodsInput filters period listings.
type ListPeriodsInput struct {
	EstablishmentID *uuid.UUID
	Status          *enums.BillingPeriodStatus
	Params          pagination.Params
}

// ListPeriodsResult is one page of periods.
type ListPeriodsResult struct {
	Periods    []models.BillingPeriod
	NextCursor string
}

// ListPeriods pages through periods newest first.
func (s *Service) ListPeriods(ctx context.Context, input ListPeriodsInput) (ListPeriodsResult, error) {
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return ListPeriodsResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	periods, next, err := s.repo.ListPeriods(ctx, ListPeriodsQuery{
		EstablishmentID: input.EstablishmentID,
		Status:          input.Status,
		Limit:           input.Params.Limit,
		Cursor:          cursor,
	})
	if err != nil {
		return ListPeriodsResult{}, storageError(err, "list billing periods")
	}
	result := ListPeriodsResult{Periods: periods}
	if next != nil {
		result.NextCursor = next.String()
	}
	return result, nil
}

func (s *Service) loadPeriod(ctx context.Context, repo Repository, periodID uuid.UUID, establishmentID *uuid.UUID) (*models.BillingPeriod, error) {
	period, err := repo.FindPeriodByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing period not found")
		}
		return nil, storageError(err, "load billing period")
	}
	if establishmentID != nil && period.EstablishmentID != *establishmentID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing period not found")
	}
	return period, nil
}

// applyPeriod fires trigger against the period with a conditional update.
// Losing a race to another writer is reported as invalid_status naming the status found afterwards.
func (s *Service) applyPeriod(ctx context.Context, repo Repository, period *models.BillingPeriod, trigger Trigger, updates map[string]any) error {
	return s.applyPeriodTo(ctx, repo, period, trigger, trigger.Target(), updates)
}

func (s *Service) applyPeriodTo(ctx context.Context, repo Repository, period *models.BillingPeriod, trigger Trigger, target enums.BillingPeriodStatus, updates map[string]any) error {
	if !trigger.CanFire(period.Status) {
		return s.rejectTransition(ctx, trigger, period.Status)
	}
	updates["status"] = target
	applied, err := repo.TransitionPeriod(ctx, period.ID, trigger.AllowedFrom(), updates)
	if err != nil {
		s.metrics.IncTransition(string(trigger), metrics.OutcomeError)
		return storageError(err, "update billing period")
	}
	if !applied {
		current := period.Status
		if fresh, err := repo.FindPeriodByID(ctx, period.ID); err == nil {
			current = fresh.Status
		}
		return s.rejectTransition(ctx, trigger, current)
	}

	from := period.Status
	period.Status = target
	s.metrics.IncTransition(string(trigger), metrics.OutcomeApplied)
	logCtx := s.logg.WithFields(s.periodContext(ctx, period), map[string]any{
		"trigger":     string(trigger),
		"category":    string(trigger.Category()),
		"from_status": string(from),
		"to_status":   string(period.Status),
	})
	s.logg.Info(logCtx, "billing.period.transitioned")
	return nil
}

func (s *Service) rejectTransition(ctx context.Context, trigger Trigger, current enums.BillingPeriodStatus) error {
	s.metrics.IncTransition(string(trigger), metrics.OutcomeRejected)
	return pkgerrors.New(pkgerrors.CodeInvalidStatus, trigger.invalidStatusMessage(current)).
		WithDetails(map[string]any{"status": string(current)})
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, actor *outbox.ActorRef, occurredAt time.Time, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       1,
		Actor:         actor,
		OccurredAt:    occurredAt,
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("emit %s", eventType))
	}
	return nil
}

func (s *Service) periodContext(ctx context.Context, period *models.BillingPeriod) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"period_id":        period.ID.String(),
		"establishment_id": period.EstablishmentID.String(),
		"period_code":      period.PeriodCode,
	})
}

func requireAdminInput(periodID, adminUserID uuid.UUID) error {
	if periodID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}
	if adminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func storageError(err error, action string) error {
	return pkgerrors.FromStorage(err, action)
}

func buildActor(userID uuid.UUID, establishmentID *uuid.UUID, role enums.ActorRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:          userID,
		EstablishmentID: establishmentID,
		Role:            string(role),
	}
}
