package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
)

// CloseBillingPeriods closes open periods whose end date has passed and
// returns how many were closed. A period that fails to aggregate is skipped.
func (s *Service) CloseBillingPeriods(ctx context.Context) (int, error) {
	now := s.now().UTC()
	today := civilDate(now.In(s.loc))
	periods, err := s.repo.ListPeriodsToClose(ctx, today, s.cfg.ScanPageSize)
	if err != nil {
		s.logg.Error(ctx, "billing.close.scan_failed", err)
		return 0, storageError(err, "list periods to close")
	}

	closed, skipped := 0, 0
	for i := range periods {
		period := periods[i]
		ok, err := s.closePeriod(ctx, &period, now)
		if err != nil {
			skipped++
			s.logg.WarnErr(s.periodContext(ctx, &period), "billing.close.period_skipped", err)
			continue
		}
		if ok {
			closed++
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned": len(periods),
		"closed":  closed,
		"skipped": skipped,
	}), "billing.close.completed")
	return closed, nil
}

func (s *Service) closePeriod(ctx context.Context, period *models.BillingPeriod, now time.Time) (bool, error) {
	deadline := s.callToInvoiceDeadline(period.EndDate)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		totals, err := repo.AggregateTransactions(ctx, period.EstablishmentID, period.PeriodCode)
		if err != nil {
			return err
		}

		net := totals.GrossCents - totals.CommissionCents - totals.RefundsCents
		if totals.SummedNetCents-totals.RefundsCents != net {
			s.logg.Warn(s.logg.WithFields(s.periodContext(ctx, period), map[string]any{
				"computed_net_cents": net,
				"summed_net_cents":   totals.SummedNetCents,
				"refunds_cents":      totals.RefundsCents,
			}), "billing.close.net_mismatch")
		}

		if err := s.applyPeriod(ctx, repo, period, TriggerClose, map[string]any{
			"total_gross_cents":        totals.GrossCents,
			"total_commission_cents":   totals.CommissionCents,
			"total_net_cents":          net,
			"total_refunds_cents":      totals.RefundsCents,
			"transaction_count":        totals.Count,
			"call_to_invoice_deadline": deadline,
			"closed_at":                now,
		}); err != nil {
			return err
		}

		return s.emit(ctx, tx, enums.EventBillingPeriodClosed, enums.AggregateBillingPeriod, period.ID, systemActor(), now, payloads.PeriodClosedEvent{
			PeriodID:              period.ID,
			EstablishmentID:       period.EstablishmentID,
			PeriodCode:            period.PeriodCode,
			TotalGrossCents:       totals.GrossCents,
			TotalCommissionCents:  totals.CommissionCents,
			TotalNetCents:         net,
			TotalRefundsCents:     totals.RefundsCents,
			TransactionCount:      totals.Count,
			CallToInvoiceDeadline: deadline,
		})
	})
	if err != nil {
		// Another worker closed it first.
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SendInvoiceReminders emits a reminder for closed periods that ended exactly
// FirstReminderDay days ago and a final reminder for those that ended
// FinalReminderDay days ago. It returns how many reminders were queued.
func (s *Service) SendInvoiceReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	today := civilDate(now.In(s.loc))
	earliest := today.AddDate(0, 0, -s.cfg.FinalReminderDay)
	periods, err := s.repo.ListPeriodsAwaitingInvoice(ctx, earliest, s.cfg.ScanPageSize)
	if err != nil {
		s.logg.Error(ctx, "billing.reminders.scan_failed", err)
		return 0, storageError(err, "list periods awaiting invoice")
	}

	sent := 0
	for i := range periods {
		period := periods[i]
		days := daysBetween(period.EndDate, today)
		var final bool
		switch days {
		case s.cfg.FirstReminderDay:
			final = false
		case s.cfg.FinalReminderDay:
			final = true
		default:
			continue
		}

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventBillingInvoiceReminder, enums.AggregateBillingPeriod, period.ID, systemActor(), now, payloads.InvoiceReminderEvent{
				PeriodID:              period.ID,
				EstablishmentID:       period.EstablishmentID,
				PeriodCode:            period.PeriodCode,
				DaysSinceEnd:          days,
				Final:                 final,
				CallToInvoiceDeadline: *period.CallToInvoiceDeadline,
			})
		})
		if err != nil {
			s.logg.WarnErr(s.periodContext(ctx, &period), "billing.reminders.period_skipped", err)
			continue
		}
		sent++
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned": len(periods),
		"sent":    sent,
	}), "billing.reminders.completed")
	return sent, nil
}

// RolloverExpiredPeriods moves the completed transactions of closed periods
// whose call to invoice deadline passed into the period covering the current
// date, and marks the expired period corrected. It returns how many periods
// were rolled over.
func (s *Service) RolloverExpiredPeriods(ctx context.Context) (int, error) {
	now := s.now().UTC()
	periods, err := s.repo.ListExpiredPeriods(ctx, now, s.cfg.ScanPageSize)
	if err != nil {
		s.logg.Error(ctx, "billing.rollover.scan_failed", err)
		return 0, storageError(err, "list expired periods")
	}

	targetCode := PeriodCodeFor(now.In(s.loc))
	rolled, skipped := 0, 0
	for i := range periods {
		period := periods[i]
		if period.PeriodCode == targetCode {
			skipped++
			s.logg.Warn(s.periodContext(ctx, &period), "billing.rollover.target_is_current_period")
			continue
		}
		ok, err := s.rolloverPeriod(ctx, &period, targetCode, now)
		if err != nil {
			skipped++
			s.logg.WarnErr(s.periodContext(ctx, &period), "billing.rollover.period_skipped", err)
			continue
		}
		if ok {
			rolled++
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned":     len(periods),
		"rolled_over": rolled,
		"skipped":     skipped,
		"target_code": targetCode,
	}), "billing.rollover.completed")
	return rolled, nil
}

func (s *Service) rolloverPeriod(ctx context.Context, period *models.BillingPeriod, targetCode string, now time.Time) (bool, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.applyPeriod(ctx, repo, period, TriggerRollover, map[string]any{}); err != nil {
			return err
		}

		toID, err := s.ensurePeriod(ctx, repo, period.EstablishmentID, now)
		if err != nil {
			return storageError(err, "ensure rollover target period")
		}
		moved, err := repo.ReassignTransactions(ctx, period.EstablishmentID, period.PeriodCode, targetCode)
		if err != nil {
			return storageError(err, "reassign transactions")
		}

		s.logg.Info(s.logg.WithFields(s.periodContext(ctx, period), map[string]any{
			"to_period_code":     targetCode,
			"transactions_moved": moved,
		}), "billing.period.rolled_over")
		return s.emit(ctx, tx, enums.EventBillingPeriodRolledOver, enums.AggregateBillingPeriod, period.ID, systemActor(), now, payloads.PeriodRolledOverEvent{
			PeriodID:          period.ID,
			EstablishmentID:   period.EstablishmentID,
			FromPeriodCode:    period.PeriodCode,
			ToPeriodCode:      targetCode,
			ToPeriodID:        toID,
			TransactionsMoved: moved,
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// callToInvoiceDeadline is local midnight starting the day CallToInvoiceDeadlineDays after endDate.
func (s *Service) callToInvoiceDeadline(endDate time.Time) time.Time {
	return time.Date(endDate.Year(), endDate.Month(), endDate.Day()+s.cfg.CallToInvoiceDeadlineDays, 0, 0, 0, 0, s.loc).UTC()
}

func systemActor() *outbox.ActorRef {
	return buildActor(uuid.Nil, nil, enums.ActorRoleSystem)
}
