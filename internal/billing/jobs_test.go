package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
)

func TestCloseBillingPeriodsAggregatesAndSetsDeadline(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	due := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, PeriodCode: "2026-01-A", StartDate: date(2026, time.January, 1), EndDate: date(2026, time.January, 15)})
	current := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, PeriodCode: "2026-01-B", StartDate: date(2026, time.January, 16), EndDate: date(2026, time.January, 31)})
	repo.totals["2026-01-A"] = PeriodTotals{GrossCents: 10000, CommissionCents: 1200, SummedNetCents: 8800, RefundsCents: 500, Count: 4}
	svc := newTestService(t, repo, pub, fixedNow)

	closed, err := svc.CloseBillingPeriods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	stored := repo.periods[due.ID]
	require.Equal(t, enums.BillingPeriodStatusClosed, stored.Status)
	require.Equal(t, int64(10000), stored.TotalGrossCents)
	require.Equal(t, int64(1200), stored.TotalCommissionCents)
	require.Equal(t, int64(500), stored.TotalRefundsCents)
	require.Equal(t, int64(8300), stored.TotalNetCents)
	require.Equal(t, 4, stored.TransactionCount)
	require.Equal(t, date(2026, time.January, 25), *stored.CallToInvoiceDeadline)
	require.Equal(t, fixedNow, *stored.ClosedAt)
	require.Equal(t, enums.BillingPeriodStatusOpen, repo.periods[current.ID].Status)

	require.Equal(t, []enums.OutboxEventType{enums.EventBillingPeriodClosed}, pub.types())
	event := pub.events[0].Data.(payloads.PeriodClosedEvent)
	require.Equal(t, int64(8300), event.TotalNetCents)
}

func TestCloseBillingPeriodsSkipsFailedAggregation(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	broken := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, PeriodCode: "2025-12-B", EndDate: date(2025, time.December, 31)})
	repo.aggregateErr["2025-12-B"] = errors.New("statement timeout")
	svc := newTestService(t, repo, pub, fixedNow)

	closed, err := svc.CloseBillingPeriods(context.Background())
	require.NoError(t, err)
	require.Zero(t, closed)
	require.Equal(t, enums.BillingPeriodStatusOpen, repo.periods[broken.ID].Status)
	require.Empty(t, pub.events)

	healthy := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, PeriodCode: "2026-01-A", EndDate: date(2026, time.January, 15)})
	closed, err = svc.CloseBillingPeriods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, closed)
	require.Equal(t, enums.BillingPeriodStatusClosed, repo.periods[healthy.ID].Status)
}

func TestCloseBillingPeriodsKeepsComputedNetOnMismatch(t *testing.T) {
	repo := newStubBillingRepo()
	period := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, PeriodCode: "2026-01-A", EndDate: date(2026, time.January, 15)})
	repo.totals["2026-01-A"] = PeriodTotals{GrossCents: 10000, CommissionCents: 1000, SummedNetCents: 7000, Count: 2}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	_, err := svc.CloseBillingPeriods(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(9000), repo.periods[period.ID].TotalNetCents)
}

func TestSendInvoiceRemindersOnExactDays(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	deadline := date(2026, time.January, 30)
	first := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusClosed, EndDate: date(2026, time.January, 17), CallToInvoiceDeadline: &deadline})
	final := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusClosed, EndDate: date(2026, time.January, 13), CallToInvoiceDeadline: &deadline})
	repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusClosed, EndDate: date(2026, time.January, 15), CallToInvoiceDeadline: &deadline})
	repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusInvoiceSubmitted, EndDate: date(2026, time.January, 17), CallToInvoiceDeadline: &deadline})
	svc := newTestService(t, repo, pub, fixedNow)

	sent, err := svc.SendInvoiceReminders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Zero(t, repo.periodUpdates)

	byPeriod := map[uuid.UUID]payloads.InvoiceReminderEvent{}
	for _, e := range pub.events {
		require.Equal(t, enums.EventBillingInvoiceReminder, e.EventType)
		reminder := e.Data.(payloads.InvoiceReminderEvent)
		byPeriod[reminder.PeriodID] = reminder
	}
	require.False(t, byPeriod[first.ID].Final)
	require.Equal(t, 3, byPeriod[first.ID].DaysSinceEnd)
	require.True(t, byPeriod[final.ID].Final)
	require.Equal(t, 7, byPeriod[final.ID].DaysSinceEnd)
}

func TestRolloverExpiredPeriodsTargetsCurrentPeriod(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	expired := repo.addPeriod(models.BillingPeriod{
		Status:                enums.BillingPeriodStatusClosed,
		PeriodCode:            "2025-12-B",
		EndDate:               date(2025, time.December, 31),
		CallToInvoiceDeadline: ptrTime(date(2026, time.January, 10)),
	})
	pending := repo.addPeriod(models.BillingPeriod{
		Status:                enums.BillingPeriodStatusClosed,
		PeriodCode:            "2026-01-A",
		EndDate:               date(2026, time.January, 15),
		CallToInvoiceDeadline: ptrTime(date(2026, time.January, 25)),
	})
	repo.totals["2025-12-B"] = PeriodTotals{Count: 3}
	svc := newTestService(t, repo, pub, fixedNow)

	rolled, err := svc.RolloverExpiredPeriods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rolled)

	require.Equal(t, enums.BillingPeriodStatusCorrected, repo.periods[expired.ID].Status)
	require.Equal(t, enums.BillingPeriodStatusClosed, repo.periods[pending.ID].Status)
	require.Equal(t, []string{"2025-12-B->2026-01-B"}, repo.reassigned)

	target, err := repo.FindPeriodByCode(context.Background(), expired.EstablishmentID, "2026-01-B")
	require.NoError(t, err)
	require.Equal(t, enums.BillingPeriodStatusOpen, target.Status)

	event := pub.events[0].Data.(payloads.PeriodRolledOverEvent)
	require.Equal(t, target.ID, event.ToPeriodID)
	require.Equal(t, int64(3), event.TransactionsMoved)

	rolled, err = svc.RolloverExpiredPeriods(context.Background())
	require.NoError(t, err)
	require.Zero(t, rolled)
}
