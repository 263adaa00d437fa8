package billing

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/pagination"
)

type stubBillingRepo struct {
	periods      map[uuid.UUID]*models.BillingPeriod
	disputes     map[uuid.UUID]*models.BillingDispute
	totals       map[string]PeriodTotals
	aggregateErr map[string]error

	periodUpdates  int
	disputeUpdates int
	disputeInserts int
	reassigned     []string

	createPeriod     func(ctx context.Context, period *models.BillingPeriod) (bool, error)
	beforeTransition func(id uuid.UUID)
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		periods:      map[uuid.UUID]*models.BillingPeriod{},
		disputes:     map[uuid.UUID]*models.BillingDispute{},
		totals:       map[string]PeriodTotals{},
		aggregateErr: map[string]error{},
	}
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubBillingRepo) addPeriod(p models.BillingPeriod) *models.BillingPeriod {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.EstablishmentID == uuid.Nil {
		p.EstablishmentID = uuid.New()
	}
	if p.PeriodCode == "" {
		p.PeriodCode = PeriodCodeFor(p.EndDate)
	}
	s.periods[p.ID] = &p
	return &p
}

func (s *stubBillingRepo) addDispute(d models.BillingDispute) *models.BillingDispute {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.disputes[d.ID] = &d
	return &d
}

func (s *stubBillingRepo) FindPeriodByID(ctx context.Context, id uuid.UUID) (*models.BillingPeriod, error) {
	p, ok := s.periods[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubBillingRepo) FindPeriodByCode(ctx context.Context, establishmentID uuid.UUID, periodCode string) (*models.BillingPeriod, error) {
	for _, p := range s.periods {
		if p.EstablishmentID == establishmentID && p.PeriodCode == periodCode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBillingRepo) CreatePeriod(ctx context.Context, period *models.BillingPeriod) (bool, error) {
	if s.createPeriod != nil {
		return s.createPeriod(ctx, period)
	}
	if _, err := s.FindPeriodByCode(ctx, period.EstablishmentID, period.PeriodCode); err == nil {
		return false, nil
	}
	cp := *period
	s.periods[cp.ID] = &cp
	return true, nil
}

func (s *stubBillingRepo) TransitionPeriod(ctx context.Context, id uuid.UUID, from []enums.BillingPeriodStatus, updates map[string]any) (bool, error) {
	s.periodUpdates++
	if s.beforeTransition != nil {
		s.beforeTransition(id)
	}
	p, ok := s.periods[id]
	if !ok || !containsStatus(from, p.Status) {
		return false, nil
	}
	applyPeriodUpdates(p, updates)
	return true, nil
}

func (s *stubBillingRepo) ListPeriods(ctx context.Context, params ListPeriodsQuery) ([]models.BillingPeriod, *pagination.Cursor, error) {
	out := []models.BillingPeriod{}
	for _, p := range s.periods {
		if params.EstablishmentID != nil && p.EstablishmentID != *params.EstablishmentID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil, nil
}

func (s *stubBillingRepo) ListPeriodsToClose(ctx context.Context, today time.Time, limit int) ([]models.BillingPeriod, error) {
	return s.filterPeriods(limit, func(p *models.BillingPeriod) bool {
		return p.Status == enums.BillingPeriodStatusOpen && p.EndDate.Before(today)
	}), nil
}

func (s *stubBillingRepo) ListPeriodsAwaitingInvoice(ctx context.Context, endedOnOrAfter time.Time, limit int) ([]models.BillingPeriod, error) {
	return s.filterPeriods(limit, func(p *models.BillingPeriod) bool {
		return p.Status == enums.BillingPeriodStatusClosed && p.CallToInvoiceDeadline != nil && !p.EndDate.Before(endedOnOrAfter)
	}), nil
}

func (s *stubBillingRepo) ListExpiredPeriods(ctx context.Context, now time.Time, limit int) ([]models.BillingPeriod, error) {
	return s.filterPeriods(limit, func(p *models.BillingPeriod) bool {
		return p.Status == enums.BillingPeriodStatusClosed && p.CallToInvoiceDeadline != nil && p.CallToInvoiceDeadline.Before(now)
	}), nil
}

func (s *stubBillingRepo) filterPeriods(limit int, keep func(p *models.BillingPeriod) bool) []models.BillingPeriod {
	out := []models.BillingPeriod{}
	for _, p := range s.periods {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *stubBillingRepo) AggregateTransactions(ctx context.Context, establishmentID uuid.UUID, periodCode string) (PeriodTotals, error) {
	if err := s.aggregateErr[periodCode]; err != nil {
		return PeriodTotals{}, err
	}
	return s.totals[periodCode], nil
}

func (s *stubBillingRepo) ReassignTransactions(ctx context.Context, establishmentID uuid.UUID, fromCode, toCode string) (int64, error) {
	s.reassigned = append(s.reassigned, fromCode+"->"+toCode)
	return int64(s.totals[fromCode].Count), nil
}

func (s *stubBillingRepo) CreateDispute(ctx context.Context, dispute *models.BillingDispute) error {
	s.disputeInserts++
	cp := *dispute
	s.disputes[cp.ID] = &cp
	return nil
}

func (s *stubBillingRepo) FindDisputeByID(ctx context.Context, id uuid.UUID) (*models.BillingDispute, error) {
	d, ok := s.disputes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubBillingRepo) HasPendingDispute(ctx context.Context, periodID uuid.UUID) (bool, error) {
	for _, d := range s.disputes {
		if d.BillingPeriodID == periodID && d.Status.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubBillingRepo) TransitionDispute(ctx context.Context, id uuid.UUID, from []enums.BillingDisputeStatus, updates map[string]any) (bool, error) {
	s.disputeUpdates++
	d, ok := s.disputes[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if st == d.Status {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	applyDisputeUpdates(d, updates)
	return true, nil
}

func (s *stubBillingRepo) ListDisputes(ctx context.Context, params ListDisputesQuery) ([]models.BillingDispute, *pagination.Cursor, error) {
	out := []models.BillingDispute{}
	for _, d := range s.disputes {
		if params.EstablishmentID != nil && d.EstablishmentID != *params.EstablishmentID {
			continue
		}
		out = append(out, *d)
	}
	return out, nil, nil
}

func containsStatus(list []enums.BillingPeriodStatus, status enums.BillingPeriodStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func applyPeriodUpdates(p *models.BillingPeriod, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "status":
			p.Status = value.(enums.BillingPeriodStatus)
		case "total_gross_cents":
			p.TotalGrossCents = value.(int64)
		case "total_commission_cents":
			p.TotalCommissionCents = value.(int64)
		case "total_net_cents":
			p.TotalNetCents = value.(int64)
		case "total_refunds_cents":
			p.TotalRefundsCents = value.(int64)
		case "transaction_count":
			p.TransactionCount = value.(int)
		case "call_to_invoice_deadline":
			t := value.(time.Time)
			p.CallToInvoiceDeadline = &t
		case "closed_at":
			t := value.(time.Time)
			p.ClosedAt = &t
		case "invoice_submitted_at":
			t := value.(time.Time)
			p.InvoiceSubmittedAt = &t
		case "invoice_validated_at":
			t := value.(time.Time)
			p.InvoiceValidatedAt = &t
		case "payment_due_date":
			t := value.(time.Time)
			p.PaymentDueDate = &t
		case "payment_scheduled_at":
			t := value.(time.Time)
			p.PaymentScheduledAt = &t
		case "payment_executed_at":
			t := value.(time.Time)
			p.PaymentExecutedAt = &t
		}
	}
}

func applyDisputeUpdates(d *models.BillingDispute, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "status":
			d.Status = value.(enums.BillingDisputeStatus)
		case "correction_amount_cents":
			d.CorrectionAmountCents = value.(*int64)
		case "admin_response":
			v := value.(string)
			d.AdminResponse = &v
		case "escalated_at":
			t := value.(time.Time)
			d.EscalatedAt = &t
		}
	}
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// fixedNow is a Tuesday.
var fixedNow = time.Date(2026, time.January, 20, 9, 0, 0, 0, time.UTC)

func testBillingConfig() config.BillingConfig {
	cfg := config.DefaultBillingConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func newTestService(t *testing.T, repo Repository, pub *stubOutboxPublisher, now time.Time) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     stubTxRunner{},
		Outbox: pub,
		Logger: logger.New(logger.Options{ServiceName: "billing-test", Output: io.Discard}),
		Config: testBillingConfig(),
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt64(v int64) *int64 { return &v }
