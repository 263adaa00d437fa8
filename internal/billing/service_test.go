package billing

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
)

func closedPeriod(repo *stubBillingRepo, deadline time.Time) *models.BillingPeriod {
	return repo.addPeriod(models.BillingPeriod{
		Status:                enums.BillingPeriodStatusClosed,
		StartDate:             date(2026, time.January, 1),
		EndDate:               date(2026, time.January, 15),
		PeriodCode:            "2026-01-A",
		TotalCommissionCents:  1200,
		TotalNetCents:         8800,
		CallToInvoiceDeadline: &deadline,
	})
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Repo: newStubBillingRepo(), Tx: stubTxRunner{}, Outbox: &stubOutboxPublisher{}})
	require.ErrorContains(t, err, "logger required")
}

func TestCallToInvoiceSubmitsClosedPeriod(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	period := closedPeriod(repo, date(2026, time.January, 25))
	svc := newTestService(t, repo, pub, fixedNow)

	res, err := svc.CallToInvoice(context.Background(), period.ID, period.EstablishmentID)
	require.NoError(t, err)
	require.True(t, res.InvoiceGenerated)

	stored := repo.periods[period.ID]
	require.Equal(t, enums.BillingPeriodStatusInvoiceSubmitted, stored.Status)
	require.NotNil(t, stored.InvoiceSubmittedAt)
	require.Equal(t, []enums.OutboxEventType{
		enums.EventBillingInvoiceSubmitted,
		enums.EventCommissionInvoiceRequested,
	}, pub.types())

	doc := pub.events[1].Data.(payloads.CommissionInvoiceRequestedEvent)
	require.Equal(t, "2026-01-01", doc.StartDate)
	require.Equal(t, "2026-01-15", doc.EndDate)
}

func TestCallToInvoiceAfterDeadlineIsRejectedWithoutUpdate(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	period := closedPeriod(repo, date(2026, time.January, 10))
	svc := newTestService(t, repo, pub, fixedNow)

	_, err := svc.CallToInvoice(context.Background(), period.ID, period.EstablishmentID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDeadlinePassed, pkgerrors.CodeOf(err))
	require.Zero(t, repo.periodUpdates)
	require.Empty(t, pub.events)
	require.Equal(t, enums.BillingPeriodStatusClosed, repo.periods[period.ID].Status)
}

func TestCallToInvoiceRejectsWrongStatusNamingIt(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	period := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusOpen, EndDate: date(2026, time.January, 31)})
	svc := newTestService(t, repo, pub, fixedNow)

	_, err := svc.CallToInvoice(context.Background(), period.ID, period.EstablishmentID)
	require.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))
	require.Contains(t, pkgerrors.As(err).Message(), "open")
	require.Zero(t, repo.periodUpdates)
	require.Empty(t, pub.events)
}

func TestCallToInvoiceHidesOtherEstablishmentsPeriods(t *testing.T) {
	repo := newStubBillingRepo()
	period := closedPeriod(repo, date(2026, time.January, 25))
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	_, err := svc.CallToInvoice(context.Background(), period.ID, uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.CallToInvoice(context.Background(), uuid.New(), period.EstablishmentID)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	require.Zero(t, repo.periodUpdates)
}

func TestConcurrentWriterWinsReportsFreshStatus(t *testing.T) {
	repo := newStubBillingRepo()
	period := closedPeriod(repo, date(2026, time.January, 25))
	repo.beforeTransition = func(id uuid.UUID) {
		repo.periods[id].Status = enums.BillingPeriodStatusDisputed
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	_, err := svc.CallToInvoice(context.Background(), period.ID, period.EstablishmentID)
	require.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))
	require.Contains(t, pkgerrors.As(err).Message(), "disputed")
}

func TestValidateInvoiceSetsPaymentDueDate(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	period := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusInvoiceSubmitted, EndDate: date(2026, time.January, 15)})
	svc := newTestService(t, repo, pub, fixedNow)
	admin := uuid.New()

	updated, err := svc.ValidateInvoice(context.Background(), period.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.BillingPeriodStatusInvoiceValidated, updated.Status)
	require.Equal(t, fixedNow.AddDate(0, 0, 15), *updated.PaymentDueDate)
	require.Equal(t, admin, *updated.InvoiceValidatedBy)
	require.Equal(t, []enums.OutboxEventType{enums.EventBillingInvoiceValidated}, pub.types())
}

func TestValidateInvoiceRequiresSubmittedInvoice(t *testing.T) {
	repo := newStubBillingRepo()
	period := closedPeriod(repo, date(2026, time.January, 25))
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	_, err := svc.ValidateInvoice(context.Background(), period.ID, uuid.New())
	require.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))
	require.Zero(t, repo.periodUpdates)

	_, err = svc.ValidateInvoice(context.Background(), uuid.New(), uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestExecutePaymentTransitions(t *testing.T) {
	cases := []struct {
		name   string
		status enums.BillingPeriodStatus
		code   pkgerrors.Code
	}{
		{"from validated", enums.BillingPeriodStatusInvoiceValidated, ""},
		{"from scheduled", enums.BillingPeriodStatusPaymentScheduled, ""},
		{"from submitted", enums.BillingPeriodStatusInvoiceSubmitted, pkgerrors.CodeInvalidStatus},
		{"from paid", enums.BillingPeriodStatusPaid, pkgerrors.CodeInvalidStatus},
		{"from disputed", enums.BillingPeriodStatusDisputed, pkgerrors.CodeInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubBillingRepo()
			pub := &stubOutboxPublisher{}
			period := repo.addPeriod(models.BillingPeriod{Status: tc.status, EndDate: date(2026, time.January, 15), TotalNetCents: 8800})
			svc := newTestService(t, repo, pub, fixedNow)

			_, err := svc.ExecutePayment(context.Background(), period.ID, uuid.New())
			if tc.code != "" {
				require.Equal(t, tc.code, pkgerrors.CodeOf(err))
				require.Contains(t, pkgerrors.As(err).Message(), string(tc.status))
				require.Zero(t, repo.periodUpdates)
				require.Empty(t, pub.events)
				return
			}
			require.NoError(t, err)
			require.Equal(t, enums.BillingPeriodStatusPaid, repo.periods[period.ID].Status)
			require.Equal(t, int64(8800), pub.events[0].Data.(payloads.PaymentExecutedEvent).NetAmountCents)
		})
	}
}

func TestSchedulePaymentKeepsDueDate(t *testing.T) {
	repo := newStubBillingRepo()
	pub := &stubOutboxPublisher{}
	due := date(2026, time.February, 4)
	period := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusInvoiceValidated, EndDate: date(2026, time.January, 15), PaymentDueDate: &due})
	svc := newTestService(t, repo, pub, fixedNow)

	updated, err := svc.SchedulePayment(context.Background(), period.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, enums.BillingPeriodStatusPaymentScheduled, updated.Status)
	require.Equal(t, due, *updated.PaymentDueDate)
	require.Equal(t, &due, pub.events[0].Data.(payloads.PaymentScheduledEvent).PaymentDueDate)
}

func TestPeriodTransitionsRejectEveryOtherStatus(t *testing.T) {
	type transition func(svc *Service, period *models.BillingPeriod) error
	admin := uuid.New()
	ops := []struct {
		name    string
		allowed []enums.BillingPeriodStatus
		run     transition
	}{
		{
			name:    "call to invoice",
			allowed: []enums.BillingPeriodStatus{enums.BillingPeriodStatusClosed},
			run: func(svc *Service, p *models.BillingPeriod) error {
				_, err := svc.CallToInvoice(context.Background(), p.ID, p.EstablishmentID)
				return err
			},
		},
		{
			name:    "validate invoice",
			allowed: []enums.BillingPeriodStatus{enums.BillingPeriodStatusInvoiceSubmitted},
			run: func(svc *Service, p *models.BillingPeriod) error {
				_, err := svc.ValidateInvoice(context.Background(), p.ID, admin)
				return err
			},
		},
		{
			name:    "schedule payment",
			allowed: []enums.BillingPeriodStatus{enums.BillingPeriodStatusInvoiceValidated},
			run: func(svc *Service, p *models.BillingPeriod) error {
				_, err := svc.SchedulePayment(context.Background(), p.ID, admin)
				return err
			},
		},
		{
			name: "execute payment",
			allowed: []enums.BillingPeriodStatus{
				enums.BillingPeriodStatusInvoiceValidated,
				enums.BillingPeriodStatusPaymentScheduled,
			},
			run: func(svc *Service, p *models.BillingPeriod) error {
				_, err := svc.ExecutePayment(context.Background(), p.ID, admin)
				return err
			},
		},
		{
			name:    "resume after dispute",
			allowed: []enums.BillingPeriodStatus{enums.BillingPeriodStatusDisputeResolved},
			run: func(svc *Service, p *models.BillingPeriod) error {
				_, err := svc.ResumeAfterDispute(context.Background(), p.ID, admin)
				return err
			},
		},
	}

	for _, op := range ops {
		for _, status := range enums.AllBillingPeriodStatuses() {
			t.Run(op.name+"/"+string(status), func(t *testing.T) {
				repo := newStubBillingRepo()
				pub := &stubOutboxPublisher{}
				period := repo.addPeriod(models.BillingPeriod{
					Status:                status,
					EndDate:               date(2026, time.January, 15),
					CallToInvoiceDeadline: ptrTime(date(2026, time.January, 25)),
				})
				svc := newTestService(t, repo, pub, fixedNow)

				err := op.run(svc, period)
				if slices.Contains(op.allowed, status) {
					require.NoError(t, err)
					require.Equal(t, 1, repo.periodUpdates)
					return
				}
				require.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))
				require.Contains(t, pkgerrors.As(err).Message(), string(status))
				require.Zero(t, repo.periodUpdates)
				require.Empty(t, pub.events)
				require.Equal(t, status, repo.periods[period.ID].Status)
			})
		}
	}
}

func TestResumeAfterDisputeReturnsToReachedStage(t *testing.T) {
	stamp := ptrTime(date(2026, time.January, 17))
	cases := []struct {
		name   string
		period models.BillingPeriod
		want   enums.BillingPeriodStatus
	}{
		{"disputed before invoicing", models.BillingPeriod{}, enums.BillingPeriodStatusClosed},
		{"invoice submitted", models.BillingPeriod{InvoiceSubmittedAt: stamp}, enums.BillingPeriodStatusInvoiceSubmitted},
		{"invoice validated", models.BillingPeriod{InvoiceSubmittedAt: stamp, InvoiceValidatedAt: stamp}, enums.BillingPeriodStatusInvoiceValidated},
		{"payment scheduled", models.BillingPeriod{InvoiceSubmittedAt: stamp, InvoiceValidatedAt: stamp, PaymentScheduledAt: stamp}, enums.BillingPeriodStatusPaymentScheduled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubBillingRepo()
			tc.period.Status = enums.BillingPeriodStatusDisputeResolved
			tc.period.EndDate = date(2026, time.January, 15)
			period := repo.addPeriod(tc.period)
			svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

			resumed, err := svc.ResumeAfterDispute(context.Background(), period.ID, uuid.New())
			require.NoError(t, err)
			require.Equal(t, tc.want, resumed.Status)
			require.Equal(t, tc.want, repo.periods[period.ID].Status)
		})
	}
}

func TestRejectedDisputePeriodCanStillBePaid(t *testing.T) {
	repo := newStubBillingRepo()
	due := date(2026, time.February, 4)
	period := repo.addPeriod(models.BillingPeriod{
		Status:             enums.BillingPeriodStatusInvoiceValidated,
		EndDate:            date(2026, time.January, 15),
		InvoiceSubmittedAt: ptrTime(date(2026, time.January, 16)),
		InvoiceValidatedAt: ptrTime(date(2026, time.January, 17)),
		PaymentDueDate:     &due,
		TotalNetCents:      8800,
	})
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)
	ctx := context.Background()
	admin := uuid.New()

	opened, err := svc.CreateDispute(ctx, CreateDisputeInput{PeriodID: period.ID, EstablishmentID: period.EstablishmentID, Reason: "commission rate looks wrong"})
	require.NoError(t, err)
	_, err = svc.RespondToDispute(ctx, RespondToDisputeInput{DisputeID: opened.DisputeID, AdminUserID: admin, Decision: enums.DisputeDecisionReject, Response: "rate matches the contract"})
	require.NoError(t, err)
	require.Equal(t, enums.BillingPeriodStatusDisputeResolved, repo.periods[period.ID].Status)

	_, err = svc.ExecutePayment(ctx, period.ID, admin)
	require.Equal(t, pkgerrors.CodeInvalidStatus, pkgerrors.CodeOf(err))

	_, err = svc.ResumeAfterDispute(ctx, period.ID, admin)
	require.NoError(t, err)
	paid, err := svc.ExecutePayment(ctx, period.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.BillingPeriodStatusPaid, paid.Status)
}

func TestEnsurePeriodIsIdempotent(t *testing.T) {
	repo := newStubBillingRepo()
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)
	est := uuid.New()

	first, err := svc.EnsurePeriod(context.Background(), est, date(2026, time.January, 3))
	require.NoError(t, err)
	second, err := svc.EnsurePeriod(context.Background(), est, date(2026, time.January, 15))
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored := repo.periods[first]
	require.Equal(t, "2026-01-A", stored.PeriodCode)
	require.Equal(t, enums.BillingPeriodStatusOpen, stored.Status)
	require.Equal(t, date(2026, time.January, 1), stored.StartDate)
	require.Equal(t, date(2026, time.January, 15), stored.EndDate)

	other, err := svc.EnsurePeriod(context.Background(), est, date(2026, time.January, 16))
	require.NoError(t, err)
	require.NotEqual(t, first, other)
	require.Len(t, repo.periods, 2)
}

func TestEnsurePeriodUsesBillingTimezone(t *testing.T) {
	repo := newStubBillingRepo()
	cfg := testBillingConfig()
	cfg.Timezone = "Europe/Paris"
	svc, err := NewService(ServiceParams{
		Repo: repo, Tx: stubTxRunner{}, Outbox: &stubOutboxPublisher{},
		Logger: logger.New(logger.Options{Output: io.Discard}),
		Config: cfg,
	})
	require.NoError(t, err)

	// 23:30 UTC on the 15th is already the 16th in Paris.
	id, err := svc.EnsurePeriod(context.Background(), uuid.New(), time.Date(2026, time.January, 15, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2026-01-B", repo.periods[id].PeriodCode)
}

func TestEnsurePeriodRecoversFromInsertRace(t *testing.T) {
	repo := newStubBillingRepo()
	est := uuid.New()
	winner := uuid.New()
	repo.createPeriod = func(ctx context.Context, period *models.BillingPeriod) (bool, error) {
		repo.periods[winner] = &models.BillingPeriod{ID: winner, EstablishmentID: est, PeriodCode: period.PeriodCode, Status: enums.BillingPeriodStatusOpen}
		return false, errors.New("duplicate key value violates unique constraint")
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	id, err := svc.EnsurePeriod(context.Background(), est, fixedNow)
	require.NoError(t, err)
	require.Equal(t, winner, id)
}

func TestEnsurePeriodPropagatesStorageErrorWhenRereadFindsNothing(t *testing.T) {
	repo := newStubBillingRepo()
	insertErr := errors.New("connection reset")
	repo.createPeriod = func(ctx context.Context, period *models.BillingPeriod) (bool, error) {
		return false, insertErr
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	_, err := svc.EnsurePeriod(context.Background(), uuid.New(), fixedNow)
	require.ErrorIs(t, err, insertErr)
}

func TestGetPeriodScopesToEstablishment(t *testing.T) {
	repo := newStubBillingRepo()
	period := closedPeriod(repo, date(2026, time.January, 25))
	svc := newTestService(t, repo, &stubOutboxPublisher{}, fixedNow)

	got, err := svc.GetPeriod(context.Background(), period.ID, &period.EstablishmentID)
	require.NoError(t, err)
	require.Equal(t, period.ID, got.ID)

	other := uuid.New()
	_, err = svc.GetPeriod(context.Background(), period.ID, &other)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	got, err = svc.GetPeriod(context.Background(), period.ID, nil)
	require.NoError(t, err)
	require.Equal(t, period.ID, got.ID)
}

func TestListPeriodsRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, newStubBillingRepo(), &stubOutboxPublisher{}, fixedNow)
	_, err := svc.ListPeriods(context.Background(), ListPeriodsInput{})
	require.NoError(t, err)

	input := ListPeriodsInput{}
	input.Params.Cursor = "not-base64!"
	_, err = svc.ListPeriods(context.Background(), input)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestOutboxFailureRollsBackTransition(t *testing.T) {
	repo := newStubBillingRepo()
	period := repo.addPeriod(models.BillingPeriod{Status: enums.BillingPeriodStatusInvoiceSubmitted, EndDate: date(2026, time.January, 15)})
	svc := newTestService(t, repo, &stubOutboxPublisher{err: errors.New("insert failed")}, fixedNow)

	_, err := svc.ValidateInvoice(context.Background(), period.ID, uuid.New())
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}
