package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menusam/partner-billing/internal/repo"
	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/pagination"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPeriodByID(ctx context.Context, id uuid.UUID) (*models.BillingPeriod, error)
	FindPeriodByCode(ctx context.Context, establishmentID uuid.UUID, periodCode string) (*models.BillingPeriod, error)
	CreatePeriod(ctx context.Context, period *models.BillingPeriod) (bool, error)
	TransitionPeriod(ctx context.Context, id uuid.UUID, from []enums.BillingPeriodStatus, updates map[string]any) (bool, error)
	ListPeriods(ctx context.Context, params ListPeriodsQuery) ([]models.BillingPeriod, *pagination.Cursor, error)

	ListPeriodsToClose(ctx context.Context, today time.Time, limit int) ([]models.BillingPeriod, error)
	ListPeriodsAwaitingInvoice(ctx context.Context, endedOnOrAfter time.Time, limit int) ([]models.BillingPeriod, error)
	ListExpiredPeriods(ctx context.Context, now time.Time, limit int) ([]models.BillingPeriod, error)

	AggregateTransactions(ctx context.Context, establishmentID uuid.UUID, periodCode string) (PeriodTotals, error)
	ReassignTransactions(ctx context.Context, establishmentID uuid.UUID, fromCode, toCode string) (int64, error)

	CreateDispute(ctx context.Context, dispute *models.BillingDispute) error
	FindDisputeByID(ctx context.Context, id uuid.UUID) (*models.BillingDispute, error)
	HasPendingDispute(ctx context.Context, periodID uuid.UUID) (bool, error)
	TransitionDispute(ctx context.Context, id uuid.UUID, from []enums.BillingDisputeStatus, updates map[string]any) (bool, error)
	ListDisputes(ctx context.Context, params ListDisputesQuery) ([]models.BillingDispute, *pagination.Cursor, error)
}

// PeriodTotals is the aggregate of a period's transactions.
// SummedNetCents is the raw sum of completed net amounts, kept for the close-time consistency check.
type PeriodTotals struct {
	GrossCents      int64
	CommissionCents int64
	SummedNetCents  int64
	RefundsCents    int64
	Count           int
}

// ListPeriodsQuery configures billing period list queries.
type ListPeriodsQuery struct {
	EstablishmentID *uuid.UUID
	Status          *enums.BillingPeriodStatus
	Limit           int
	Cursor          *pagination.Cursor
}

// ListDisputesQuery configures dispute list queries.
type ListDisputesQuery struct {
	EstablishmentID *uuid.UUID
	PeriodID        *uuid.UUID
	Status          *enums.BillingDisputeStatus
	Limit           int
	Cursor          *pagination.Cursor
}

type repository struct {
	repo.Base
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindPeriodByID(ctx context.Context, id uuid.UUID) (*models.BillingPeriod, error) {
	var period models.BillingPeriod
	if err := r.DB(ctx).Where("id = ?", id).First(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *repository) FindPeriodByCode(ctx context.Context, establishmentID uuid.UUID, periodCode string) (*models.BillingPeriod, error) {
	var period models.BillingPeriod
	if err := r.DB(ctx).
		Where("establishment_id = ? AND period_code = ?", establishmentID, periodCode).
		First(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

// CreatePeriod inserts the period unless one already exists for the same
// establishment and code. It reports false when the insert was skipped.
func (r *repository) CreatePeriod(ctx context.Context, period *models.BillingPeriod) (bool, error) {
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "establishment_id"}, {Name: "period_code"}},
			DoNothing: true,
		}).
		Create(period)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionPeriod applies updates only while the period is still in one of
// the from statuses. It reports whether a row changed.
func (r *repository) TransitionPeriod(ctx context.Context, id uuid.UUID, from []enums.BillingPeriodStatus, updates map[string]any) (bool, error) {
	return r.UpdateIfStatus(ctx, &models.BillingPeriod{}, id, from, updates)
}

func (r *repository) ListPeriods(ctx context.Context, params ListPeriodsQuery) ([]models.BillingPeriod, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.BillingPeriod{})
	if params.EstablishmentID != nil {
		query = query.Where("establishment_id = ?", *params.EstablishmentID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var periods []models.BillingPeriod
	if err := pagination.Scope(query, params.Cursor, params.Limit).Find(&periods).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(periods, params.Limit, func(p models.BillingPeriod) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

// ListPeriodsToClose binds today as a plain date. end_date is a DATE column and a
// timestamptz bound would be shifted through the session time zone.
func (r *repository) ListPeriodsToClose(ctx context.Context, today time.Time, limit int) ([]models.BillingPeriod, error) {
	var periods []models.BillingPeriod
	if err := r.DB(ctx).
		Where("status = ? AND end_date < ?", enums.BillingPeriodStatusOpen, today.Format(time.DateOnly)).
		Order("end_date ASC, id ASC").
		Limit(limit).
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *repository) ListPeriodsAwaitingInvoice(ctx context.Context, endedOnOrAfter time.Time, limit int) ([]models.BillingPeriod, error) {
	var periods []models.BillingPeriod
	if err := r.DB(ctx).
		Where("status = ? AND call_to_invoice_deadline IS NOT NULL AND end_date >= ?", enums.BillingPeriodStatusClosed, endedOnOrAfter.Format(time.DateOnly)).
		Order("end_date ASC, id ASC").
		Limit(limit).
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *repository) ListExpiredPeriods(ctx context.Context, now time.Time, limit int) ([]models.BillingPeriod, error) {
	var periods []models.BillingPeriod
	if err := r.DB(ctx).
		Where("status = ? AND call_to_invoice_deadline IS NOT NULL AND call_to_invoice_deadline < ?", enums.BillingPeriodStatusClosed, now).
		Order("call_to_invoice_deadline ASC, id ASC").
		Limit(limit).
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

type totalsRow struct {
	GrossCents      int64
	CommissionCents int64
	NetCents        int64
	RefundsCents    int64
	CompletedCount  int64
}

func (r *repository) AggregateTransactions(ctx context.Context, establishmentID uuid.UUID, periodCode string) (PeriodTotals, error) {
	var row totalsRow
	completed := enums.TransactionStatusCompleted
	err := r.DB(ctx).Raw(`
SELECT
  COALESCE(SUM(CASE WHEN status = ? THEN gross_amount_cents ELSE 0 END), 0) AS gross_cents,
  COALESCE(SUM(CASE WHEN status = ? THEN commission_amount_cents ELSE 0 END), 0) AS commission_cents,
  COALESCE(SUM(CASE WHEN status = ? THEN net_amount_cents ELSE 0 END), 0) AS net_cents,
  COALESCE(SUM(CASE WHEN status IN ? THEN ABS(gross_amount_cents) ELSE 0 END), 0) AS refunds_cents,
  COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_count
FROM transactions
WHERE establishment_id = ? AND billing_period = ?`,
		completed, completed, completed, enums.RefundTransactionStatuses(), completed,
		establishmentID, periodCode,
	).Scan(&row).Error
	if err != nil {
		return PeriodTotals{}, err
	}
	return PeriodTotals{
		GrossCents:      row.GrossCents,
		CommissionCents: row.CommissionCents,
		SummedNetCents:  row.NetCents,
		RefundsCents:    row.RefundsCents,
		Count:           int(row.CompletedCount),
	}, nil
}

// ReassignTransactions moves completed transactions of one period code to another.
func (r *repository) ReassignTransactions(ctx context.Context, establishmentID uuid.UUID, fromCode, toCode string) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Transaction{}).
		Where("establishment_id = ? AND billing_period = ? AND status = ?", establishmentID, fromCode, enums.TransactionStatusCompleted).
		Update("billing_period", toCode)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) CreateDispute(ctx context.Context, dispute *models.BillingDispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	return r.DB(ctx).Create(dispute).Error
}

func (r *repository) FindDisputeByID(ctx context.Context, id uuid.UUID) (*models.BillingDispute, error) {
	var dispute models.BillingDispute
	if err := r.DB(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) HasPendingDispute(ctx context.Context, periodID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).
		Model(&models.BillingDispute{}).
		Where("billing_period_id = ? AND status IN ?", periodID, pendingDisputeStatuses).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) TransitionDispute(ctx context.Context, id uuid.UUID, from []enums.BillingDisputeStatus, updates map[string]any) (bool, error) {
	return r.UpdateIfStatus(ctx, &models.BillingDispute{}, id, from, updates)
}

func (r *repository) ListDisputes(ctx context.Context, params ListDisputesQuery) ([]models.BillingDispute, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.BillingDispute{})
	if params.EstablishmentID != nil {
		query = query.Where("establishment_id = ?", *params.EstablishmentID)
	}
	if params.PeriodID != nil {
		query = query.Where("billing_period_id = ?", *params.PeriodID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var disputes []models.BillingDispute
	if err := pagination.Scope(query, params.Cursor, params.Limit).Find(&disputes).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(disputes, params.Limit, func(d models.BillingDispute) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return page, next, nil
}
