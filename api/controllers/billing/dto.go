package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/types"
)

type periodResponse struct {
	ID                    string     `json:"id"`
	EstablishmentID       string     `json:"establishment_id"`
	PeriodCode            string     `json:"period_code"`
	StartDate             string     `json:"start_date"`
	EndDate               string     `json:"end_date"`
	Status                string     `json:"status"`
	TotalGrossCents       int64      `json:"total_gross_cents"`
	TotalCommissionCents  int64      `json:"total_commission_cents"`
	TotalNetCents         int64      `json:"total_net_cents"`
	TotalRefundsCents     int64      `json:"total_refunds_cents"`
	TransactionCount      int        `json:"transaction_count"`
	CallToInvoiceDeadline *time.Time `json:"call_to_invoice_deadline,omitempty"`
	InvoiceSubmittedAt    *time.Time `json:"invoice_submitted_at,omitempty"`
	InvoiceValidatedAt    *time.Time `json:"invoice_validated_at,omitempty"`
	PaymentDueDate        *time.Time `json:"payment_due_date,omitempty"`
	PaymentScheduledAt    *time.Time `json:"payment_scheduled_at,omitempty"`
	PaymentExecutedAt     *time.Time `json:"payment_executed_at,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type periodListResponse struct {
	Periods []periodResponse `json:"periods"`
	Cursor  string           `json:"cursor"`
}

type disputeResponse struct {
	ID                    string           `json:"id"`
	BillingPeriodID       string           `json:"billing_period_id"`
	EstablishmentID       string           `json:"establishment_id"`
	Reason                string           `json:"reason"`
	DisputedTransactions  []string         `json:"disputed_transactions"`
	Evidence              []types.Evidence `json:"evidence"`
	Status                string           `json:"status"`
	ReviewStartedAt       *time.Time       `json:"review_started_at,omitempty"`
	AdminResponse         *string          `json:"admin_response,omitempty"`
	AdminRespondedAt      *time.Time       `json:"admin_responded_at,omitempty"`
	CorrectionAmountCents *int64           `json:"correction_amount_cents,omitempty"`
	EscalatedAt           *time.Time       `json:"escalated_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

type disputeListResponse struct {
	Disputes []disputeResponse `json:"disputes"`
	Cursor   string            `json:"cursor"`
}

type callToInvoiceResponse struct {
	PeriodID         string `json:"period_id"`
	InvoiceGenerated bool   `json:"invoice_generated"`
}

type createDisputeRequest struct {
	Reason         string           `json:"reason" validate:"notblank,max=2000"`
	TransactionIDs []uuid.UUID      `json:"transaction_ids" validate:"max=200"`
	Evidence       []types.Evidence `json:"evidence" validate:"max=20,dive"`
}

type createDisputeResponse struct {
	DisputeID string `json:"dispute_id"`
}

type respondToDisputeRequest struct {
	Decision              string `json:"decision" validate:"required,oneof=accept reject"`
	Response              string `json:"response" validate:"notblank,max=2000"`
	CorrectionAmountCents *int64 `json:"correction_amount_cents,omitempty" validate:"omitempty,gte=0"`
}

const dateLayout = "2006-01-02"

func toPeriodResponse(p *models.BillingPeriod) periodResponse {
	return periodResponse{
		ID:                    p.ID.String(),
		EstablishmentID:       p.EstablishmentID.String(),
		PeriodCode:            p.PeriodCode,
		StartDate:             p.StartDate.Format(dateLayout),
		EndDate:               p.EndDate.Format(dateLayout),
		Status:                string(p.Status),
		TotalGrossCents:       p.TotalGrossCents,
		TotalCommissionCents:  p.TotalCommissionCents,
		TotalNetCents:         p.TotalNetCents,
		TotalRefundsCents:     p.TotalRefundsCents,
		TransactionCount:      p.TransactionCount,
		CallToInvoiceDeadline: p.CallToInvoiceDeadline,
		InvoiceSubmittedAt:    p.InvoiceSubmittedAt,
		InvoiceValidatedAt:    p.InvoiceValidatedAt,
		PaymentDueDate:        p.PaymentDueDate,
		PaymentScheduledAt:    p.PaymentScheduledAt,
		PaymentExecutedAt:     p.PaymentExecutedAt,
		ClosedAt:              p.ClosedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func toPeriodList(periods []models.BillingPeriod, cursor string) periodListResponse {
	out := periodListResponse{Periods: make([]periodResponse, 0, len(periods)), Cursor: cursor}
	for i := range periods {
		out.Periods = append(out.Periods, toPeriodResponse(&periods[i]))
	}
	return out
}

func toDisputeResponse(d *models.BillingDispute) disputeResponse {
	txIDs := make([]string, 0, len(d.DisputedTransactions))
	for _, id := range d.DisputedTransactions {
		txIDs = append(txIDs, id.String())
	}
	evidence := []types.Evidence(d.Evidence)
	if evidence == nil {
		evidence = []types.Evidence{}
	}
	return disputeResponse{
		ID:                    d.ID.String(),
		BillingPeriodID:       d.BillingPeriodID.String(),
		EstablishmentID:       d.EstablishmentID.String(),
		Reason:                d.Reason,
		DisputedTransactions:  txIDs,
		Evidence:              evidence,
		Status:                string(d.Status),
		ReviewStartedAt:       d.ReviewStartedAt,
		AdminResponse:         d.AdminResponse,
		AdminRespondedAt:      d.AdminRespondedAt,
		CorrectionAmountCents: d.CorrectionAmountCents,
		EscalatedAt:           d.EscalatedAt,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func toDisputeList(disputes []models.BillingDispute, cursor string) disputeListResponse {
	out := disputeListResponse{Disputes: make([]disputeResponse, 0, len(disputes)), Cursor: cursor}
	for i := range disputes {
		out.Disputes = append(out.Disputes, toDisputeResponse(&disputes[i]))
	}
	return out
}
