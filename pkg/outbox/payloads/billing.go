package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

// PeriodClosedEvent carries the aggregates frozen when a period closes.
type PeriodClosedEvent struct {
	PeriodID              uuid.UUID `json:"period_id"`
	EstablishmentID       uuid.UUID `json:"establishment_id"`
	PeriodCode            string    `json:"period_code"`
	TotalGrossCents       int64     `json:"total_gross_cents"`
	TotalCommissionCents  int64     `json:"total_commission_cents"`
	TotalNetCents         int64     `json:"total_net_cents"`
	TotalRefundsCents     int64     `json:"total_refunds_cents"`
	TransactionCount      int       `json:"transaction_count"`
	CallToInvoiceDeadline time.Time `json:"call_to_invoice_deadline"`
}

// InvoiceSubmittedEvent alerts admins that a partner called to invoice.
type InvoiceSubmittedEvent struct {
	PeriodID             uuid.UUID `json:"period_id"`
	EstablishmentID      uuid.UUID `json:"establishment_id"`
	PeriodCode           string    `json:"period_code"`
	TotalCommissionCents int64     `json:"total_commission_cents"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// CommissionInvoiceRequestedEvent asks the document generator for a commission invoice.
type CommissionInvoiceRequestedEvent struct {
	PeriodID             uuid.UUID `json:"period_id"`
	EstablishmentID      uuid.UUID `json:"establishment_id"`
	PeriodCode           string    `json:"period_code"`
	StartDate            string    `json:"start_date"`
	EndDate              string    `json:"end_date"`
	TotalGrossCents      int64     `json:"total_gross_cents"`
	TotalCommissionCents int64     `json:"total_commission_cents"`
	TotalNetCents        int64     `json:"total_net_cents"`
	TotalRefundsCents    int64     `json:"total_refunds_cents"`
	TransactionCount     int       `json:"transaction_count"`
}

// InvoiceValidatedEvent tells the partner when payment is due.
type InvoiceValidatedEvent struct {
	PeriodID        uuid.UUID `json:"period_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	PeriodCode      string    `json:"period_code"`
	PaymentDueDate  time.Time `json:"payment_due_date"`
	ValidatedBy     uuid.UUID `json:"validated_by"`
}

// PaymentScheduledEvent confirms a payment run has been booked.
type PaymentScheduledEvent struct {
	PeriodID        uuid.UUID  `json:"period_id"`
	EstablishmentID uuid.UUID  `json:"establishment_id"`
	PeriodCode      string     `json:"period_code"`
	PaymentDueDate  *time.Time `json:"payment_due_date,omitempty"`
	ScheduledBy     uuid.UUID  `json:"scheduled_by"`
}

// PaymentExecutedEvent reports the net amount paid out to the partner.
type PaymentExecutedEvent struct {
	PeriodID        uuid.UUID `json:"period_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	PeriodCode      string    `json:"period_code"`
	NetAmountCents  int64     `json:"net_amount_cents"`
	ExecutedAt      time.Time `json:"executed_at"`
	ExecutedBy      uuid.UUID `json:"executed_by"`
}

// InvoiceReminderEvent nudges a partner that has not called to invoice yet.
type InvoiceReminderEvent struct {
	PeriodID              uuid.UUID `json:"period_id"`
	EstablishmentID       uuid.UUID `json:"establishment_id"`
	PeriodCode            string    `json:"period_code"`
	DaysSinceEnd          int       `json:"days_since_end"`
	Final                 bool      `json:"final"`
	CallToInvoiceDeadline time.Time `json:"call_to_invoice_deadline"`
}

// PeriodRolledOverEvent reports transactions moved off an expired period.
type PeriodRolledOverEvent struct {
	PeriodID          uuid.UUID `json:"period_id"`
	EstablishmentID   uuid.UUID `json:"establishment_id"`
	FromPeriodCode    string    `json:"from_period_code"`
	ToPeriodCode      string    `json:"to_period_code"`
	ToPeriodID        uuid.UUID `json:"to_period_id"`
	TransactionsMoved int64     `json:"transactions_moved"`
}

// DisputeOpenedEvent alerts admins to a new partner dispute.
type DisputeOpenedEvent struct {
	DisputeID                uuid.UUID `json:"dispute_id"`
	PeriodID                 uuid.UUID `json:"period_id"`
	EstablishmentID          uuid.UUID `json:"establishment_id"`
	PeriodCode               string    `json:"period_code"`
	ReasonExcerpt            string    `json:"reason_excerpt"`
	DisputedTransactionCount int       `json:"disputed_transaction_count"`
	EvidenceCount            int       `json:"evidence_count"`
}

// DisputeUnderReviewEvent tells the partner an admin picked up the dispute.
type DisputeUnderReviewEvent struct {
	DisputeID       uuid.UUID `json:"dispute_id"`
	PeriodID        uuid.UUID `json:"period_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	ReviewedBy      uuid.UUID `json:"reviewed_by"`
}

// DisputeResolvedEvent carries the admin decision back to the partner.
type DisputeResolvedEvent struct {
	DisputeID             uuid.UUID             `json:"dispute_id"`
	PeriodID              uuid.UUID             `json:"period_id"`
	EstablishmentID       uuid.UUID             `json:"establishment_id"`
	PeriodCode            string                `json:"period_code"`
	Decision              enums.DisputeDecision `json:"decision"`
	AdminResponse         string                `json:"admin_response"`
	CorrectionAmountCents *int64                `json:"correction_amount_cents"`
}

// CorrectionCreditNoteRequestedEvent asks the document generator for a credit note.
type CorrectionCreditNoteRequestedEvent struct {
	DisputeID             uuid.UUID `json:"dispute_id"`
	PeriodID              uuid.UUID `json:"period_id"`
	EstablishmentID       uuid.UUID `json:"establishment_id"`
	PeriodCode            string    `json:"period_code"`
	CorrectionAmountCents int64     `json:"correction_amount_cents"`
}

// DisputeEscalatedEvent alerts admins that a rejected dispute needs a final answer.
type DisputeEscalatedEvent struct {
	DisputeID       uuid.UUID `json:"dispute_id"`
	PeriodID        uuid.UUID `json:"period_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	EscalatedAt     time.Time `json:"escalated_at"`
	ResolveBy       time.Time `json:"resolve_by"`
	SLABusinessDays int       `json:"sla_business_days"`
}

// TransactionRecordedEvent is published by the transaction service when a sale or refund is booked
// for an establishment. Billing consumes it to make sure a period exists for the booking date.
type TransactionRecordedEvent struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}
