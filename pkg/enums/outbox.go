package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBillingPeriod  OutboxAggregateType = "billing_period"
	AggregateBillingDispute OutboxAggregateType = "billing_dispute"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBillingPeriod,
	AggregateBillingDispute,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return member(validAggregateTypes, a)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBillingPeriodClosed           OutboxEventType = "billing_period_closed"
	EventBillingInvoiceSubmitted       OutboxEventType = "billing_invoice_submitted"
	EventCommissionInvoiceRequested    OutboxEventType = "commission_invoice_requested"
	EventBillingInvoiceValidated       OutboxEventType = "billing_invoice_validated"
	EventBillingPaymentScheduled       OutboxEventType = "billing_payment_scheduled"
	EventBillingPaymentExecuted        OutboxEventType = "billing_payment_executed"
	EventBillingInvoiceReminder        OutboxEventType = "billing_invoice_reminder"
	EventBillingPeriodRolledOver       OutboxEventType = "billing_period_rolled_over"
	EventBillingDisputeOpened          OutboxEventType = "billing_dispute_opened"
	EventBillingDisputeUnderReview     OutboxEventType = "billing_dispute_under_review"
	EventBillingDisputeResolved        OutboxEventType = "billing_dispute_resolved"
	EventCorrectionCreditNoteRequested OutboxEventType = "correction_credit_note_requested"
	EventBillingDisputeEscalated       OutboxEventType = "billing_dispute_escalated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBillingPeriodClosed,
	EventBillingInvoiceSubmitted,
	EventCommissionInvoiceRequested,
	EventBillingInvoiceValidated,
	EventBillingPaymentScheduled,
	EventBillingPaymentExecuted,
	EventBillingInvoiceReminder,
	EventBillingPeriodRolledOver,
	EventBillingDisputeOpened,
	EventBillingDisputeUnderReview,
	EventBillingDisputeResolved,
	EventCorrectionCreditNoteRequested,
	EventBillingDisputeEscalated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return member(validOutboxEventTypes, e)
}

// EventTransactionRecorded arrives from the transaction service. It is consumed here and never
// written to this outbox, so it is not part of the event_type enum.
const EventTransactionRecorded OutboxEventType = "transaction_recorded"

// IsDocumentRequest reports whether the event is addressed to the document generator.
func (e OutboxEventType) IsDocumentRequest() bool {
	return e == EventCommissionInvoiceRequested || e == EventCorrectionCreditNoteRequested
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, value, "event type")
}
