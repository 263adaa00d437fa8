package registry

import (
	"encoding/json"

	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
)

// Destination names the logical topic an event is routed to. Concrete topic
// names come from config.
type Destination int

const (
	DestinationBilling Destination = iota
	DestinationNotifications
	DestinationDocuments
)

func (d Destination) String() string {
	switch d {
	case DestinationBilling:
		return "billing"
	case DestinationNotifications:
		return "notifications"
	case DestinationDocuments:
		return "documents"
	default:
		return "unknown"
	}
}

type decoderFunc func(payload json.RawMessage) (any, error)

type catalogEntry struct {
	eventType   enums.OutboxEventType
	aggregate   enums.OutboxAggregateType
	destination Destination
	decode      decoderFunc
}

// catalog is the single list of events the outbox may carry.
var catalog = []catalogEntry{
	{enums.EventBillingPeriodClosed, enums.AggregateBillingPeriod, DestinationBilling, decodeInto[payloads.PeriodClosedEvent]},

	{enums.EventBillingInvoiceSubmitted, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.InvoiceSubmittedEvent]},
	{enums.EventBillingInvoiceValidated, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.InvoiceValidatedEvent]},
	{enums.EventBillingPaymentScheduled, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.PaymentScheduledEvent]},
	{enums.EventBillingPaymentExecuted, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.PaymentExecutedEvent]},
	{enums.EventBillingInvoiceReminder, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.InvoiceReminderEvent]},
	{enums.EventBillingPeriodRolledOver, enums.AggregateBillingPeriod, DestinationNotifications, decodeInto[payloads.PeriodRolledOverEvent]},
	{enums.EventBillingDisputeOpened, enums.AggregateBillingDispute, DestinationNotifications, decodeInto[payloads.DisputeOpenedEvent]},
	{enums.EventBillingDisputeUnderReview, enums.AggregateBillingDispute, DestinationNotifications, decodeInto[payloads.DisputeUnderReviewEvent]},
	{enums.EventBillingDisputeResolved, enums.AggregateBillingDispute, DestinationNotifications, decodeInto[payloads.DisputeResolvedEvent]},
	{enums.EventBillingDisputeEscalated, enums.AggregateBillingDispute, DestinationNotifications, decodeInto[payloads.DisputeEscalatedEvent]},

	{enums.EventCommissionInvoiceRequested, enums.AggregateBillingPeriod, DestinationDocuments, decodeInto[payloads.CommissionInvoiceRequestedEvent]},
	{enums.EventCorrectionCreditNoteRequested, enums.AggregateBillingDispute, DestinationDocuments, decodeInto[payloads.CorrectionCreditNoteRequestedEvent]},
}

func decodeInto[T any](payload json.RawMessage) (any, error) {
	var decoded T
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}
