package billing

import (
	"fmt"
	"strings"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
)

// Trigger names an event that can move a billing period between statuses.
type Trigger string

// Invoice lifecycle triggers.
const (
	TriggerClose           Trigger = "close"
	TriggerCallToInvoice   Trigger = "call_to_invoice"
	TriggerValidateInvoice Trigger = "validate_invoice"
	TriggerSchedulePayment Trigger = "schedule_payment"
	TriggerExecutePayment  Trigger = "execute_payment"
	TriggerRollover        Trigger = "rollover"
)

// Dispute lifecycle triggers.
const (
	TriggerOpenDispute   Trigger = "open_dispute"
	TriggerAcceptDispute Trigger = "accept_dispute"
	TriggerRejectDispute Trigger = "reject_dispute"
	TriggerResumePeriod  Trigger = "resume_after_dispute"
)

// TriggerCategory groups triggers by the workflow that fires them.
type TriggerCategory string

const (
	CategoryInvoice TriggerCategory = "invoice"
	CategoryDispute TriggerCategory = "dispute"
)

type periodTransition struct {
	category TriggerCategory
	from     []enums.BillingPeriodStatus
	to       enums.BillingPeriodStatus
}

// disputableStatuses are the post-close statuses a partner may contest.
var disputableStatuses = []enums.BillingPeriodStatus{
	enums.BillingPeriodStatusClosed,
	enums.BillingPeriodStatusInvoiceSubmitted,
	enums.BillingPeriodStatusInvoiceValidated,
	enums.BillingPeriodStatusPaymentScheduled,
}

// periodTransitions is the full billing period state machine. Both workflows
// mutate the same status column, so every legal move is listed here.
var periodTransitions = map[Trigger]periodTransition{
	TriggerClose: {
		category: CategoryInvoice,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusOpen},
		to:       enums.BillingPeriodStatusClosed,
	},
	TriggerCallToInvoice: {
		category: CategoryInvoice,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusClosed},
		to:       enums.BillingPeriodStatusInvoiceSubmitted,
	},
	TriggerValidateInvoice: {
		category: CategoryInvoice,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusInvoiceSubmitted},
		to:       enums.BillingPeriodStatusInvoiceValidated,
	},
	TriggerSchedulePayment: {
		category: CategoryInvoice,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusInvoiceValidated},
		to:       enums.BillingPeriodStatusPaymentScheduled,
	},
	TriggerExecutePayment: {
		category: CategoryInvoice,
		from: []enums.BillingPeriodStatus{
			enums.BillingPeriodStatusInvoiceValidated,
			enums.BillingPeriodStatusPaymentScheduled,
		},
		to: enums.BillingPeriodStatusPaid,
	},
	TriggerRollover: {
		category: CategoryInvoice,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusClosed},
		to:       enums.BillingPeriodStatusCorrected,
	},
	TriggerOpenDispute: {
		category: CategoryDispute,
		from:     disputableStatuses,
		to:       enums.BillingPeriodStatusDisputed,
	},
	TriggerAcceptDispute: {
		category: CategoryDispute,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusDisputed},
		to:       enums.BillingPeriodStatusCorrected,
	},
	TriggerRejectDispute: {
		category: CategoryDispute,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusDisputed},
		to:       enums.BillingPeriodStatusDisputeResolved,
	},
	// to is the earliest stage; resumeTarget picks the one the period had reached.
	TriggerResumePeriod: {
		category: CategoryDispute,
		from:     []enums.BillingPeriodStatus{enums.BillingPeriodStatusDisputeResolved},
		to:       enums.BillingPeriodStatusClosed,
	},
}

// Category reports which workflow owns the trigger.
func (t Trigger) Category() TriggerCategory {
	return periodTransitions[t].category
}

// AllowedFrom lists the statuses the trigger may fire from.
func (t Trigger) AllowedFrom() []enums.BillingPeriodStatus {
	return append([]enums.BillingPeriodStatus(nil), periodTransitions[t].from...)
}

// Target is the status the trigger moves a period to.
func (t Trigger) Target() enums.BillingPeriodStatus {
	return periodTransitions[t].to
}

// CanFire reports whether the trigger is legal from the given status.
func (t Trigger) CanFire(from enums.BillingPeriodStatus) bool {
	tr, ok := periodTransitions[t]
	if !ok {
		return false
	}
	for _, s := range tr.from {
		if s == from {
			return true
		}
	}
	return false
}

func (t Trigger) invalidStatusMessage(current enums.BillingPeriodStatus) string {
	allowed := make([]string, 0, len(periodTransitions[t].from))
	for _, s := range periodTransitions[t].from {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("billing period is %s; %s requires %s", current, t, strings.Join(allowed, " or "))
}

type disputeTransition struct {
	from []enums.BillingDisputeStatus
	to   enums.BillingDisputeStatus
}

var pendingDisputeStatuses = []enums.BillingDisputeStatus{
	enums.BillingDisputeStatusOpen,
	enums.BillingDisputeStatusUnderReview,
}

// DisputeAction names a move of the dispute record itself.
type DisputeAction string

const (
	DisputeActionReview   DisputeAction = "review"
	DisputeActionAccept   DisputeAction = "accept"
	DisputeActionReject   DisputeAction = "reject"
	DisputeActionEscalate DisputeAction = "escalate"
)

var disputeTransitions = map[DisputeAction]disputeTransition{
	DisputeActionReview: {
		from: []enums.BillingDisputeStatus{enums.BillingDisputeStatusOpen},
		to:   enums.BillingDisputeStatusUnderReview,
	},
	DisputeActionAccept: {
		from: pendingDisputeStatuses,
		to:   enums.BillingDisputeStatusResolvedAccepted,
	},
	DisputeActionReject: {
		from: pendingDisputeStatuses,
		to:   enums.BillingDisputeStatusResolvedRejected,
	},
	DisputeActionEscalate: {
		from: []enums.BillingDisputeStatus{enums.BillingDisputeStatusResolvedRejected},
		to:   enums.BillingDisputeStatusEscalated,
	},
}

// CanApply reports whether the dispute action is legal from the given status.
func (a DisputeAction) CanApply(from enums.BillingDisputeStatus) bool {
	for _, s := range disputeTransitions[a].from {
		if s == from {
			return true
		}
	}
	return false
}

// Target is the dispute status the action moves to.
func (a DisputeAction) Target() enums.BillingDisputeStatus {
	return disputeTransitions[a].to
}

// AllowedFrom lists the dispute statuses the action may apply from.
func (a DisputeAction) AllowedFrom() []enums.BillingDisputeStatus {
	return append([]enums.BillingDisputeStatus(nil), disputeTransitions[a].from...)
}

// resumeTarget is the furthest invoice stage the period reached before its
// dispute, read from the stamps each stage leaves behind.
func resumeTarget(period *models.BillingPeriod) enums.BillingPeriodStatus {
	switch {
	case period.PaymentScheduledAt != nil:
		return enums.BillingPeriodStatusPaymentScheduled
	case period.InvoiceValidatedAt != nil:
		return enums.BillingPeriodStatusInvoiceValidated
	case period.InvoiceSubmittedAt != nil:
		return enums.BillingPeriodStatusInvoiceSubmitted
	default:
		return enums.BillingPeriodStatusClosed
	}
}

// periodTriggerFor maps a dispute decision onto the period trigger it fires.
func periodTriggerFor(decision enums.DisputeDecision) Trigger {
	if decision == enums.DisputeDecisionAccept {
		return TriggerAcceptDispute
	}
	return TriggerRejectDispute
}
