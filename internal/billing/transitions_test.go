package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menusam/partner-billing/pkg/enums"
)

func TestPeriodTransitionTable(t *testing.T) {
	cases := []struct {
		trigger Trigger
		from    enums.BillingPeriodStatus
		ok      bool
	}{
		{TriggerClose, enums.BillingPeriodStatusOpen, true},
		{TriggerClose, enums.BillingPeriodStatusClosed, false},
		{TriggerCallToInvoice, enums.BillingPeriodStatusClosed, true},
		{TriggerCallToInvoice, enums.BillingPeriodStatusOpen, false},
		{TriggerValidateInvoice, enums.BillingPeriodStatusInvoiceSubmitted, true},
		{TriggerValidateInvoice, enums.BillingPeriodStatusClosed, false},
		{TriggerSchedulePayment, enums.BillingPeriodStatusInvoiceValidated, true},
		{TriggerExecutePayment, enums.BillingPeriodStatusInvoiceValidated, true},
		{TriggerExecutePayment, enums.BillingPeriodStatusPaymentScheduled, true},
		{TriggerExecutePayment, enums.BillingPeriodStatusDisputed, false},
		{TriggerRollover, enums.BillingPeriodStatusClosed, true},
		{TriggerRollover, enums.BillingPeriodStatusInvoiceSubmitted, false},
		{TriggerOpenDispute, enums.BillingPeriodStatusPaymentScheduled, true},
		{TriggerOpenDispute, enums.BillingPeriodStatusPaid, false},
		{TriggerAcceptDispute, enums.BillingPeriodStatusDisputed, true},
		{TriggerRejectDispute, enums.BillingPeriodStatusDisputed, true},
		{TriggerRejectDispute, enums.BillingPeriodStatusClosed, false},
		{TriggerResumePeriod, enums.BillingPeriodStatusDisputeResolved, true},
		{TriggerResumePeriod, enums.BillingPeriodStatusDisputed, false},
		{TriggerResumePeriod, enums.BillingPeriodStatusCorrected, false},
		{Trigger("unknown"), enums.BillingPeriodStatusOpen, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.trigger.CanFire(tc.from), "%s from %s", tc.trigger, tc.from)
	}
}

func TestTerminalStatusesHaveNoOutgoingTransitions(t *testing.T) {
	for trigger := range periodTransitions {
		require.False(t, trigger.CanFire(enums.BillingPeriodStatusPaid), "%s fires from paid", trigger)
		require.False(t, trigger.CanFire(enums.BillingPeriodStatusCorrected), "%s fires from corrected", trigger)
	}
}

func TestTriggerCategories(t *testing.T) {
	for trigger, tr := range periodTransitions {
		require.True(t, tr.to.IsValid(), "%s targets invalid status", trigger)
		require.NotEmpty(t, tr.from)
	}
	require.Equal(t, CategoryInvoice, TriggerExecutePayment.Category())
	require.Equal(t, CategoryDispute, TriggerOpenDispute.Category())
	require.Equal(t, CategoryDispute, TriggerResumePeriod.Category())
}

func TestDisputeTransitionTable(t *testing.T) {
	require.True(t, DisputeActionReview.CanApply(enums.BillingDisputeStatusOpen))
	require.False(t, DisputeActionReview.CanApply(enums.BillingDisputeStatusUnderReview))
	require.True(t, DisputeActionAccept.CanApply(enums.BillingDisputeStatusUnderReview))
	require.True(t, DisputeActionReject.CanApply(enums.BillingDisputeStatusOpen))
	require.False(t, DisputeActionReject.CanApply(enums.BillingDisputeStatusResolvedAccepted))
	require.True(t, DisputeActionEscalate.CanApply(enums.BillingDisputeStatusResolvedRejected))
	require.False(t, DisputeActionEscalate.CanApply(enums.BillingDisputeStatusEscalated))
	require.Equal(t, TriggerAcceptDispute, periodTriggerFor(enums.DisputeDecisionAccept))
	require.Equal(t, TriggerRejectDispute, periodTriggerFor(enums.DisputeDecisionReject))
}

func TestInvalidStatusMessageNamesCurrentStatus(t *testing.T) {
	msg := TriggerExecutePayment.invalidStatusMessage(enums.BillingPeriodStatusInvoiceSubmitted)
	require.Contains(t, msg, "invoice_submitted")
	require.Contains(t, msg, "invoice_validated or payment_scheduled")
}
