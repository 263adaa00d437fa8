package enums

import "slices"

// BillingPeriodStatus tracks the lifecycle of a semi-monthly billing period.
type BillingPeriodStatus string

const (
	BillingPeriodStatusOpen             BillingPeriodStatus = "open"
	BillingPeriodStatusClosed           BillingPeriodStatus = "closed"
	BillingPeriodStatusInvoiceSubmitted BillingPeriodStatus = "invoice_submitted"
	BillingPeriodStatusInvoiceValidated BillingPeriodStatus = "invoice_validated"
	BillingPeriodStatusPaymentScheduled BillingPeriodStatus = "payment_scheduled"
	BillingPeriodStatusPaid             BillingPeriodStatus = "paid"
	BillingPeriodStatusDisputed         BillingPeriodStatus = "disputed"
	BillingPeriodStatusDisputeResolved  BillingPeriodStatus = "dispute_resolved"
	BillingPeriodStatusCorrected        BillingPeriodStatus = "corrected"
)

var validBillingPeriodStatuses = []BillingPeriodStatus{
	BillingPeriodStatusOpen,
	BillingPeriodStatusClosed,
	BillingPeriodStatusInvoiceSubmitted,
	BillingPeriodStatusInvoiceValidated,
	BillingPeriodStatusPaymentScheduled,
	BillingPeriodStatusPaid,
	BillingPeriodStatusDisputed,
	BillingPeriodStatusDisputeResolved,
	BillingPeriodStatusCorrected,
}

// AllBillingPeriodStatuses returns every known status in lifecycle order.
func AllBillingPeriodStatuses() []BillingPeriodStatus {
	return slices.Clone(validBillingPeriodStatuses)
}

// String implements fmt.Stringer.
func (s BillingPeriodStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BillingPeriodStatus.
func (s BillingPeriodStatus) IsValid() bool {
	return member(validBillingPeriodStatuses, s)
}

// IsTerminal reports whether the period is finished for billing purposes.
func (s BillingPeriodStatus) IsTerminal() bool {
	return s == BillingPeriodStatusPaid || s == BillingPeriodStatusCorrected
}

// ParseBillingPeriodStatus converts raw input into BillingPeriodStatus.
func ParseBillingPeriodStatus(value string) (BillingPeriodStatus, error) {
	return parse(validBillingPeriodStatuses, value, "billing period status")
}
