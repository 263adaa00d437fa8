package enums

// BillingDisputeStatus tracks the lifecycle of a partner dispute.
type BillingDisputeStatus string

const (
	BillingDisputeStatusOpen             BillingDisputeStatus = "open"
	BillingDisputeStatusUnderReview      BillingDisputeStatus = "under_review"
	BillingDisputeStatusResolvedAccepted BillingDisputeStatus = "resolved_accepted"
	BillingDisputeStatusResolvedRejected BillingDisputeStatus = "resolved_rejected"
	BillingDisputeStatusEscalated        BillingDisputeStatus = "escalated"
)

var validBillingDisputeStatuses = []BillingDisputeStatus{
	BillingDisputeStatusOpen,
	BillingDisputeStatusUnderReview,
	BillingDisputeStatusResolvedAccepted,
	BillingDisputeStatusResolvedRejected,
	BillingDisputeStatusEscalated,
}

// String implements fmt.Stringer.
func (s BillingDisputeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BillingDisputeStatus.
func (s BillingDisputeStatus) IsValid() bool {
	return member(validBillingDisputeStatuses, s)
}

// IsPending reports whether an admin response is still outstanding.
func (s BillingDisputeStatus) IsPending() bool {
	return s == BillingDisputeStatusOpen || s == BillingDisputeStatusUnderReview
}

// ParseBillingDisputeStatus converts raw input into BillingDisputeStatus.
func ParseBillingDisputeStatus(value string) (BillingDisputeStatus, error) {
	return parse(validBillingDisputeStatuses, value, "billing dispute status")
}

// DisputeDecision represents the admin's answer to a dispute.
type DisputeDecision string

const (
	// DisputeDecisionAccept grants the partner's claim.
	DisputeDecisionAccept DisputeDecision = "accept"
	// DisputeDecisionReject denies the partner's claim.
	DisputeDecisionReject DisputeDecision = "reject"
)

// IsValid reports whether the value is a known DisputeDecision.
func (d DisputeDecision) IsValid() bool {
	return d == DisputeDecisionAccept || d == DisputeDecisionReject
}

// EvidenceType classifies a piece of dispute evidence.
type EvidenceType string

const (
	EvidenceTypeReceipt    EvidenceType = "receipt"
	EvidenceTypeScreenshot EvidenceType = "screenshot"
	EvidenceTypeDocument   EvidenceType = "document"
	EvidenceTypeOther      EvidenceType = "other"
)

var validEvidenceTypes = []EvidenceType{
	EvidenceTypeReceipt,
	EvidenceTypeScreenshot,
	EvidenceTypeDocument,
	EvidenceTypeOther,
}

// IsValid reports whether the value is a known EvidenceType.
func (e EvidenceType) IsValid() bool {
	return member(validEvidenceTypes, e)
}
