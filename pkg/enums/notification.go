package enums

// NotificationAudience identifies who a notification row is addressed to.
type NotificationAudience string

const (
	NotificationAudiencePartner NotificationAudience = "partner"
	NotificationAudienceAdmin   NotificationAudience = "admin"
)

// IsValid reports whether the audience is known.
func (a NotificationAudience) IsValid() bool {
	return a == NotificationAudiencePartner || a == NotificationAudienceAdmin
}

// NotificationCategory maps to the notification_category enum in Postgres.
type NotificationCategory string

const (
	NotificationCategoryBillingInvoice    NotificationCategory = "billing_invoice"
	NotificationCategoryBillingPayment    NotificationCategory = "billing_payment"
	NotificationCategoryBillingReminder   NotificationCategory = "billing_reminder"
	NotificationCategoryBillingRollover   NotificationCategory = "billing_rollover"
	NotificationCategoryBillingDispute    NotificationCategory = "billing_dispute"
	NotificationCategoryBillingEscalation NotificationCategory = "billing_escalation"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategoryBillingInvoice,
	NotificationCategoryBillingPayment,
	NotificationCategoryBillingReminder,
	NotificationCategoryBillingRollover,
	NotificationCategoryBillingDispute,
	NotificationCategoryBillingEscalation,
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	return member(validNotificationCategories, n)
}
