package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/outbox/payloads"
)

const (
	alertInvoiceSubmitted = "billing_invoice_submitted"
	alertDisputeOpened    = "billing_dispute_opened"
	alertDisputeEscalated = "billing_dispute_escalated"

	dateLayout = "2006-01-02"
)

type renderedMessage struct {
	admin           bool
	alertType       string
	establishmentID uuid.UUID
	category        enums.NotificationCategory
	title           string
	body            string
	data            map[string]any
}

// formatCents renders an integer amount of euro cents, e.g. 8300 -> "83.00 EUR".
func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2) + " EUR"
}

func render(payload interface{}) (renderedMessage, error) {
	switch p := payload.(type) {
	case *payloads.InvoiceSubmittedEvent:
		return renderedMessage{
			admin:     true,
			alertType: alertInvoiceSubmitted,
			category:  enums.NotificationCategoryBillingInvoice,
			title:     fmt.Sprintf("Invoice submitted for %s", p.PeriodCode),
			body: fmt.Sprintf("Establishment %s called to invoice period %s. Commission due: %s.",
				p.EstablishmentID, p.PeriodCode, formatCents(p.TotalCommissionCents)),
			data: periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode),
		}, nil

	case *payloads.InvoiceValidatedEvent:
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		data["paymentDueDate"] = p.PaymentDueDate.Format(dateLayout)
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingPayment,
			"Invoice validated",
			fmt.Sprintf("Your invoice for period %s has been validated. Payment is due on %s.",
				p.PeriodCode, p.PaymentDueDate.Format(dateLayout)),
			data), nil

	case *payloads.PaymentScheduledEvent:
		body := fmt.Sprintf("The payment for period %s has been scheduled.", p.PeriodCode)
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		if p.PaymentDueDate != nil {
			body = fmt.Sprintf("The payment for period %s has been scheduled for %s.", p.PeriodCode, p.PaymentDueDate.Format(dateLayout))
			data["paymentDueDate"] = p.PaymentDueDate.Format(dateLayout)
		}
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingPayment, "Payment scheduled", body, data), nil

	case *payloads.PaymentExecutedEvent:
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		data["netAmountCents"] = p.NetAmountCents
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingPayment,
			"Payment sent",
			fmt.Sprintf("We sent %s for period %s.", formatCents(p.NetAmountCents), p.PeriodCode),
			data), nil

	case *payloads.InvoiceReminderEvent:
		title := "Reminder: call to invoice"
		body := fmt.Sprintf("Period %s closed %d days ago. Send your invoice before %s.",
			p.PeriodCode, p.DaysSinceEnd, p.CallToInvoiceDeadline.Format(dateLayout))
		if p.Final {
			title = "Final reminder: call to invoice"
			body = fmt.Sprintf("Last reminder for period %s. After %s its transactions move to the current period.",
				p.PeriodCode, p.CallToInvoiceDeadline.Format(dateLayout))
		}
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		data["final"] = p.Final
		data["deadline"] = p.CallToInvoiceDeadline.Format(time.RFC3339)
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingReminder, title, body, data), nil

	case *payloads.PeriodRolledOverEvent:
		data := periodData(p.PeriodID, p.EstablishmentID, p.FromPeriodCode)
		data["toPeriodCode"] = p.ToPeriodCode
		data["toPeriodId"] = p.ToPeriodID.String()
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingRollover,
			"Billing period rolled over",
			fmt.Sprintf("The invoicing deadline for period %s passed. %d transactions moved to period %s.",
				p.FromPeriodCode, p.TransactionsMoved, p.ToPeriodCode),
			data), nil

	case *payloads.DisputeOpenedEvent:
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		data["disputeId"] = p.DisputeID.String()
		return renderedMessage{
			admin:     true,
			alertType: alertDisputeOpened,
			category:  enums.NotificationCategoryBillingDispute,
			title:     fmt.Sprintf("Billing dispute on %s", p.PeriodCode),
			body:      p.ReasonExcerpt,
			data:      data,
		}, nil

	case *payloads.DisputeUnderReviewEvent:
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingDispute,
			"Dispute under review",
			"Our team is reviewing your billing dispute.",
			map[string]any{"disputeId": p.DisputeID.String(), "periodId": p.PeriodID.String()}), nil

	case *payloads.DisputeResolvedEvent:
		data := periodData(p.PeriodID, p.EstablishmentID, p.PeriodCode)
		data["disputeId"] = p.DisputeID.String()
		data["decision"] = string(p.Decision)
		title := "Dispute rejected"
		body := fmt.Sprintf("Your dispute on period %s was rejected: %s", p.PeriodCode, p.AdminResponse)
		if p.Decision == enums.DisputeDecisionAccept {
			title = "Dispute accepted"
			body = fmt.Sprintf("Your dispute on period %s was accepted.", p.PeriodCode)
			if p.CorrectionAmountCents != nil && *p.CorrectionAmountCents > 0 {
				data["correctionAmountCents"] = *p.CorrectionAmountCents
				body = fmt.Sprintf("Your dispute on period %s was accepted. A credit note of %s will be issued.",
					p.PeriodCode, formatCents(*p.CorrectionAmountCents))
			}
		}
		return partnerMessage(p.EstablishmentID, enums.NotificationCategoryBillingDispute, title, body, data), nil

	case *payloads.DisputeEscalatedEvent:
		return renderedMessage{
			admin:     true,
			alertType: alertDisputeEscalated,
			category:  enums.NotificationCategoryBillingEscalation,
			title:     "Escalated billing dispute",
			body: fmt.Sprintf("A rejected dispute from establishment %s was escalated. Resolve it within %d business days, by %s.",
				p.EstablishmentID, p.SLABusinessDays, p.ResolveBy.Format(dateLayout)),
			data: map[string]any{
				"disputeId":       p.DisputeID.String(),
				"periodId":        p.PeriodID.String(),
				"establishmentId": p.EstablishmentID.String(),
				"resolveBy":       p.ResolveBy.Format(time.RFC3339),
			},
		}, nil
	}
	return renderedMessage{}, fmt.Errorf("no notification template for %T", payload)
}

func partnerMessage(establishmentID uuid.UUID, category enums.NotificationCategory, title, body string, data map[string]any) renderedMessage {
	return renderedMessage{
		establishmentID: establishmentID,
		category:        category,
		title:           title,
		body:            body,
		data:            data,
	}
}

func periodData(periodID, establishmentID uuid.UUID, code string) map[string]any {
	return map[string]any{
		"periodId":        periodID.String(),
		"establishmentId": establishmentID.String(),
		"periodCode":      code,
	}
}
