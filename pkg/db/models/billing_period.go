package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

// BillingPeriod is the semi-monthly commission statement of one establishment.
type BillingPeriod struct {
	ID                    uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EstablishmentID       uuid.UUID                 `gorm:"column:establishment_id;type:uuid;not null"`
	PeriodCode            string                    `gorm:"column:period_code;type:text;not null"`
	StartDate             time.Time                 `gorm:"column:start_date;type:date;not null"`
	EndDate               time.Time                 `gorm:"column:end_date;type:date;not null"`
	Status                enums.BillingPeriodStatus `gorm:"column:status;type:billing_period_status;not null;default:'open'"`
	TotalGrossCents       int64                     `gorm:"column:total_gross_cents;not null;default:0"`
	TotalCommissionCents  int64                     `gorm:"column:total_commission_cents;not null;default:0"`
	TotalNetCents         int64                     `gorm:"column:total_net_cents;not null;default:0"`
	TotalRefundsCents     int64                     `gorm:"column:total_refunds_cents;not null;default:0"`
	TransactionCount      int                       `gorm:"column:transaction_count;not null;default:0"`
	CallToInvoiceDeadline *time.Time                `gorm:"column:call_to_invoice_deadline"`
	InvoiceSubmittedAt    *time.Time                `gorm:"column:invoice_submitted_at"`
	InvoiceValidatedAt    *time.Time                `gorm:"column:invoice_validated_at"`
	InvoiceValidatedBy    *uuid.UUID                `gorm:"column:invoice_validated_by;type:uuid"`
	PaymentDueDate        *time.Time                `gorm:"column:payment_due_date"`
	PaymentScheduledAt    *time.Time                `gorm:"column:payment_scheduled_at"`
	PaymentExecutedAt     *time.Time                `gorm:"column:payment_executed_at"`
	PaymentExecutedBy     *uuid.UUID                `gorm:"column:payment_executed_by;type:uuid"`
	ClosedAt              *time.Time                `gorm:"column:closed_at"`
	CreatedAt             time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillingPeriod) TableName() string { return "billing_periods" }
