package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

// Transaction is a partner sale or refund. Billing only reads it, except for
// rollover which reassigns BillingPeriod.
type Transaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EstablishmentID  uuid.UUID               `gorm:"column:establishment_id;type:uuid;not null"`
	BillingPeriod    string                  `gorm:"column:billing_period;type:text;not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	GrossAmountCents int64                   `gorm:"column:gross_amount_cents;not null;default:0"`
	CommissionCents  int64                   `gorm:"column:commission_amount_cents;not null;default:0"`
	NetAmountCents   int64                   `gorm:"column:net_amount_cents;not null;default:0"`
	OccurredAt       time.Time               `gorm:"column:occurred_at;not null"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }
