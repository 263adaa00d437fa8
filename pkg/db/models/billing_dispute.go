package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/db/types"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/types"
)

// BillingDispute is a partner's contestation of a billing period.
// CorrectionAmountCents is only non-nil once the dispute is resolved_accepted.
type BillingDispute struct {
	ID                    uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BillingPeriodID       uuid.UUID                  `gorm:"column:billing_period_id;type:uuid;not null"`
	EstablishmentID       uuid.UUID                  `gorm:"column:establishment_id;type:uuid;not null"`
	Reason                string                     `gorm:"column:reason;type:text;not null"`
	DisputedTransactions  dbtypes.UUIDArray          `gorm:"column:disputed_transactions;type:uuid[];not null;default:'{}'"`
	Evidence              types.EvidenceList         `gorm:"column:evidence;type:jsonb;not null;default:'[]'"`
	Status                enums.BillingDisputeStatus `gorm:"column:status;type:billing_dispute_status;not null;default:'open'"`
	ReviewedBy            *uuid.UUID                 `gorm:"column:reviewed_by;type:uuid"`
	ReviewStartedAt       *time.Time                 `gorm:"column:review_started_at"`
	AdminResponse         *string                    `gorm:"column:admin_response;type:text"`
	AdminRespondedBy      *uuid.UUID                 `gorm:"column:admin_responded_by;type:uuid"`
	AdminRespondedAt      *time.Time                 `gorm:"column:admin_responded_at"`
	CorrectionAmountCents *int64                     `gorm:"column:correction_amount_cents"`
	EscalatedAt           *time.Time                 `gorm:"column:escalated_at"`
	CreatedAt             time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillingDispute) TableName() string { return "billing_disputes" }
