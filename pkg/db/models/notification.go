package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/types"
)

// Notification stores an in-app notification for a partner establishment or the admin team.
type Notification struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EventID         uuid.UUID                  `gorm:"column:event_id;type:uuid;not null" json:"event_id"`
	Audience        enums.NotificationAudience `gorm:"column:audience;type:notification_audience;not null" json:"audience"`
	EstablishmentID *uuid.UUID                 `gorm:"column:establishment_id;type:uuid" json:"establishment_id,omitempty"`
	Category        enums.NotificationCategory `gorm:"column:category;type:notification_category;not null" json:"category"`
	AlertType       *string                    `gorm:"column:alert_type;type:text" json:"alert_type,omitempty"`
	Title           string                     `gorm:"column:title;type:text;not null" json:"title"`
	Body            string                     `gorm:"column:body;type:text;not null" json:"body"`
	Data            types.JSONMap              `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	ReadAt          *time.Time                 `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
