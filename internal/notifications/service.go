package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/pagination"
	"github.com/menusam/partner-billing/pkg/types"
)

// Service is the notifier gateway: it records partner notifications and admin
// alerts, and serves them back to the dashboards.
type Service interface {
	NotifyPartner(ctx context.Context, input PartnerNotification) error
	EmitAdminAlert(ctx context.Context, input AdminAlert) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, establishmentID, notificationID uuid.UUID) error
}

type service struct {
	repo Repository
}

// PartnerNotification is addressed to a single establishment.
type PartnerNotification struct {
	EventID         uuid.UUID
	EstablishmentID uuid.UUID
	Category        enums.NotificationCategory
	Title           string
	Body            string
	Data            map[string]any
}

// AdminAlert is addressed to the back-office team.
type AdminAlert struct {
	EventID  uuid.UUID
	Type     string
	Category enums.NotificationCategory
	Title    string
	Body     string
	Data     map[string]any
}

// ListParams configures pagination for notifications. A nil EstablishmentID
// with the admin audience lists every admin alert.
type ListParams struct {
	Audience        enums.NotificationAudience
	EstablishmentID *uuid.UUID
	Limit           int
	Cursor          string
	UnreadOnly      bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) NotifyPartner(ctx context.Context, input PartnerNotification) error {
	if input.EstablishmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "establishment id required")
	}
	establishmentID := input.EstablishmentID
	return s.create(ctx, &models.Notification{
		EventID:         input.EventID,
		Audience:        enums.NotificationAudiencePartner,
		EstablishmentID: &establishmentID,
		Category:        input.Category,
		Title:           input.Title,
		Body:            input.Body,
		Data:            types.JSONMap(input.Data),
	})
}

func (s *service) EmitAdminAlert(ctx context.Context, input AdminAlert) error {
	alertType := strings.TrimSpace(input.Type)
	if alertType == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert type required")
	}
	return s.create(ctx, &models.Notification{
		EventID:   input.EventID,
		Audience:  enums.NotificationAudienceAdmin,
		Category:  input.Category,
		AlertType: &alertType,
		Title:     input.Title,
		Body:      input.Body,
		Data:      types.JSONMap(input.Data),
	})
}

func (s *service) create(ctx context.Context, notification *models.Notification) error {
	if notification.EventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if !notification.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification category")
	}
	if strings.TrimSpace(notification.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	// A redelivered event hits the (event_id, audience) index and is dropped.
	if _, err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if !params.Audience.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audience")
	}
	if params.Audience == enums.NotificationAudiencePartner && (params.EstablishmentID == nil || *params.EstablishmentID == uuid.Nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "establishment id required")
	}

	query := listNotificationsParams{
		Audience:        params.Audience,
		EstablishmentID: params.EstablishmentID,
		Limit:           params.Limit,
		UnreadOnly:      params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = next.String()
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, establishmentID, notificationID uuid.UUID) error {
	if establishmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "establishment id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, establishmentID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
