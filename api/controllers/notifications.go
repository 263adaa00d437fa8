package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/api/middleware"
	"github.com/menusam/partner-billing/api/responses"
	"github.com/menusam/partner-billing/api/validators"
	"github.com/menusam/partner-billing/internal/notifications"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/pagination"
)

var errNotificationsUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")

// ListNotifications returns the partner feed of the caller's establishment.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return listFeed(svc, logg, enums.NotificationAudiencePartner)
}

// ListAdminAlerts returns the back-office alert feed.
func ListAdminAlerts(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return listFeed(svc, logg, enums.NotificationAudienceAdmin)
}

func listFeed(svc notifications.Service, logg *logger.Logger, audience enums.NotificationAudience) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errNotificationsUnavailable)
			return
		}
		params, err := feedParams(r, audience)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// feedParams scopes partner feeds to the token's establishment; the admin feed is global.
func feedParams(r *http.Request, audience enums.NotificationAudience) (notifications.ListParams, error) {
	q := validators.QueryOf(r)
	limit, err := q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return notifications.ListParams{}, err
	}
	unread, err := q.Bool("unread_only")
	if err != nil {
		return notifications.ListParams{}, err
	}
	params := notifications.ListParams{
		Audience:   audience,
		Limit:      limit,
		Cursor:     q.String("cursor"),
		UnreadOnly: unread,
	}
	if audience == enums.NotificationAudiencePartner {
		establishmentID, err := callerEstablishment(r)
		if err != nil {
			return notifications.ListParams{}, err
		}
		params.EstablishmentID = &establishmentID
	}
	return params, nil
}

// MarkNotificationRead flags one of the establishment's notifications as read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errNotificationsUnavailable)
			return
		}
		establishmentID, err := callerEstablishment(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		notificationID, err := validators.PathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.MarkRead(ctx, establishmentID, notificationID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

func callerEstablishment(r *http.Request) (uuid.UUID, error) {
	caller, _ := middleware.CallerFromContext(r.Context())
	if id, ok := caller.Establishment(); ok {
		return id, nil
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "establishment context missing")
}
