package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/api/middleware"
	"github.com/menusam/partner-billing/api/validators"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/pagination"
)

const maxTextLen = 2000

func establishmentFromRequest(r *http.Request) (uuid.UUID, error) {
	caller, _ := middleware.CallerFromContext(r.Context())
	id, ok := caller.Establishment()
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "establishment context missing")
	}
	return id, nil
}

func adminFromRequest(r *http.Request) (uuid.UUID, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller.UserID, nil
}

// listFilters are the query parameters shared by every billing list endpoint.
type listFilters struct {
	page            pagination.Params
	status          string
	establishmentID *uuid.UUID
	periodID        *uuid.UUID
}

func parseListFilters(r *http.Request) (listFilters, error) {
	q := validators.QueryOf(r)
	limit, err := q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return listFilters{}, err
	}
	establishmentID, err := q.UUID("establishment_id")
	if err != nil {
		return listFilters{}, err
	}
	periodID, err := q.UUID("period_id")
	if err != nil {
		return listFilters{}, err
	}
	return listFilters{
		page:            pagination.Params{Limit: limit, Cursor: q.String("cursor")},
		status:          q.String("status"),
		establishmentID: establishmentID,
		periodID:        periodID,
	}, nil
}

func (f listFilters) periodStatus() (*enums.BillingPeriodStatus, error) {
	return optionalStatus(f.status, enums.ParseBillingPeriodStatus)
}

func (f listFilters) disputeStatus() (*enums.BillingDisputeStatus, error) {
	return optionalStatus(f.status, enums.ParseBillingDisputeStatus)
}

func optionalStatus[S any](raw string, parse func(string) (S, error)) (*S, error) {
	if raw == "" {
		return nil, nil
	}
	status, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}
	return &status, nil
}
