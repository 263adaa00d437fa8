package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/api/responses"
	"github.com/menusam/partner-billing/api/validators"
	billingsvc "github.com/menusam/partner-billing/internal/billing"
	"github.com/menusam/partner-billing/pkg/db/models"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
)

// PartnerService is the slice of the billing service exposed to establishments.
type PartnerService interface {
	GetPeriod(ctx context.Context, periodID uuid.UUID, establishmentID *uuid.UUID) (*models.BillingPeriod, error)
	ListPeriods(ctx context.Context, input billingsvc.ListPeriodsInput) (billingsvc.ListPeriodsResult, error)
	CallToInvoice(ctx context.Context, periodID, establishmentID uuid.UUID) (billingsvc.CallToInvoiceResult, error)
	CreateDispute(ctx context.Context, input billingsvc.CreateDisputeInput) (billingsvc.CreateDisputeResult, error)
	ListDisputes(ctx context.Context, input billingsvc.ListDisputesInput) (billingsvc.ListDisputesResult, error)
}

// partnerScope resolves the caller's establishment and, when param is set, a path id.
func partnerScope(r *http.Request, param string) (establishmentID, id uuid.UUID, err error) {
	if establishmentID, err = establishmentFromRequest(r); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if param == "" {
		return establishmentID, uuid.Nil, nil
	}
	id, err = validators.PathUUID(r, param)
	return establishmentID, id, err
}

// PartnerListPeriods returns the establishment's periods, newest first.
func PartnerListPeriods(svc PartnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		establishmentID, _, err := partnerScope(r, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := filters.periodStatus()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListPeriods(r.Context(), billingsvc.ListPeriodsInput{
			EstablishmentID: &establishmentID,
			Status:          status,
			Params:          filters.page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodList(result.Periods, result.NextCursor))
	}
}

// PartnerGetPeriod returns one period owned by the establishment.
func PartnerGetPeriod(svc PartnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		establishmentID, periodID, err := partnerScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period, err := svc.GetPeriod(r.Context(), periodID, &establishmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodResponse(period))
	}
}

// PartnerCallToInvoice submits the invoice request for a closed period.
func PartnerCallToInvoice(svc PartnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		establishmentID, periodID, err := partnerScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CallToInvoice(r.Context(), periodID, establishmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, callToInvoiceResponse{PeriodID: periodID.String(), InvoiceGenerated: result.InvoiceGenerated})
	}
}

// PartnerCreateDispute opens a dispute against one of the establishment's periods.
func PartnerCreateDispute(svc PartnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		establishmentID, periodID, err := partnerScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := validators.Decode[createDisputeRequest](w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateDispute(r.Context(), billingsvc.CreateDisputeInput{
			PeriodID:               periodID,
			EstablishmentID:        establishmentID,
			Reason:                 validators.Clip(req.Reason, maxTextLen),
			DisputedTransactionIDs: req.TransactionIDs,
			Evidence:               req.Evidence,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createDisputeResponse{DisputeID: result.DisputeID.String()})
	}
}

// PartnerListDisputes returns the establishment's disputes, optionally for one period.
func PartnerListDisputes(svc PartnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		establishmentID, _, err := partnerScope(r, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := filters.disputeStatus()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListDisputes(r.Context(), billingsvc.ListDisputesInput{
			EstablishmentID: &establishmentID,
			PeriodID:        filters.periodID,
			Status:          status,
			Params:          filters.page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeList(result.Disputes, result.NextCursor))
	}
}
