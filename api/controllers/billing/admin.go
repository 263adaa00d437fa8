package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/api/responses"
	"github.com/menusam/partner-billing/api/validators"
	billingsvc "github.com/menusam/partner-billing/internal/billing"
	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
)

// AdminService is the slice of the billing service exposed to the back office.
type AdminService interface {
	ListPeriods(ctx context.Context, input billingsvc.ListPeriodsInput) (billingsvc.ListPeriodsResult, error)
	ValidateInvoice(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error)
	SchedulePayment(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error)
	ExecutePayment(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error)
	ResumeAfterDispute(ctx context.Context, periodID, adminUserID uuid.UUID) (*models.BillingPeriod, error)
	ListDisputes(ctx context.Context, input billingsvc.ListDisputesInput) (billingsvc.ListDisputesResult, error)
	MarkDisputeUnderReview(ctx context.Context, disputeID, adminUserID uuid.UUID) (*models.BillingDispute, error)
	RespondToDispute(ctx context.Context, input billingsvc.RespondToDisputeInput) (*models.BillingDispute, error)
	EscalateDispute(ctx context.Context, disputeID, adminUserID uuid.UUID) (*models.BillingDispute, error)
}

func adminScope(r *http.Request, param string) (adminID, id uuid.UUID, err error) {
	if adminID, err = adminFromRequest(r); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err = validators.PathUUID(r, param)
	return adminID, id, err
}

// AdminListPeriods pages through all periods, optionally filtered by status or establishment.
func AdminListPeriods(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
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
			EstablishmentID: filters.establishmentID,
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

// AdminValidateInvoice accepts the partner's submitted invoice.
func AdminValidateInvoice(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ValidateInvoice(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodResponse(out))
	}
}

// AdminSchedulePayment queues payment of a validated invoice.
func AdminSchedulePayment(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.SchedulePayment(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodResponse(out))
	}
}

// AdminExecutePayment records that the scheduled payment went out.
func AdminExecutePayment(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ExecutePayment(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodResponse(out))
	}
}

// AdminResumePeriod returns a period whose dispute was rejected to the stage it had reached before the dispute.
func AdminResumePeriod(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "periodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ResumeAfterDispute(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPeriodResponse(out))
	}
}

// AdminListDisputes pages through disputes across establishments.
func AdminListDisputes(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
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
			EstablishmentID: filters.establishmentID,
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

// AdminReviewDispute takes an open dispute under review.
func AdminReviewDispute(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.MarkDisputeUnderReview(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(out))
	}
}

// AdminEscalateDispute flags a rejected dispute for a final answer within the SLA.
func AdminEscalateDispute(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, id, err := adminScope(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.EscalateDispute(r.Context(), id, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(out))
	}
}

// AdminRespondToDispute records the accept or reject decision on a dispute.
func AdminRespondToDispute(svc AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		adminID, disputeID, err := adminScope(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := validators.Decode[respondToDisputeRequest](w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.RespondToDispute(r.Context(), billingsvc.RespondToDisputeInput{
			DisputeID:             disputeID,
			AdminUserID:           adminID,
			Decision:              enums.DisputeDecision(req.Decision),
			Response:              validators.Clip(req.Response, maxTextLen),
			CorrectionAmountCents: req.CorrectionAmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}
