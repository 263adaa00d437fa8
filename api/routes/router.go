package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/menusam/partner-billing/api/controllers"
	billingcontrollers "github.com/menusam/partner-billing/api/controllers/billing"
	"github.com/menusam/partner-billing/api/middleware"
	"github.com/menusam/partner-billing/internal/notifications"
	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/redis"
)

// BillingService is everything the partner and admin billing routes call.
type BillingService interface {
	billingcontrollers.PartnerService
	billingcontrollers.AdminService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	billingService BillingService,
	notificationsService notifications.Service,
) http.Handler {
	once := middleware.Idempotent(idempotencyStore, middleware.IdempotencyWindow, logg)
	onceMoney := middleware.Idempotent(idempotencyStore, middleware.IdempotencyWindowMoney, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/partner", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRolePartner, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Get("/periods", billingcontrollers.PartnerListPeriods(billingService, logg))
			r.Get("/periods/{periodId}", billingcontrollers.PartnerGetPeriod(billingService, logg))
			r.With(once).Post("/periods/{periodId}/call-to-invoice", billingcontrollers.PartnerCallToInvoice(billingService, logg))
			r.With(onceMoney).Post("/periods/{periodId}/disputes", billingcontrollers.PartnerCreateDispute(billingService, logg))
			r.Get("/disputes", billingcontrollers.PartnerListDisputes(billingService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.With(once).Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1/billing", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))

		r.Get("/periods", billingcontrollers.AdminListPeriods(billingService, logg))
		r.With(once).Post("/periods/{periodId}/validate", billingcontrollers.AdminValidateInvoice(billingService, logg))
		r.With(once).Post("/periods/{periodId}/schedule-payment", billingcontrollers.AdminSchedulePayment(billingService, logg))
		r.With(onceMoney).Post("/periods/{periodId}/execute-payment", billingcontrollers.AdminExecutePayment(billingService, logg))
		r.With(once).Post("/periods/{periodId}/resume", billingcontrollers.AdminResumePeriod(billingService, logg))

		r.Get("/disputes", billingcontrollers.AdminListDisputes(billingService, logg))
		r.With(once).Post("/disputes/{disputeId}/review", billingcontrollers.AdminReviewDispute(billingService, logg))
		r.With(once).Post("/disputes/{disputeId}/respond", billingcontrollers.AdminRespondToDispute(billingService, logg))
		r.With(once).Post("/disputes/{disputeId}/escalate", billingcontrollers.AdminEscalateDispute(billingService, logg))

		r.Get("/alerts", controllers.ListAdminAlerts(notificationsService, logg))
	})

	return r
}
