package cron

import (
	"context"
	"fmt"

	"github.com/menusam/partner-billing/pkg/logger"
)

// Billing job names, also used as metric labels.
const (
	JobBillingClose     = "billing-close"
	JobBillingReminders = "billing-invoice-reminders"
	JobBillingRollover  = "billing-rollover"
)

type billingBatchRunner interface {
	CloseBillingPeriods(ctx context.Context) (int, error)
	SendInvoiceReminders(ctx context.Context) (int, error)
	RolloverExpiredPeriods(ctx context.Context) (int, error)
}

// BillingJobParams configure the billing batch jobs.
type BillingJobParams struct {
	Logger  *logger.Logger
	Billing billingBatchRunner
}

// NewBillingJobs returns the close, reminder and rollover jobs in the order they must run.
func NewBillingJobs(params BillingJobParams) ([]Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return []Job{
		&billingJob{name: JobBillingClose, countKey: "periods_closed", logg: params.Logger, run: params.Billing.CloseBillingPeriods},
		&billingJob{name: JobBillingReminders, countKey: "reminders_sent", logg: params.Logger, run: params.Billing.SendInvoiceReminders},
		&billingJob{name: JobBillingRollover, countKey: "periods_rolled_over", logg: params.Logger, run: params.Billing.RolloverExpiredPeriods},
	}, nil
}

type billingJob struct {
	name     string
	countKey string
	logg     *logger.Logger
	run      func(ctx context.Context) (int, error)
}

func (j *billingJob) Name() string { return j.name }

func (j *billingJob) Run(ctx context.Context) error {
	count, err := j.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithField(ctx, j.countKey, count), "billing batch complete")
	return nil
}
