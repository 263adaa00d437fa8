package config

const (
	EnvPrefix = "SAM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "SAM_APP_ENV"
	EnvPort     = "SAM_APP_PORT"
	EnvLogLevel = "SAM_LOG_LEVEL"

	EnvDBDSN  = "SAM_DB_DSN"
	EnvDBHost = "SAM_DB_HOST"
	EnvDBUser = "SAM_DB_USER"
	EnvDBName = "SAM_DB_NAME"

	EnvRedisURL = "SAM_REDIS_URL"

	EnvJWTSecret = "SAM_JWT_SECRET"
	EnvJWTIssuer = "SAM_JWT_ISSUER"

	EnvGCPProjectID = "SAM_GCP_PROJECT_ID"

	EnvPubSubNotificationSub = "SAM_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubTransactionSub  = "SAM_PUBSUB_TRANSACTION_SUBSCRIPTION"

	EnvBillingDeadlineDays     = "SAM_BILLING_CALL_TO_INVOICE_DEADLINE_DAYS"
	EnvBillingPaymentDelayDays = "SAM_BILLING_PAYMENT_DELAY_DAYS"
	EnvBillingFirstReminderDay = "SAM_BILLING_FIRST_REMINDER_DAY"
	EnvBillingFinalReminderDay = "SAM_BILLING_FINAL_REMINDER_DAY"
	EnvBillingTimezone         = "SAM_BILLING_TIMEZONE"

	EnvCronInterval  = "SAM_CRON_INTERVAL"
	EnvCronLockTTL   = "SAM_CRON_LOCK_TTL"
	EnvCronPurgeSize = "SAM_CRON_PURGE_BATCH_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
