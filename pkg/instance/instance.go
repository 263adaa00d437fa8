package instance

import "github.com/menusam/partner-billing/pkg/env"

// GetID returns the process instance identifier used in startup logs.
// Heroku-style DYNO wins over WORKER_ID.
func GetID() string {
	return env.First("local", "DYNO", "WORKER_ID")
}
