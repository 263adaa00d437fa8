package redis

import "strings"

// Every key lives under the service namespace so the billing service can share a Redis instance.
const keyNamespace = "sam"

const (
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

// IdempotencyKey returns sam:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

// LockKey returns sam:lock:<name>.
func (c *Client) LockKey(name string) string {
	return joinKey(lockPrefix, name)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
