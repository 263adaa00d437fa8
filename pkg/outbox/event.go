package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

// EnvelopeVersion is the schema version stamped on every payload written by this service.
const EnvelopeVersion = 1

// ActorRef identifies who triggered a billing transition. The scheduler emits with a nil user
// and the system role; partner actions carry the establishment.
type ActorRef struct {
	UserID          uuid.UUID  `json:"userId"`
	EstablishmentID *uuid.UUID `json:"establishmentId,omitempty"`
	Role            string     `json:"role,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and, unchanged, in the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is a side effect of a billing transition. It is persisted in the same transaction as
// the transition and delivered after commit by the relay.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
