package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/idempotency"
	"github.com/menusam/partner-billing/pkg/outbox/registry"
)

const billingNotificationConsumer = "billing-notifications"

type gateway interface {
	NotifyPartner(ctx context.Context, input PartnerNotification) error
	EmitAdminAlert(ctx context.Context, input AdminAlert) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns billing domain events from the notifications topic into
// partner notifications and admin alerts.
type Consumer struct {
	gateway      gateway
	subscription receiver
	guard        *idempotency.Guard
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a billing notification consumer.
func NewConsumer(gw gateway, subscription receiver, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	if gw == nil {
		return nil, fmt.Errorf("notifications gateway required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		gateway:      gw,
		subscription: subscription,
		guard:        guard,
		decoders:     registry.NewDecoderRegistry(registry.DestinationNotifications),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if !c.decoders.Handles(eventType) {
		c.logg.Debug(logCtx, "skipping event without notification")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	ticket, state, err := c.guard.Claim(ctx, billingNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Processed:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Debug(logCtx, "event held by another delivery")
		return processResult{nack: true}
	}

	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	payload, err := c.decoders.Decode(eventType, version, envelope.Data)
	var message renderedMessage
	if err == nil {
		message, err = render(payload)
	}
	if err != nil {
		// No redelivery can fix the payload; settle it so it stops coming back.
		c.logg.Error(logCtx, "dropping undeliverable notification", err)
		c.commit(logCtx, ticket)
		return processResult{ack: true}
	}

	if err := c.deliver(ctx, eventID, message); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		if relErr := ticket.Release(ctx); relErr != nil {
			c.logg.WarnErr(logCtx, "idempotency release failed", relErr)
		}
		return processResult{nack: true}
	}

	// Delivered; if the commit fails a redelivery after the lease lapses may notify twice.
	c.commit(logCtx, ticket)
	c.logg.Info(logCtx, "billing notification delivered")
	return processResult{ack: true}
}

func (c *Consumer) commit(ctx context.Context, ticket idempotency.Ticket) {
	if err := ticket.Commit(ctx); err != nil {
		c.logg.WarnErr(ctx, "idempotency commit failed", err)
	}
}

func (c *Consumer) deliver(ctx context.Context, eventID uuid.UUID, message renderedMessage) error {
	if message.admin {
		return c.gateway.EmitAdminAlert(ctx, AdminAlert{
			EventID:  eventID,
			Type:     message.alertType,
			Category: message.category,
			Title:    message.title,
			Body:     message.body,
			Data:     message.data,
		})
	}
	return c.gateway.NotifyPartner(ctx, PartnerNotification{
		EventID:         eventID,
		EstablishmentID: message.establishmentID,
		Category:        message.category,
		Title:           message.title,
		Body:            message.body,
		Data:            message.data,
	})
}
