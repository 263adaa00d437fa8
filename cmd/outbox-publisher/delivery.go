package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
	"github.com/menusam/partner-billing/pkg/metrics"
	"github.com/menusam/partner-billing/pkg/outbox"
	"github.com/menusam/partner-billing/pkg/outbox/registry"
)

// delivery is the result of one publish attempt for a claimed row.
type delivery struct {
	row     models.OutboxEvent
	topic   string
	env     outbox.PayloadEnvelope
	err     error
	dlqWhy  enums.OutboxDLQErrorReason
	settled time.Time
}

func (d delivery) outcome() string {
	switch {
	case d.err == nil:
		return metrics.RelayPublished
	case d.dlqWhy != "":
		return metrics.RelayDeadLettered
	default:
		return metrics.RelayRetried
	}
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	d := delivery{row: row}
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		d.err, d.dlqWhy = err, enums.OutboxDLQReasonNonRetryable
		return d
	}
	d.topic, d.env = resolved.Descriptor.Topic, resolved.Envelope

	err = r.publish(ctx, d.topic, buildMessage(row, resolved.Envelope))
	d.settled = r.now().UTC()
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
	case errors.As(err, &nonRetry):
		d.err, d.dlqWhy = err, enums.OutboxDLQReasonNonRetryable
	case row.AttemptCount+1 >= r.maxAttempts:
		d.err, d.dlqWhy = fmt.Errorf("max publish attempts reached: %w", err), enums.OutboxDLQReasonMaxAttempts
	default:
		d.err = err
	}
	return d
}

func (r *Relay) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := r.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := pub.Publish(ctx, msg)
	return err
}

// settle records the delivery on the row. Errors returned here abort the whole batch.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	ctx = r.logg.WithFields(ctx, d.fields())
	id := d.row.ID
	outcome := d.outcome()
	r.metrics.Observe(string(d.row.EventType), outcome)

	switch outcome {
	case metrics.RelayPublished:
		if err := r.store.MarkPublished(tx, id, d.settled); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		r.metrics.ObserveLag(string(d.row.EventType), d.settled.Sub(d.row.CreatedAt))
		r.logg.Info(ctx, "outbox event published")
	case metrics.RelayRetried:
		r.logg.WarnErr(ctx, "outbox publish failed, will retry", d.err)
		if err := r.store.RecordAttempt(tx, id, d.err); err != nil {
			return fmt.Errorf("record attempt %s: %w", id, err)
		}
	default:
		r.logg.WarnErr(ctx, "outbox event dead-lettered", d.err)
		if err := r.dlq.Bury(tx, d.row, d.dlqWhy, d.err, r.now().UTC()); err != nil {
			return fmt.Errorf("dead-letter %s: %w", id, err)
		}
		if err := r.store.Exhaust(tx, id, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("exhaust %s: %w", id, err)
		}
	}
	return nil
}

func (d delivery) fields() map[string]any {
	f := map[string]any{
		"outbox_id":      d.row.ID.String(),
		"event_type":     d.row.EventType,
		"aggregate_type": d.row.AggregateType,
		"aggregate_id":   d.row.AggregateID.String(),
		"attempt_count":  d.row.AttemptCount,
	}
	if d.topic != "" {
		f["topic"] = d.topic
	}
	if d.env.EventID != "" {
		f["event_id"] = d.env.EventID
	}
	if d.dlqWhy != "" {
		f["dlq_reason"] = d.dlqWhy
	}
	return f
}

// buildMessage forwards the stored envelope as the body. Attributes let subscribers filter
// without decoding, e.g. the notifier routing by establishment.
func buildMessage(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a := env.Actor; a != nil {
		if a.EstablishmentID != nil {
			attrs["establishment_id"] = a.EstablishmentID.String()
		}
		if a.Role != "" {
			attrs["actor_role"] = a.Role
		}
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}
