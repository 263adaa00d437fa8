package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type broker interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// topicPublisher blocks until the server acknowledges the message.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) (string, error)
}

type topicPublishers func(topic string) topicPublisher

func brokerTopics(b broker) topicPublishers {
	return func(topic string) topicPublisher {
		if p := b.Publisher(topic); p != nil {
			return gcpTopic{p}
		}
		return nil
	}
}

type gcpTopic struct {
	p *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	return t.p.Publish(ctx, msg).Get(ctx)
}
