// Package pubsub wraps the Pub/Sub v2 client for the two roles in this system: the outbox relay
// publishes billing events, the worker consumes notification and transaction events.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/logger"
)

// Role decides which resources Ping requires to exist.
type Role int

const (
	RolePublisher Role = iota
	RoleConsumer
)

var errProjectIDRequired = errors.New("gcp project id is required")

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and verifies the resources the role depends on.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		projectID:  gcp.ProjectID,
		cfg:        cfg,
		role:       role,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "resources", c.required()), "pubsub client initialized")
	}
	return c, nil
}

// required lists the fully qualified resources the role cannot run without.
func (c *Client) required() []string {
	var out []string
	add := func(kind, name string) {
		if full := qualify(c.projectID, kind, name); full != "" {
			out = append(out, full)
		}
	}
	switch c.role {
	case RoleConsumer:
		add("subscriptions", c.cfg.NotificationSubscription)
		add("subscriptions", c.cfg.TransactionSubscription)
	default:
		add("topics", c.cfg.BillingTopic)
		add("topics", c.cfg.NotificationTopic)
		add("topics", c.cfg.DocumentsTopic)
	}
	return out
}

// Ping confirms every required topic or subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	names := c.required()
	if len(names) == 0 {
		return errors.New("no pubsub resources configured")
	}
	for _, name := range names {
		var err error
		if strings.Contains(name, "/subscriptions/") {
			_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		} else {
			_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		}
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s does not exist", name)
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", name, err)
		}
	}
	return nil
}

// Publisher returns a shared handle per topic; handles batch internally and are flushed by Close.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := qualify(c.projectID, "topics", topic)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

// NotificationSubscription returns the subscriber feeding the notifier.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.subscriber(func(cfg config.PubSubConfig) string { return cfg.NotificationSubscription })
}

// TransactionSubscription returns the subscriber for bookings coming from the transaction service.
func (c *Client) TransactionSubscription() *pubsub.Subscriber {
	return c.subscriber(func(cfg config.PubSubConfig) string { return cfg.TransactionSubscription })
}

func (c *Client) subscriber(name func(config.PubSubConfig) string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := qualify(c.projectID, "subscriptions", name(c.cfg))
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

// qualify expands a short topic or subscription id to projects/<p>/<kind>/<id>. Names that are
// already fully qualified pass through.
func qualify(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
