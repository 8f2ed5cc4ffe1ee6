package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handler processes one message payload. Returning an error nacks the message.
type Handler func(ctx context.Context, data []byte, attrs map[string]string) error

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.EventsConfig
	logg      *logger.Logger

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// NewClient creates a Pub/Sub v2 client for the seat-change topic and subscription.
// When requireSubscription is set the configured subscription must already exist.
func NewClient(ctx context.Context, cfg config.EventsConfig, requireSubscription bool, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.GCPProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}

	psClient, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  cfg.GCPProjectID,
		cfg:        cfg,
		logg:       logg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if requireSubscription {
		if err := c.ensureSubscriptionExists(ctx, cfg.PubSubSubscription); err != nil {
			_ = psClient.Close()
			return nil, err
		}
	}

	logg.Info(ctx, "pubsub client initialized")
	return c, nil
}

func (c *Client) ensureSubscriptionExists(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription %q does not exist", name)
		}
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	fullName := resourceName(c.projectID, "topics", topic)
	if fullName == "" {
		return nil, fmt.Errorf("topic %q not configured", topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p, nil
	}
	p := c.client.Publisher(fullName)
	c.publishers[fullName] = p
	return p, nil
}

// Publish sends data to topic and waits for the server ack.
func (c *Client) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if c == nil || c.client == nil {
		return "", errNotInitialized
	}
	p, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	serverID, err := p.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return serverID, nil
}

// PublishSeatsTopic publishes on the configured seat-change topic.
func (c *Client) PublishSeatsTopic(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return c.Publish(ctx, c.cfg.PubSubTopic, data, attrs)
}

// Receive pulls from subscription until ctx is cancelled, acking handled messages.
func (c *Client) Receive(ctx context.Context, subscription string, handle Handler) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	fullName := resourceName(c.projectID, "subscriptions", subscription)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", subscription)
	}
	ctx = c.logg.WithField(ctx, "subscription", subscription)
	c.logg.Info(ctx, "pubsub receive started")

	err := c.client.Subscriber(fullName).Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		msgCtx = c.logg.WithField(msgCtx, "message_id", msg.ID)
		if err := handle(msgCtx, msg.Data, msg.Attributes); err != nil {
			c.logg.Error(msgCtx, "pubsub message handler failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive %s: %w", subscription, err)
	}
	return nil
}

// ReceiveSeatsSubscription pulls from the configured seat-change subscription.
func (c *Client) ReceiveSeatsSubscription(ctx context.Context, handle Handler) error {
	return c.Receive(ctx, c.cfg.PubSubSubscription, handle)
}

// Ping verifies Pub/Sub connectivity by checking the configured subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.ensureSubscriptionExists(ctx, c.cfg.PubSubSubscription)
}

// Close flushes publishers and releases the client.
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

// resourceName expands an ID into projects/<p>/<kind>/<id>, passing full names through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
