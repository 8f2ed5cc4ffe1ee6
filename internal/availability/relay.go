package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tourbook-backend/pkg/instance"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tourbook-backend/pkg/redis"
)

// relayEnvelope is the payload on the shared redis channel.
type relayEnvelope struct {
	Origin   string   `json:"origin"`
	Snapshot Snapshot `json:"snapshot"`
}

const (
	relayMinBackoff = time.Second
	relayMaxBackoff = 30 * time.Second
)

type messageStream interface {
	Channel(opts ...goredis.ChannelOption) <-chan *goredis.Message
	Close() error
}

// Relay spreads snapshots across API nodes. Publish delivers locally, then forwards on
// redis; Run feeds snapshots from other nodes into the local broker.
type Relay struct {
	local   *Broker
	channel string
	origin  string
	logg    *logger.Logger

	publish   func(ctx context.Context, channel string, payload []byte) (int64, error)
	subscribe func(ctx context.Context, channel string) (messageStream, error)

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRelay builds a relay over client. channel is the logical name; the redis key is
// namespaced by the client.
func NewRelay(local *Broker, client *pkgredis.Client, channel string, logg *logger.Logger) (*Relay, error) {
	if local == nil {
		return nil, fmt.Errorf("local broker required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Relay{
		local:   local,
		channel: client.ChannelName(channel),
		origin:  instance.GetID(),
		logg:    logg,
		publish: client.Publish,
		subscribe: func(ctx context.Context, ch string) (messageStream, error) {
			return client.Subscribe(ctx, ch)
		},
	}, nil
}

// Publish delivers snap to this node's subscribers and forwards it to the other nodes. A
// forwarding failure is logged; the local delivery already happened.
func (r *Relay) Publish(ctx context.Context, snap Snapshot) error {
	if err := r.local.Publish(ctx, snap); err != nil {
		return err
	}
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if _, err := r.publish(ctx, r.channel, payload); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"tour_id": snap.TourID.String(),
			"error":   err.Error(),
		}), "availability.relay_forward_failed")
	}
	return nil
}

// Run relays snapshots from other nodes until ctx is cancelled. A failed subscription or
// a dropped channel is logged and retried with backoff; meanwhile this node's watchers
// converge through polling. Run only returns once ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	minWait, maxWait := r.minBackoff, r.maxBackoff
	if minWait <= 0 {
		minWait = relayMinBackoff
	}
	if maxWait < minWait {
		maxWait = relayMaxBackoff
	}
	ctx = r.logg.WithField(ctx, "channel", r.channel)

	backoff := minWait
	for ctx.Err() == nil {
		subscribed, err := r.consume(ctx)
		if ctx.Err() != nil {
			break
		}
		if subscribed {
			backoff = minWait
		}
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"error":      err.Error(),
			"backoff_ms": backoff.Milliseconds(),
		}), "availability.relay_unavailable")
		if !sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxWait)
	}
	return nil
}

// consume holds one subscription. subscribed reports whether the subscribe call worked.
func (r *Relay) consume(ctx context.Context) (subscribed bool, err error) {
	stream, err := r.subscribe(ctx, r.channel)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	defer stream.Close()

	r.logg.Info(ctx, "availability relay subscribed")
	messages := stream.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return true, fmt.Errorf("relay channel %s closed", r.channel)
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "availability.relay_bad_payload")
		return
	}
	if env.Origin == r.origin {
		return
	}
	if err := r.local.Publish(ctx, env.Snapshot); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"origin": env.Origin,
			"error":  err.Error(),
		}), "availability.relay_rejected")
	}
}
