package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
)

// Publisher disseminates a snapshot to whoever is listening for its tour.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Broker fans snapshots out to the subscribers of this process. Delivery is at most once:
// a subscriber whose queue is full misses the message and catches up by polling.
type Broker struct {
	registry *Registry
	metrics  *metrics.AvailabilityMetrics
	logg     *logger.Logger
}

// NewBroker builds a broker. Nil metrics disable counting.
func NewBroker(registry *Registry, m *metrics.AvailabilityMetrics, logg *logger.Logger) *Broker {
	if registry == nil {
		registry = NewRegistry()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Broker{registry: registry, metrics: m, logg: logg}
}

func (b *Broker) Subscribe(tourID uuid.UUID, sub *Subscriber) {
	if b.registry.Add(tourID, sub) {
		b.metrics.AddSubscribers(1)
	}
}

func (b *Broker) Unsubscribe(tourID uuid.UUID, sub *Subscriber) {
	if b.registry.Remove(tourID, sub) {
		b.metrics.AddSubscribers(-1)
	}
}

// UnsubscribeAll is called when a connection goes away.
func (b *Broker) UnsubscribeAll(sub *Subscriber) {
	if n := b.registry.RemoveAll(sub); n > 0 {
		b.metrics.AddSubscribers(-n)
	}
}

// Publish offers snap to every current subscriber of snap.TourID without blocking.
func (b *Broker) Publish(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	b.metrics.IncPublished()
	for _, sub := range b.registry.Subscribers(snap.TourID) {
		if sub.offer(snap) {
			b.metrics.IncDelivered()
			continue
		}
		b.metrics.IncDropped()
		b.logg.Debug(b.logg.WithFields(ctx, map[string]any{
			"tour_id":       snap.TourID.String(),
			"subscriber_id": sub.ID(),
		}), "availability.dropped")
	}
	return nil
}

func (b *Broker) Registry() *Registry {
	return b.registry
}
