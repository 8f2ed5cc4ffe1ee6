package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/kafka"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/pubsub"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// EventSeatsChanged is the event type attribute on the bus.
const EventSeatsChanged = "tour.seats_changed"

// SeatsChanged says the seat counters of a tour moved on the listed dates.
type SeatsChanged struct {
	EventID    uuid.UUID    `json:"event_id"`
	TourID     uuid.UUID    `json:"tour_id"`
	Dates      []types.Date `json:"dates"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewSeatsChanged stamps a new event.
func NewSeatsChanged(tourID uuid.UUID, dates []types.Date, at time.Time) SeatsChanged {
	return SeatsChanged{EventID: uuid.New(), TourID: tourID, Dates: dates, OccurredAt: at.UTC()}
}

func (e SeatsChanged) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeSeatsChanged(data []byte) (SeatsChanged, error) {
	var evt SeatsChanged
	if err := json.Unmarshal(data, &evt); err != nil {
		return SeatsChanged{}, fmt.Errorf("decode seats changed: %w", err)
	}
	if evt.TourID == uuid.Nil {
		return SeatsChanged{}, fmt.Errorf("seats changed event without tour_id")
	}
	return evt, nil
}

// ChangeNotifier announces committed seat changes.
type ChangeNotifier interface {
	SeatsChanged(ctx context.Context, evt SeatsChanged) error
}

// InProcessNotifier republishes directly when no event bus is configured.
type InProcessNotifier struct {
	Service Service
}

func (n InProcessNotifier) SeatsChanged(ctx context.Context, evt SeatsChanged) error {
	return n.Service.NotifyChanged(ctx, evt.TourID)
}

type kafkaPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaNotifier writes events keyed by tour id, so one tour's events stay ordered.
type KafkaNotifier struct {
	Producer kafkaPublisher
}

func (n KafkaNotifier) SeatsChanged(ctx context.Context, evt SeatsChanged) error {
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	return n.Producer.Publish(ctx, []byte(evt.TourID.String()), payload)
}

type pubsubPublisher interface {
	PublishSeatsTopic(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubNotifier publishes events to the seats topic with the tour id as an attribute.
type PubSubNotifier struct {
	Client pubsubPublisher
}

func (n PubSubNotifier) SeatsChanged(ctx context.Context, evt SeatsChanged) error {
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	_, err = n.Client.PublishSeatsTopic(ctx, payload, map[string]string{
		"event_type": EventSeatsChanged,
		"tour_id":    evt.TourID.String(),
	})
	return err
}

// HandleEvent republishes the tour named by a raw SeatsChanged payload. Malformed payloads
// are logged and acknowledged so they are not redelivered forever.
func HandleEvent(ctx context.Context, svc Service, logg *logger.Logger, data []byte) error {
	evt, err := DecodeSeatsChanged(data)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "availability.event_malformed")
		return nil
	}
	return svc.NotifyChanged(logg.WithTourID(ctx, evt.TourID.String()), evt.TourID)
}

// KafkaHandler adapts HandleEvent to the kafka consumer.
func KafkaHandler(svc Service, logg *logger.Logger) kafka.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(ctx context.Context, _, value []byte) error {
		return HandleEvent(ctx, svc, logg, value)
	}
}

// PubSubHandler adapts HandleEvent to Pub/Sub deliveries.
func PubSubHandler(svc Service, logg *logger.Logger) pubsub.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(ctx context.Context, data []byte, _ map[string]string) error {
		return HandleEvent(ctx, svc, logg, data)
	}
}
