package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

// DepartureSource reads a tour's stored departures.
type DepartureSource interface {
	Departures(ctx context.Context, tourID uuid.UUID) ([]models.TourDeparture, error)
}

// Service serves snapshots and publishes them when seats change.
type Service interface {
	Snapshot(ctx context.Context, tourID uuid.UUID) (Snapshot, error)
	NotifyChanged(ctx context.Context, tourID uuid.UUID) error
}

type service struct {
	source    DepartureSource
	publisher Publisher
	now       func() time.Time
	logg      *logger.Logger
}

// NewService builds the availability service. publisher is the local broker on a single
// node or a Relay when several API nodes share redis.
func NewService(source DepartureSource, publisher Publisher, clock func() time.Time, logg *logger.Logger) (Service, error) {
	if source == nil {
		return nil, fmt.Errorf("departure source required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("availability publisher required")
	}
	if clock == nil {
		clock = time.Now
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{source: source, publisher: publisher, now: clock, logg: logg}, nil
}

func (s *service) Snapshot(ctx context.Context, tourID uuid.UUID) (Snapshot, error) {
	rows, err := s.source.Departures(ctx, tourID)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotFromRows(tourID, rows, s.now()), nil
}

// NotifyChanged loads a fresh snapshot and publishes it. Subscribers always receive the
// full picture, never a delta.
func (s *service) NotifyChanged(ctx context.Context, tourID uuid.UUID) error {
	snap, err := s.Snapshot(ctx, tourID)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, snap); err != nil {
		return err
	}
	s.logg.Debug(s.logg.WithTourID(ctx, tourID.String()), "availability.published")
	return nil
}
