package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const (
	defaultResyncWindow = 5 * time.Minute
	defaultResyncLimit  = 200
)

type changedTourLister interface {
	RecentlyChanged(ctx context.Context, window time.Duration, limit int) ([]uuid.UUID, error)
}

type availabilityNotifier interface {
	NotifyChanged(ctx context.Context, tourID uuid.UUID) error
}

type DepartureResyncJobParams struct {
	Logger       *logger.Logger
	Tours        changedTourLister
	Availability availabilityNotifier
	Window       time.Duration
	Limit        int
}

// NewDepartureResyncJob republishes snapshots for tours whose seats moved recently. It
// covers seat-change events lost on the bus; subscribers treat the repeat as a no-op.
func NewDepartureResyncJob(params DepartureResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tours == nil {
		return nil, fmt.Errorf("tour lister required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability service required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultResyncWindow
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultResyncLimit
	}
	return &departureResyncJob{
		logg:   params.Logger,
		tours:  params.Tours,
		notify: params.Availability,
		window: window,
		limit:  limit,
	}, nil
}

type departureResyncJob struct {
	logg   *logger.Logger
	tours  changedTourLister
	notify availabilityNotifier
	window time.Duration
	limit  int
}

func (j *departureResyncJob) Name() string { return "departure-resync" }

func (j *departureResyncJob) Run(ctx context.Context) error {
	ids, err := j.tours.RecentlyChanged(ctx, j.window, j.limit)
	if err != nil {
		return fmt.Errorf("list changed tours: %w", err)
	}
	var errs error
	published := 0
	for _, id := range ids {
		if err := j.notify.NotifyChanged(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tour %s: %w", id, err))
			continue
		}
		published++
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"changed":   len(ids),
		"published": published,
	}), "cron.resync_complete")
	return errs
}
