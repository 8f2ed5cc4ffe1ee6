package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
)

// Reconcile sources, as labelled in metrics.
const (
	SourcePush = "push"
	SourcePoll = "poll"
)

// Fetcher reads the authoritative snapshot for a tour.
type Fetcher interface {
	FetchAvailability(ctx context.Context, tourID uuid.UUID) (Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, tourID uuid.UUID) (Snapshot, error)

func (f FetcherFunc) FetchAvailability(ctx context.Context, tourID uuid.UUID) (Snapshot, error) {
	return f(ctx, tourID)
}

// Poller re-fetches a tour's snapshot on a fixed interval and reconciles it.
type Poller struct {
	tourID     uuid.UUID
	fetcher    Fetcher
	interval   time.Duration
	reconciler *Reconciler
	metrics    *metrics.AvailabilityMetrics
	logg       *logger.Logger
}

func NewPoller(tourID uuid.UUID, fetcher Fetcher, interval time.Duration, reconciler *Reconciler, m *metrics.AvailabilityMetrics, logg *logger.Logger) (*Poller, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("availability fetcher required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Poller{tourID: tourID, fetcher: fetcher, interval: interval, reconciler: reconciler, metrics: m, logg: logg}, nil
}

// Run polls once immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches and reconciles a single snapshot. Fetch failures are logged and the
// next tick tries again.
func (p *Poller) PollOnce(ctx context.Context) (Result, error) {
	snap, err := p.fetcher.FetchAvailability(ctx, p.tourID)
	if err != nil {
		if ctx.Err() == nil {
			p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
				"tour_id": p.tourID.String(),
				"error":   err.Error(),
			}), "availability.poll_failed")
		}
		return Result{}, err
	}
	p.metrics.IncReconcile(SourcePoll)
	return p.reconciler.Reconcile(snap), nil
}
