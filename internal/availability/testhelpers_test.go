package availability

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

var (
	tourT1    = uuid.MustParse("6f1c2d4e-0000-4000-8000-000000000001")
	julyFirst = types.MustParseDate("2024-07-01")
	julyTenth = types.MustParseDate("2024-07-10")
)

func snapshotOf(tourID uuid.UUID, deps ...Departure) Snapshot {
	return Snapshot{TourID: tourID, Departures: deps}
}

func dep(date types.Date, available, total int) Departure {
	return Departure{Date: date, AvailableSeats: available, TotalSeats: total}
}

func newTestMetrics(t *testing.T) (*metrics.AvailabilityMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return metrics.NewAvailabilityMetrics(reg), reg
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range family.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}
	return 0
}

// switchableFetcher returns whatever snapshot was last set.
type switchableFetcher struct {
	mu    sync.Mutex
	snap  Snapshot
	err   error
	calls int
}

func (f *switchableFetcher) set(snap Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

func (f *switchableFetcher) FetchAvailability(_ context.Context, _ uuid.UUID) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (p *recordingPublisher) Publish(_ context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return nil
}
