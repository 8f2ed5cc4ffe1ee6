package storefront

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

type loaderFunc func(ctx context.Context, tourID uuid.UUID) (availability.Snapshot, error)

func (f loaderFunc) Snapshot(ctx context.Context, tourID uuid.UUID) (availability.Snapshot, error) {
	return f(ctx, tourID)
}

func snapshot(tourID uuid.UUID, seats int) availability.Snapshot {
	return availability.Snapshot{
		TourID:      tourID,
		Departures:  []availability.Departure{{Date: types.MustParseDate("2024-07-01"), AvailableSeats: seats, TotalSeats: 10}},
		GeneratedAt: time.Now().UTC(),
	}
}

func TestPushSourceJoinsAndStreams(t *testing.T) {
	tourID := uuid.New()
	broker := availability.NewBroker(nil, nil, nil)
	hub := availability.NewHub(broker, loaderFunc(func(ctx context.Context, id uuid.UUID) (availability.Snapshot, error) {
		return snapshot(id, 5), nil
	}), availability.HubOptions{}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.DialAvailability(ctx, tourID)
	require.NoError(t, err)

	primed, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, primed.Departures[0].AvailableSeats)

	require.NoError(t, broker.Publish(ctx, snapshot(tourID, 2)))
	pushed, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed.Departures[0].AvailableSeats)

	require.NoError(t, stream.Close())
	require.Eventually(t, func() bool { return broker.Registry().Count(tourID) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestPushStreamNextStopsOnContextCancel(t *testing.T) {
	broker := availability.NewBroker(nil, nil, nil)
	srv := httptest.NewServer(availability.NewHub(broker, nil, availability.HubOptions{}, nil))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	stream, err := client.PushSource().Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPushSourceDialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	client, err := NewClient(url)
	require.NoError(t, err)
	_, err = client.PushSource().Subscribe(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	client, err := NewClient("https://api.example.com/base/")
	require.NoError(t, err)
	got, err := client.PushSource().socketURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/base/ws/availability", got)
}

func TestWatcherDrivenBySDK(t *testing.T) {
	tourID := uuid.New()
	broker := availability.NewBroker(nil, nil, nil)
	hub := availability.NewHub(broker, loaderFunc(func(ctx context.Context, id uuid.UUID) (availability.Snapshot, error) {
		return snapshot(id, 5), nil
	}), availability.HubOptions{}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	watcher, err := availability.NewWatcher(availability.WatcherOptions{
		TourID:       tourID,
		Push:         client.PushSource(),
		Fetcher:      availability.FetcherFunc(func(ctx context.Context, id uuid.UUID) (availability.Snapshot, error) { return snapshot(id, 5), nil }),
		PollInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Open(context.Background()))
	defer func() { _ = watcher.Close() }()

	require.Eventually(t, func() bool { return broker.Registry().Count(tourID) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(watcher.Departures()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, watcher.Select(types.MustParseDate("2024-07-01"), 3).Valid)
	require.NoError(t, broker.Publish(context.Background(), snapshot(tourID, 2)))

	require.Eventually(t, func() bool {
		sel, ok := watcher.Selection()
		return ok && !sel.Valid
	}, 2*time.Second, 5*time.Millisecond)
}
