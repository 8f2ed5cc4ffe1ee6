package availability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

type fakeStream struct {
	ch     chan *goredis.Message
	closed bool
}

func (f *fakeStream) Channel(...goredis.ChannelOption) <-chan *goredis.Message { return f.ch }

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func newTestRelay(broker *Broker, origin string) (*Relay, *[][]byte) {
	var sent [][]byte
	r := &Relay{
		local:   broker,
		channel: "tb:channel:availability",
		origin:  origin,
		logg:    logger.Nop(),
		publish: func(_ context.Context, _ string, payload []byte) (int64, error) {
			sent = append(sent, payload)
			return 1, nil
		},
	}
	return r, &sent
}

func TestRelayPublishDeliversLocallyAndForwards(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	sub := NewSubscriber("a", 2)
	broker.Subscribe(tourT1, sub)
	relay, sent := newTestRelay(broker, "node-a")

	require.NoError(t, relay.Publish(context.Background(), snapshotOf(tourT1, dep(julyFirst, 4, 10))))
	assert.Len(t, sub.Updates(), 1)
	require.Len(t, *sent, 1)

	var env relayEnvelope
	require.NoError(t, json.Unmarshal((*sent)[0], &env))
	assert.Equal(t, "node-a", env.Origin)
	assert.Equal(t, tourT1, env.Snapshot.TourID)
}

func TestRelayForwardFailureIsNotReturned(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	relay, _ := newTestRelay(broker, "node-a")
	relay.publish = func(context.Context, string, []byte) (int64, error) { return 0, errors.New("redis down") }
	require.NoError(t, relay.Publish(context.Background(), snapshotOf(tourT1, dep(julyFirst, 4, 10))))
}

func TestRelaySkipsItsOwnEcho(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	sub := NewSubscriber("a", 4)
	broker.Subscribe(tourT1, sub)
	relay, _ := newTestRelay(broker, "node-a")

	own, _ := json.Marshal(relayEnvelope{Origin: "node-a", Snapshot: snapshotOf(tourT1, dep(julyFirst, 1, 10))})
	relay.handle(context.Background(), own)
	assert.Len(t, sub.Updates(), 0)

	foreign, _ := json.Marshal(relayEnvelope{Origin: "node-b", Snapshot: snapshotOf(tourT1, dep(julyFirst, 1, 10))})
	relay.handle(context.Background(), foreign)
	assert.Len(t, sub.Updates(), 1)

	relay.handle(context.Background(), []byte("not json"))
	assert.Len(t, sub.Updates(), 1)
}

func TestRelayRunFeedsLocalBroker(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	sub := NewSubscriber("a", 4)
	broker.Subscribe(tourT1, sub)
	relay, _ := newTestRelay(broker, "node-a")
	stream := &fakeStream{ch: make(chan *goredis.Message, 1)}
	relay.subscribe = func(context.Context, string) (messageStream, error) { return stream, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	payload, _ := json.Marshal(relayEnvelope{Origin: "node-b", Snapshot: snapshotOf(tourT1, dep(julyFirst, 3, 10))})
	stream.ch <- &goredis.Message{Channel: relay.channel, Payload: string(payload)}

	select {
	case snap := <-sub.Updates():
		assert.Equal(t, 3, snap.Departures[0].AvailableSeats)
	case <-time.After(time.Second):
		t.Fatal("relayed snapshot not delivered")
	}

	cancel()
	require.NoError(t, <-done)
	assert.True(t, stream.closed)
}

func TestRelayRunRetriesFailedSubscribe(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	sub := NewSubscriber("a", 4)
	broker.Subscribe(tourT1, sub)
	relay, _ := newTestRelay(broker, "node-a")
	relay.minBackoff = time.Millisecond
	relay.maxBackoff = 4 * time.Millisecond

	stream := &fakeStream{ch: make(chan *goredis.Message, 1)}
	attempts := make(chan int, 8)
	calls := 0
	relay.subscribe = func(context.Context, string) (messageStream, error) {
		calls++
		attempts <- calls
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return stream, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	payload, _ := json.Marshal(relayEnvelope{Origin: "node-b", Snapshot: snapshotOf(tourT1, dep(julyFirst, 4, 10))})
	stream.ch <- &goredis.Message{Channel: relay.channel, Payload: string(payload)}

	select {
	case snap := <-sub.Updates():
		assert.Equal(t, 4, snap.Departures[0].AvailableSeats)
	case <-time.After(time.Second):
		t.Fatal("relay did not recover after failed subscribes")
	}
	assert.Len(t, attempts, 3)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "relay failures must not stop the server")
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestRelayRunReturnsNilWhenCancelledDuringBackoff(t *testing.T) {
	relay, _ := newTestRelay(NewBroker(nil, nil, nil), "node-a")
	relay.minBackoff = time.Hour
	relay.subscribe = func(context.Context, string) (messageStream, error) {
		return nil, errors.New("redis down")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, relay.Run(ctx))
}
