package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// PushSource opens a push subscription for one tour.
type PushSource interface {
	Subscribe(ctx context.Context, tourID uuid.UUID) (PushStream, error)
}

// PushStream yields snapshots until it fails or is closed.
type PushStream interface {
	Next(ctx context.Context) (Snapshot, error)
	Close() error
}

// WatcherOptions configures a Watcher. Push may be nil for poll-only operation.
type WatcherOptions struct {
	TourID       uuid.UUID
	Push         PushSource
	Fetcher      Fetcher
	PollInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	Notify       Notifier
	Metrics      *metrics.AvailabilityMetrics
	Logger       *logger.Logger
}

// Watcher is the client view of one open tour: a push subscription and a poller feeding
// the same reconciler. Push failures are never reported; polling keeps the cache correct.
type Watcher struct {
	opts       WatcherOptions
	reconciler *Reconciler
	poller     *Poller
	logg       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stream PushStream
}

func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.TourID == uuid.Nil {
		return nil, fmt.Errorf("tour id required")
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	reconciler := NewReconciler(opts.TourID, opts.Notify)
	poller, err := NewPoller(opts.TourID, opts.Fetcher, opts.PollInterval, reconciler, opts.Metrics, logg)
	if err != nil {
		return nil, err
	}
	return &Watcher{opts: opts, reconciler: reconciler, poller: poller, logg: logg}, nil
}

// Open starts polling and, when a push source is configured, the push loop.
func (w *Watcher) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return errors.New("watcher already open")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.poller.Run(runCtx)
	}()
	if w.opts.Push != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pushLoop(runCtx)
		}()
	}
	return nil
}

// Close unsubscribes and stops the poll timer. It waits for both loops to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	cancel := w.cancel
	stream := w.stream
	w.cancel = nil
	w.stream = nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	var err error
	if stream != nil {
		err = multierr.Append(err, stream.Close())
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) Reconciler() *Reconciler { return w.reconciler }

func (w *Watcher) Select(date types.Date, travelers int) Selection {
	return w.reconciler.Select(date, travelers)
}

func (w *Watcher) Selection() (Selection, bool) {
	return w.reconciler.Selection()
}

func (w *Watcher) Departures() []Departure {
	return w.reconciler.Departures()
}

func (w *Watcher) pushLoop(ctx context.Context) {
	ctx = w.logg.WithTourID(ctx, w.opts.TourID.String())
	backoff := w.opts.MinBackoff
	for ctx.Err() == nil {
		stream, err := w.opts.Push.Subscribe(ctx, w.opts.TourID)
		if err != nil {
			w.logg.Debug(w.logg.WithField(ctx, "error", err.Error()), "availability.push_unavailable")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, w.opts.MaxBackoff)
			continue
		}
		backoff = w.opts.MinBackoff
		if !w.setStream(stream) {
			_ = stream.Close()
			return
		}
		w.consume(ctx, stream)
		w.clearStream(stream)
		_ = stream.Close()
	}
}

func (w *Watcher) consume(ctx context.Context, stream PushStream) {
	for {
		snap, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logg.Debug(w.logg.WithField(ctx, "error", err.Error()), "availability.push_dropped")
			}
			return
		}
		w.opts.Metrics.IncReconcile(SourcePush)
		w.reconciler.Reconcile(snap)
	}
}

func (w *Watcher) setStream(stream PushStream) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return false
	}
	w.stream = stream
	return true
}

func (w *Watcher) clearStream(stream PushStream) {
	w.mu.Lock()
	if w.stream == stream {
		w.stream = nil
	}
	w.mu.Unlock()
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
