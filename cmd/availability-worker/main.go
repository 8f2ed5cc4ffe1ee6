package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/cron"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/instance"
	"github.com/angelmondragon/tourbook-backend/pkg/kafka"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/migrate"
	"github.com/angelmondragon/tourbook-backend/pkg/pubsub"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

// The worker turns seat-change events into snapshots on the redis relay channel, where
// every API node picks them up. A periodic resync republishes recently changed tours in
// case an event was lost.
func main() {
	logg := logger.New(logger.Options{ServiceName: "availability-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "availability-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "availability worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "availability worker shut down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"driver":   cfg.Events.Driver,
		"instance": instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	tourService, err := tours.NewService(tours.NewRepository(dbClient.DB()), nil)
	if err != nil {
		return err
	}
	relay, err := availability.NewRelay(availability.NewBroker(nil, nil, logg), redisClient, cfg.Availability.RelayChannel, logg)
	if err != nil {
		return err
	}
	service, err := availability.NewService(tourService, relay, nil, logg)
	if err != nil {
		return err
	}

	resync, err := cron.NewDepartureResyncJob(cron.DepartureResyncJobParams{
		Logger:       logg,
		Tours:        tourService,
		Availability: service,
		Window:       cfg.Availability.ResyncWindow,
	})
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), 0)
	if err != nil {
		return err
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{resync},
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Availability.ResyncInterval,
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := scheduler.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	switch cfg.Events.Driver {
	case config.EventsDriverKafka:
		consumer, consumerErr := kafka.NewConsumer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, cfg.Events.KafkaGroupID, logg)
		if consumerErr != nil {
			return consumerErr
		}
		defer func() { err = multierr.Append(err, consumer.Close()) }()
		group.Go(func() error { return consumer.Run(groupCtx, availability.KafkaHandler(service, logg)) })
	case config.EventsDriverPubSub:
		client, clientErr := pubsub.NewClient(ctx, cfg.Events, true, logg)
		if clientErr != nil {
			return clientErr
		}
		defer func() { err = multierr.Append(err, client.Close()) }()
		group.Go(func() error { return client.ReceiveSeatsSubscription(groupCtx, availability.PubSubHandler(service, logg)) })
	default:
		logg.Warn(ctx, "no event bus configured; relying on periodic resync")
	}

	logg.Info(ctx, "availability worker started")
	return group.Wait()
}
