package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tourbook-backend/api/controllers"
	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/api/routes"
	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/instance"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/migrate"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	// redis is optional on a single node: without it coupons are uncached, rate limits are
	// per process and snapshots are not relayed.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(ctx, "redis not configured; running single-node")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	coupons, err := buildCoupons(ctx, cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	tourRepo := tours.NewRepository(dbClient.DB())
	tourService, err := tours.NewService(tourRepo, nil)
	if err != nil {
		return err
	}

	broker := availability.NewBroker(nil, metrics.NewAvailabilityMetrics(registry), logg)
	var publisher availability.Publisher = broker
	var relay *availability.Relay
	if redisClient != nil {
		relay, err = availability.NewRelay(broker, redisClient, cfg.Availability.RelayChannel, logg)
		if err != nil {
			return err
		}
		publisher = relay
	}
	availabilityService, err := availability.NewService(tourService, publisher, nil, logg)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg.Events, availabilityService, logg)
	if err != nil {
		return err
	}
	closers = append(closers, closeNotifier)

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:   cartRepo,
		Tx:     dbClient,
		Prices: tourService,
		Rules:  coupons.rules,
	})
	if err != nil {
		return err
	}

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Tx:       dbClient,
		Carts:    cartRepo,
		Tours:    tourRepo,
		Bookings: bookings.NewRepository(dbClient.DB()),
		Rules:    coupons.rules,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	limitPolicy := middleware.NewRateLimitPolicy("coupon_apply", cfg.Coupons.ApplyRatePerMinute, cfg.Coupons.ApplyBurst)
	var couponLimiter *middleware.RateLimiter
	if redisClient != nil {
		couponLimiter = middleware.NewRateLimiter(limitPolicy, redisClient, logg)
	} else {
		couponLimiter = middleware.NewRateLimiter(limitPolicy, nil, logg)
	}

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Gatherer:      registry,
		Metrics:       metrics.NewHTTPMetrics(registry),
		Cart:          cartService,
		Bookings:      bookingService,
		Availability:  availabilityService,
		Hub:           availability.NewHub(broker, availabilityService, availability.HubOptionsFromConfig(cfg.Availability), logg),
		Coupons:       coupons.admin,
		CouponLimiter: couponLimiter,
	}
	if redisClient != nil {
		deps.Redis = controllers.Pinger(redisClient)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     server.Addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		group.Go(func() error { return relay.Run(groupCtx) })
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
