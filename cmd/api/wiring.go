package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/kafka"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/pubsub"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

type couponStack struct {
	rules coupons.RuleSet
	// admin is nil for the static source, which leaves the admin routes unmounted.
	admin coupons.Service
}

// buildCoupons selects the rule source. The static set is read from the seed file when
// one is configured; the db source seeds missing codes from the same file and is fronted
// by the redis cache when redis is available.
func buildCoupons(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (couponStack, error) {
	seed := coupons.DefaultRules()
	if cfg.Coupons.SeedFile != "" {
		loaded, err := coupons.LoadRulesFile(cfg.Coupons.SeedFile)
		if err != nil {
			return couponStack{}, err
		}
		seed = loaded
	}

	if cfg.Coupons.Source == config.CouponSourceStatic {
		static, err := coupons.NewStaticRuleSet(seed...)
		if err != nil {
			return couponStack{}, err
		}
		logg.Info(logg.WithField(ctx, "coupons", len(seed)), "coupon rules loaded from static set")
		return couponStack{rules: static}, nil
	}

	repo := coupons.NewRepository(dbClient.DB())
	seeded, err := repo.Seed(ctx, seed)
	if err != nil {
		return couponStack{}, fmt.Errorf("seeding coupons: %w", err)
	}
	logg.Info(logg.WithField(ctx, "seeded", seeded), "coupon rules backed by database")

	if redisClient == nil {
		admin, err := coupons.NewService(repo, nil)
		return couponStack{rules: repo, admin: admin}, err
	}
	cached := coupons.NewCachedRuleSet(repo, redisClient, cfg.Coupons.CacheTTL, logg)
	admin, err := coupons.NewService(repo, cached)
	return couponStack{rules: cached, admin: admin}, err
}

// buildNotifier picks how bookings announce seat changes. The returned closer releases
// the bus client.
func buildNotifier(ctx context.Context, cfg config.EventsConfig, svc availability.Service, logg *logger.Logger) (availability.ChangeNotifier, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.EventsDriverKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, noop, err
		}
		logg.Info(logg.WithField(ctx, "topic", cfg.KafkaTopic), "seat changes published to kafka")
		return availability.KafkaNotifier{Producer: producer}, producer.Close, nil
	case config.EventsDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg, false, logg)
		if err != nil {
			return nil, noop, err
		}
		logg.Info(logg.WithField(ctx, "topic", cfg.PubSubTopic), "seat changes published to pubsub")
		return availability.PubSubNotifier{Client: client}, client.Close, nil
	}
	return availability.InProcessNotifier{Service: svc}, noop, nil
}
