package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tourbook-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/tourbook-backend/api/controllers/cart"
	"github.com/angelmondragon/tourbook-backend/api/middleware"
	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
)

// Deps carries everything the router mounts. Optional entries may be nil: Redis is
// skipped by readiness, Coupons leaves the admin routes unmounted, and CouponLimiter
// leaves coupon applies unthrottled.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Cart          cart.Service
	Bookings      bookings.Service
	Availability  availability.Service
	Hub           http.Handler
	Coupons       coupons.Service
	CouponLimiter *middleware.RateLimiter
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Hub != nil {
		r.Method(http.MethodGet, "/ws/availability", d.Hub)
	}

	r.Get("/api/v1/tours/{tourId}/availability", controllers.TourAvailability(d.Availability, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(d.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(d.Cart, logg))
			r.Put("/items/{itemId}", cartcontrollers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(d.Cart, logg))

			apply := http.Handler(cartcontrollers.CartApplyCoupon(d.Cart, logg))
			if d.CouponLimiter != nil {
				apply = d.CouponLimiter.Handler(apply)
			}
			r.Method(http.MethodPost, "/coupon", apply)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", controllers.BookingList(d.Bookings, logg))
			r.Post("/", controllers.BookingCommit(d.Bookings, logg))
		})
	})

	if d.Coupons != nil {
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/coupons", controllers.AdminCouponList(d.Coupons, logg))
			r.Put("/coupons", controllers.AdminCouponUpsert(d.Coupons, logg))
		})
	}

	return r
}
