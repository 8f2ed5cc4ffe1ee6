package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is anything readiness should reach before the node takes traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tourbook-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency. Nil entries are skipped so optional
// backends such as redis can be left out of a dev setup.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tourbook-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]any{"dependency": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
