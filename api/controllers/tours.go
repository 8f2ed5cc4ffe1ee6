package controllers

import (
	"net/http"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/availability"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

// TourAvailability returns the authoritative departure snapshot the poll fallback reads.
func TourAvailability(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		tourID, err := validators.ParseURLUUID(r, "tourId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Snapshot(r.Context(), tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, snap)
	}
}
