package tours

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Service answers catalog questions for the cart and the availability channel.
type Service interface {
	DeparturePrice(ctx context.Context, tourID uuid.UUID, date types.Date) (types.Money, error)
	Departures(ctx context.Context, tourID uuid.UUID) ([]models.TourDeparture, error)
	RecentlyChanged(ctx context.Context, window time.Duration, limit int) ([]uuid.UUID, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the tour catalog service.
func NewService(repo *Repository, clock func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tour repository required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: repo, now: clock}, nil
}

// DeparturePrice returns the per-person price for a bookable departure. Sold-out dates
// stay listed but cannot be added to a cart.
func (s *service) DeparturePrice(ctx context.Context, tourID uuid.UUID, date types.Date) (types.Money, error) {
	tour, err := s.activeTour(ctx, tourID)
	if err != nil {
		return types.Money{}, err
	}
	dep, err := s.repo.FindDeparture(ctx, tourID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Money{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("tour has no departure on %s", date))
		}
		return types.Money{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load departure")
	}
	if dep.AvailableSeats == 0 {
		return types.Money{}, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("departure on %s is sold out", date)).
			WithDetails(map[string]any{"tour_id": tourID.String(), "start_date": date.String()})
	}
	return types.NewMoney(tour.Price, string(tour.Currency)), nil
}

func (s *service) Departures(ctx context.Context, tourID uuid.UUID) ([]models.TourDeparture, error) {
	if _, err := s.activeTour(ctx, tourID); err != nil {
		return nil, err
	}
	deps, err := s.repo.ListDepartures(ctx, tourID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list departures")
	}
	return deps, nil
}

// RecentlyChanged lists tours whose seat counters moved within window.
func (s *service) RecentlyChanged(ctx context.Context, window time.Duration, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ToursUpdatedSince(ctx, s.now().Add(-window), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list changed tours")
	}
	return ids, nil
}

func (s *service) activeTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	if tourID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour_id is required")
	}
	tour, err := s.repo.FindTour(ctx, tourID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tour")
	}
	if !tour.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour not found")
	}
	return tour, nil
}
