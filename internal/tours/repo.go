package tours

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Repository exposes persistence operations for tours and their departures.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tour repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindTour loads a tour without its departures.
func (r *Repository) FindTour(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tour).Error; err != nil {
		return nil, err
	}
	return &tour, nil
}

// FindDeparture loads one departure by tour and date.
func (r *Repository) FindDeparture(ctx context.Context, tourID uuid.UUID, date types.Date) (*models.TourDeparture, error) {
	var dep models.TourDeparture
	err := r.db.WithContext(ctx).
		Where("tour_id = ? AND departure_date = ?", tourID, date).
		First(&dep).Error
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// ListDepartures returns every departure of a tour ordered by date.
func (r *Repository) ListDepartures(ctx context.Context, tourID uuid.UUID) ([]models.TourDeparture, error) {
	var deps []models.TourDeparture
	err := r.db.WithContext(ctx).
		Where("tour_id = ?", tourID).
		Order("departure_date ASC").
		Find(&deps).Error
	return deps, err
}

// ToursUpdatedSince returns the ids of tours with a departure touched at or after since.
func (r *Repository) ToursUpdatedSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&models.TourDeparture{}).
		Distinct("tour_id").
		Where("updated_at >= ?", since.UTC())
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("tour_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DecrementSeats takes n seats from a departure only if at least n remain. It returns the
// number of rows changed, zero meaning the departure is missing or short of seats.
func (r *Repository) DecrementSeats(ctx context.Context, tourID uuid.UUID, date types.Date, n int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TourDeparture{}).
		Where("tour_id = ? AND departure_date = ? AND available_seats >= ?", tourID, date, n).
		Updates(map[string]any{
			"available_seats": gorm.Expr("available_seats - ?", n),
			"updated_at":      time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// CreateTour inserts a tour and any departures it carries.
func (r *Repository) CreateTour(ctx context.Context, tour *models.Tour) error {
	return r.db.WithContext(ctx).Create(tour).Error
}

// SaveDeparture inserts a departure or overwrites its seat counters.
func (r *Repository) SaveDeparture(ctx context.Context, dep *models.TourDeparture) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tour_id"}, {Name: "departure_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_seats", "available_seats", "updated_at"}),
		}).
		Create(dep).Error
}
