package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/pagination"
)

// Repository persists bookings.
type Repository struct {
	db *gorm.DB
}

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

// CreateAll inserts rows in one statement.
func (r *Repository) CreateAll(ctx context.Context, rows []models.Booking) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListByUser returns up to limit of a user's bookings, newest first, starting after
// cursor when one is given.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		at := cursor.CreatedAt.UTC()
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, cursor.ID)
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
