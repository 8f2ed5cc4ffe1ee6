package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new CartRecord.
func (r *Repository) Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	if record.Status == "" {
		record.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindActiveByUser loads the user's active cart with lines in position order.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveCoupon stores the cart's coupon code; nil clears it.
func (r *Repository) SaveCoupon(ctx context.Context, cartID uuid.UUID, couponCode *string) error {
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"coupon_code": couponCode, "updated_at": time.Now().UTC()}).Error
}

// UpdateStatus moves the user's active cart to status. It returns gorm.ErrRecordNotFound
// when no active cart with that id exists, so a cart cannot be converted twice.
func (r *Repository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error {
	if !enums.CartStatusActive.CanTransitionTo(status) {
		return fmt.Errorf("cart status %q is not reachable from %q", status, enums.CartStatusActive)
	}
	res := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, enums.CartStatusActive).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceItems replaces every line of the cart with items, renumbering positions.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
		items[i].Position = i
	}
	return tx.Create(&items).Error
}
