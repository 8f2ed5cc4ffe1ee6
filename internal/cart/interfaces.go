package cart

import (
	"context"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	SaveCoupon(ctx context.Context, cartID uuid.UUID, couponCode *string) error
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error
}

// PriceResolver returns the per-person price of a bookable departure, failing when the
// tour or date does not exist or is sold out.
type PriceResolver interface {
	DeparturePrice(ctx context.Context, tourID uuid.UUID, date types.Date) (types.Money, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
