package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// CartRecord is a user's cart. At most one row per user is active.
type CartRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index:ix_carts_user_status"`
	Status     enums.CartStatus `gorm:"column:status;not null;default:'active';index:ix_carts_user_status"`
	CouponCode *string          `gorm:"column:coupon_code"`
	Items      []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartRecord) TableName() string { return "carts" }

func (c *CartRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem is one line of a cart with the per-person price captured when it was added.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	Position  int             `gorm:"column:position;not null"`
	TourID    uuid.UUID       `gorm:"column:tour_id;type:uuid;not null"`
	StartDate types.Date      `gorm:"column:start_date;type:date;not null"`
	Travelers int             `gorm:"column:travelers;not null;check:chk_cart_items_travelers,travelers >= 1"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Currency  enums.Currency  `gorm:"column:currency;type:char(3);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
