package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Booking is a committed seat reservation created from a cart line.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CartID        uuid.UUID           `gorm:"column:cart_id;type:uuid;not null"`
	TourID        uuid.UUID           `gorm:"column:tour_id;type:uuid;not null"`
	DepartureDate types.Date          `gorm:"column:departure_date;type:date;not null"`
	Travelers     int                 `gorm:"column:travelers;not null"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Currency      enums.Currency      `gorm:"column:currency;type:char(3);not null"`
	CouponCode    *string             `gorm:"column:coupon_code"`
	Discount      decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Status        enums.BookingStatus `gorm:"column:status;not null;default:'confirmed'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
