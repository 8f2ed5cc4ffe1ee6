package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

// Coupon persists one discount rule. Code is stored uppercased.
type Coupon struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code            string             `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	Kind            enums.DiscountKind `gorm:"column:kind;not null"`
	Value           decimal.Decimal    `gorm:"column:value;type:numeric(12,4);not null"`
	MinimumPurchase decimal.Decimal    `gorm:"column:minimum_purchase;type:numeric(12,2);not null;default:0"`
	StartsAt        *time.Time         `gorm:"column:starts_at"`
	ExpiresAt       *time.Time         `gorm:"column:expires_at"`
	Active          bool               `gorm:"column:active;not null"`
	Description     string             `gorm:"column:description;not null;default:''"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
