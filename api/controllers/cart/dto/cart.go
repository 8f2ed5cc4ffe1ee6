package cartdto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// CartView is the cart plus its quote as returned by every cart endpoint.
type CartView struct {
	Cart  Cart  `json:"cart"`
	Quote Quote `json:"quote"`
}

// Cart is the stored cart. Line totals are included for display only.
type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Items      []CartItem `json:"items"`
	CouponCode string     `json:"coupon_code,omitempty"`
}

// CartItem is one tour departure line.
type CartItem struct {
	ID        uuid.UUID   `json:"id"`
	TourID    uuid.UUID   `json:"tour_id"`
	StartDate types.Date  `json:"start_date"`
	Travelers int         `json:"travelers"`
	Price     types.Money `json:"price"`
	LineTotal types.Money `json:"line_total"`
}

// Quote carries the priced totals and the coupon outcome.
type Quote struct {
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	CouponStatus  string          `json:"coupon_status"`
	CouponMessage string          `json:"coupon_message,omitempty"`
}
