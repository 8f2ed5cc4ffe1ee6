package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Booking is a committed reservation for one cart line.
type Booking struct {
	ID            uuid.UUID           `json:"id"`
	CartID        uuid.UUID           `json:"cart_id"`
	TourID        uuid.UUID           `json:"tour_id"`
	DepartureDate types.Date          `json:"departure_date"`
	Travelers     int                 `json:"travelers"`
	UnitPrice     types.Money         `json:"unit_price"`
	Discount      decimal.Decimal     `json:"discount"`
	CouponCode    string              `json:"coupon_code,omitempty"`
	Status        enums.BookingStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Page is one slice of a user's booking history. NextCursor is empty on the last page.
type Page struct {
	Bookings   []Booking `json:"bookings"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Receipt is the outcome of committing a cart.
type Receipt struct {
	Bookings []Booking  `json:"bookings"`
	Quote    cart.Quote `json:"quote"`
}

func fromModel(row models.Booking) Booking {
	b := Booking{
		ID:            row.ID,
		CartID:        row.CartID,
		TourID:        row.TourID,
		DepartureDate: row.DepartureDate,
		Travelers:     row.Travelers,
		UnitPrice:     types.NewMoney(row.UnitPrice, string(row.Currency)),
		Discount:      row.Discount,
		Status:        row.Status,
		CreatedAt:     row.CreatedAt,
	}
	if row.CouponCode != nil {
		b.CouponCode = *row.CouponCode
	}
	return b
}

// splitDiscount spreads discount over lines in proportion to their totals. Shares are
// rounded to cents and the last line absorbs the rounding remainder, so they add up to
// discount exactly.
func splitDiscount(items []cart.Item, subtotal, discount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(items))
	if len(items) == 0 || discount.IsZero() || subtotal.IsZero() {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}
	allocated := decimal.Zero
	for i, item := range items {
		if i == len(items)-1 {
			shares[i] = discount.Sub(allocated)
			break
		}
		share := discount.Mul(item.LineTotal().Amount).Div(subtotal).Round(2)
		shares[i] = share
		allocated = allocated.Add(share)
	}
	return shares
}
