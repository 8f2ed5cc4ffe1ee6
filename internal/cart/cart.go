package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// MaxTravelers caps one line, including the sum produced by merging a repeated add.
const MaxTravelers = 999

// Item is one cart line. Price is the per-person snapshot captured when the line was
// added; it is never refreshed from the catalog.
type Item struct {
	ID        uuid.UUID   `json:"id"`
	TourID    uuid.UUID   `json:"tour_id"`
	StartDate types.Date  `json:"start_date"`
	Travelers int         `json:"travelers"`
	Price     types.Money `json:"price"`
}

// LineTotal is price times travelers.
func (i Item) LineTotal() types.Money {
	return i.Price.Times(i.Travelers)
}

// Cart is a user's ordered list of lines plus at most one coupon code. An empty
// CouponCode means no coupon.
type Cart struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Items      []Item    `json:"items"`
	CouponCode string    `json:"coupon_code,omitempty"`
}

// Clone returns a copy whose item slice can be modified without touching c.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// Currency is the currency of the first line, or "" for an empty cart.
func (c Cart) Currency() string {
	if len(c.Items) == 0 {
		return ""
	}
	return c.Items[0].Price.Currency
}

func (c Cart) indexOf(itemID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func (c Cart) indexOfLine(tourID uuid.UUID, startDate types.Date) int {
	for i, item := range c.Items {
		if item.TourID == tourID && item.StartDate == startDate {
			return i
		}
	}
	return -1
}
