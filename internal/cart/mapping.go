package cart

import (
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// FromRecord maps a stored cart and its lines to the domain cart.
func FromRecord(record *models.CartRecord) Cart {
	c := Cart{ID: record.ID, UserID: record.UserID, Items: make([]Item, 0, len(record.Items))}
	if record.CouponCode != nil {
		c.CouponCode = *record.CouponCode
	}
	for _, row := range record.Items {
		c.Items = append(c.Items, Item{
			ID:        row.ID,
			TourID:    row.TourID,
			StartDate: row.StartDate,
			Travelers: row.Travelers,
			Price:     types.NewMoney(row.UnitPrice, string(row.Currency)),
		})
	}
	return c
}

func toItemRows(c Cart) []models.CartItem {
	rows := make([]models.CartItem, 0, len(c.Items))
	for i, item := range c.Items {
		rows = append(rows, models.CartItem{
			ID:        item.ID,
			CartID:    c.ID,
			Position:  i,
			TourID:    item.TourID,
			StartDate: item.StartDate,
			Travelers: item.Travelers,
			UnitPrice: item.Price.Amount,
			Currency:  enums.Currency(item.Price.Currency),
		})
	}
	return rows
}

func couponPtr(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}
