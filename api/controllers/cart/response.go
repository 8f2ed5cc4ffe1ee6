package cart

import (
	cartdto "github.com/angelmondragon/tourbook-backend/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/tourbook-backend/internal/cart"
)

func newCartView(view *cartsvc.View) cartdto.CartView {
	items := make([]cartdto.CartItem, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, cartdto.CartItem{
			ID:        item.ID,
			TourID:    item.TourID,
			StartDate: item.StartDate,
			Travelers: item.Travelers,
			Price:     item.Price,
			LineTotal: item.LineTotal(),
		})
	}

	return cartdto.CartView{
		Cart: cartdto.Cart{
			ID:         view.Cart.ID,
			UserID:     view.Cart.UserID,
			Items:      items,
			CouponCode: view.Cart.CouponCode,
		},
		Quote: cartdto.Quote{
			Currency:      view.Quote.Currency,
			Subtotal:      view.Quote.Subtotal,
			Discount:      view.Quote.Discount,
			Total:         view.Quote.Total,
			CouponCode:    view.Quote.CouponCode,
			CouponStatus:  string(view.Quote.CouponStatus),
			CouponMessage: view.Quote.CouponMessage,
		},
	}
}
