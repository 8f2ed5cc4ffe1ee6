package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// ComputeSubtotal sums price times travelers over every line.
func ComputeSubtotal(c Cart) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.LineTotal().Amount)
	}
	return subtotal
}

// ComputeTotal prices c with its coupon, if the coupon still validates at now. A coupon
// that no longer resolves or validates contributes nothing.
func ComputeTotal(ctx context.Context, c Cart, rules coupons.RuleSet, now time.Time) (decimal.Decimal, error) {
	q, err := Price(ctx, c, rules, now)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

// ComputeDiscount is subtotal minus total.
func ComputeDiscount(ctx context.Context, c Cart, rules coupons.RuleSet, now time.Time) (decimal.Decimal, error) {
	q, err := Price(ctx, c, rules, now)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Discount, nil
}

// AddItem appends a line, or adds travelers to the line already holding the same tour
// and start date. The merged line keeps its original price snapshot.
func AddItem(c Cart, tourID uuid.UUID, startDate types.Date, travelers int, price types.Money) (Cart, error) {
	if travelers < 1 || travelers > MaxTravelers {
		return c, invalidQuantity(travelers)
	}
	if tourID == uuid.Nil {
		return c, pkgerrors.New(pkgerrors.CodeValidation, "tour_id is required")
	}
	if startDate.IsZero() {
		return c, pkgerrors.New(pkgerrors.CodeValidation, "start_date is required")
	}
	if price.Amount.IsNegative() {
		return c, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if cur := c.Currency(); cur != "" && cur != price.Currency {
		return c, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart is priced in %s, tour is priced in %s", cur, price.Currency)).
			WithDetails(map[string]any{"cart_currency": cur, "item_currency": price.Currency})
	}

	next := c.Clone()
	if idx := next.indexOfLine(tourID, startDate); idx >= 0 {
		merged := next.Items[idx].Travelers + travelers
		if merged > MaxTravelers {
			return c, invalidQuantity(merged)
		}
		next.Items[idx].Travelers = merged
		return next, nil
	}
	next.Items = append(next.Items, Item{
		ID:        uuid.New(),
		TourID:    tourID,
		StartDate: startDate,
		Travelers: travelers,
		Price:     price,
	})
	return next, nil
}

// UpdateItemQuantity sets the traveler count of one line. Seats are not re-checked here.
func UpdateItemQuantity(c Cart, itemID uuid.UUID, travelers int) (Cart, error) {
	if travelers < 1 || travelers > MaxTravelers {
		return c, invalidQuantity(travelers)
	}
	idx := c.indexOf(itemID)
	if idx < 0 {
		return c, itemNotFound(itemID)
	}
	next := c.Clone()
	next.Items[idx].Travelers = travelers
	return next, nil
}

// RemoveItem drops one line. Removing an id that is not present fails, so a repeated
// removal reports ItemNotFound.
func RemoveItem(c Cart, itemID uuid.UUID) (Cart, error) {
	idx := c.indexOf(itemID)
	if idx < 0 {
		return c, itemNotFound(itemID)
	}
	next := c.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	return next, nil
}

// ApplyCoupon resolves code and checks it against the current subtotal. On success the
// normalized code replaces any previous one.
func ApplyCoupon(ctx context.Context, c Cart, code string, rules coupons.RuleSet, now time.Time) (Cart, error) {
	normalized := coupons.NormalizeCode(code)
	if normalized == "" {
		return c, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if rules == nil {
		return c, pkgerrors.New(pkgerrors.CodeCouponNotFound, fmt.Sprintf("coupon %s not found", normalized))
	}
	rule, err := rules.Resolve(ctx, normalized)
	if err != nil {
		return c, err
	}
	if err := rule.Validate(now, ComputeSubtotal(c)); err != nil {
		return c, err
	}
	next := c.Clone()
	next.CouponCode = normalized
	return next, nil
}

// Clear removes every line and the coupon.
func Clear(c Cart) Cart {
	next := c
	next.Items = []Item{}
	next.CouponCode = ""
	return next
}

func invalidQuantity(travelers int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("travelers must be between 1 and %d", MaxTravelers)).
		WithDetails(map[string]any{"travelers": travelers, "min": 1, "max": MaxTravelers})
}

func itemNotFound(itemID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeItemNotFound, fmt.Sprintf("cart item %s not found", itemID))
}
