package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// CouponStatus reports how the stored coupon affected a quote.
type CouponStatus string

const (
	CouponStatusNone    CouponStatus = "none"
	CouponStatusApplied CouponStatus = "applied"
	// CouponStatusInert means the code is still on the cart but no longer validates, for
	// example after lines were removed below its minimum purchase.
	CouponStatusInert CouponStatus = "inert"
)

// Quote is the priced view of a cart.
type Quote struct {
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	CouponStatus  CouponStatus    `json:"coupon_status"`
	CouponMessage string          `json:"coupon_message,omitempty"`
}

// Price computes subtotal, discount and total, re-validating the coupon at now. Only
// failures to reach the rule source are returned as errors.
func Price(ctx context.Context, c Cart, rules coupons.RuleSet, now time.Time) (Quote, error) {
	subtotal := ComputeSubtotal(c)
	q := Quote{
		Currency:     c.Currency(),
		Subtotal:     subtotal,
		Discount:     decimal.Zero,
		Total:        subtotal,
		CouponCode:   c.CouponCode,
		CouponStatus: CouponStatusNone,
	}
	if c.CouponCode == "" {
		return q, nil
	}

	if rules == nil {
		q.CouponStatus = CouponStatusInert
		q.CouponMessage = "coupon rules unavailable"
		return q, nil
	}
	rule, err := rules.Resolve(ctx, c.CouponCode)
	if err != nil {
		if isCouponRejection(err) {
			q.CouponStatus = CouponStatusInert
			q.CouponMessage = publicMessage(err)
			return q, nil
		}
		return Quote{}, err
	}
	if err := rule.Validate(now, subtotal); err != nil {
		q.CouponStatus = CouponStatusInert
		q.CouponMessage = publicMessage(err)
		return q, nil
	}

	q.Total = rule.Apply(subtotal)
	q.Discount = subtotal.Sub(q.Total)
	q.CouponStatus = CouponStatusApplied
	return q, nil
}

func isCouponRejection(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeCouponNotFound) ||
		pkgerrors.IsCode(err, pkgerrors.CodeCouponExpired) ||
		pkgerrors.IsCode(err, pkgerrors.CodeMinimumPurchaseNotMet)
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
