package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// Rule is one discount a cart may carry. Percentage rules hold a rate in [0,1]; fixed
// rules hold a currency amount.
type Rule struct {
	Code            string             `json:"code"`
	Kind            enums.DiscountKind `json:"kind"`
	Value           decimal.Decimal    `json:"value"`
	MinimumPurchase decimal.Decimal    `json:"minimum_purchase"`
	StartsAt        *time.Time         `json:"starts_at,omitempty"`
	ExpiresAt       *time.Time         `json:"expires_at,omitempty"`
	Active          bool               `json:"active"`
	Description     string             `json:"description,omitempty"`
}

// RuleSet resolves coupon codes. Lookups ignore case; unknown codes return
// CodeCouponNotFound.
type RuleSet interface {
	Resolve(ctx context.Context, code string) (Rule, error)
}

// NormalizeCode trims and uppercases a code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckWellFormed rejects rules that could push a total above its subtotal or below zero.
func (r Rule) CheckWellFormed() error {
	if NormalizeCode(r.Code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if !r.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount kind %q", r.Kind))
	}
	if r.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon value must be non-negative")
	}
	if r.Kind == enums.DiscountKindPercentage && r.Value.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage value is a rate between 0 and 1")
	}
	if r.MinimumPurchase.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum purchase must be non-negative")
	}
	if r.StartsAt != nil && r.ExpiresAt != nil && !r.ExpiresAt.After(*r.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be after starts_at")
	}
	return nil
}

// Validate checks the rule is usable at now for subtotal. The order of checks fixes which
// error a shopper sees first: availability, then expiry, then the threshold.
func (r Rule) Validate(now time.Time, subtotal decimal.Decimal) error {
	if !r.Active || (r.StartsAt != nil && now.Before(*r.StartsAt)) {
		return pkgerrors.New(pkgerrors.CodeCouponNotFound, fmt.Sprintf("coupon %s is not available", r.Code))
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeCouponExpired, fmt.Sprintf("coupon %s expired on %s", r.Code, r.ExpiresAt.UTC().Format(time.DateOnly)))
	}
	if subtotal.LessThan(r.MinimumPurchase) {
		return pkgerrors.New(
			pkgerrors.CodeMinimumPurchaseNotMet,
			fmt.Sprintf("coupon %s requires a subtotal of at least %s", r.Code, r.MinimumPurchase.StringFixed(2)),
		).WithDetails(map[string]any{
			"minimum_purchase": r.MinimumPurchase.StringFixed(2),
			"subtotal":         subtotal.StringFixed(2),
			"shortfall":        r.MinimumPurchase.Sub(subtotal).StringFixed(2),
		})
	}
	return nil
}

// Apply returns the discounted total for subtotal. It never exceeds subtotal and is never
// negative. The result is exact; rounding to cents happens only when a quote is rendered.
func (r Rule) Apply(subtotal decimal.Decimal) decimal.Decimal {
	var total decimal.Decimal
	switch r.Kind {
	case enums.DiscountKindPercentage:
		rate := decimal.Min(decimal.Max(r.Value, decimal.Zero), decimal.NewFromInt(1))
		total = subtotal.Mul(decimal.NewFromInt(1).Sub(rate))
	case enums.DiscountKindFixed:
		total = decimal.Max(subtotal.Sub(decimal.Max(r.Value, decimal.Zero)), decimal.Zero)
	default:
		total = subtotal
	}
	return decimal.Min(total, subtotal)
}
