package enums

import (
	"fmt"
	"strings"
)

// DiscountKind selects how a coupon reduces the cart subtotal.
type DiscountKind string

const (
	// DiscountKindPercentage stores its value as a rate, 0.10 for ten percent.
	DiscountKindPercentage DiscountKind = "percentage"
	// DiscountKindFixed stores its value as a currency amount.
	DiscountKindFixed DiscountKind = "fixed"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPercentage,
	DiscountKindFixed,
}

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input, ignoring case, into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDiscountKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
