package enums

import (
	"fmt"
	"strings"
)

// CartStatus is the cart lifecycle. A cart is edited while active and frozen once its
// items were committed into bookings.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
)

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool {
	switch c {
	case CartStatusActive, CartStatusConverted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a cart in status c may move to next. Converted is
// terminal.
func (c CartStatus) CanTransitionTo(next CartStatus) bool {
	return c == CartStatusActive && next == CartStatusConverted
}

func ParseCartStatus(value string) (CartStatus, error) {
	status := CartStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid cart status %q", value)
	}
	return status, nil
}
