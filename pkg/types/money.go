package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single currency. Arithmetic never converts between currencies.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Times multiplies the amount by n, as for a per-person price and a traveler count.
func (m Money) Times(n int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(n))), Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
