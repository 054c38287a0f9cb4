package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money carries an amount as a decimal string so values survive JSON round trips without
// binary floating point drift.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// ZeroMoney returns "0" in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: "0", CurrencyCode: currency}
}

// NewMoney serializes d with exactly scale fractional digits.
func NewMoney(d decimal.Decimal, scale int32, currency string) Money {
	if scale < 0 {
		scale = 0
	}
	return Money{Amount: d.StringFixed(scale), CurrencyCode: currency}
}

// Decimal parses the amount. A blank or non-numeric amount yields ErrMalformedMoney.
func (m Money) Decimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(m.Amount)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrMalformedMoney)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedMoney, m.Amount)
	}
	return d, nil
}

// Scale reports the number of fractional digits written in the amount ("10.00" -> 2).
func (m Money) Scale() int32 {
	d, err := m.Decimal()
	if err != nil {
		return 0
	}
	return scaleOf(d)
}

func scaleOf(d decimal.Decimal) int32 {
	if exp := d.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}

// Validate checks that the amount parses and a currency is present.
func (m Money) Validate() error {
	if _, err := m.Decimal(); err != nil {
		return err
	}
	if strings.TrimSpace(m.CurrencyCode) == "" {
		return fmt.Errorf("%w: missing currency code", ErrMalformedMoney)
	}
	return nil
}

// Sum adds amounts exactly. The result keeps the largest scale seen among the inputs so
// "10.00" + "5.5" serializes as "15.50". An empty input sums to "0".
func Sum(amounts []Money, currency string) (Money, error) {
	total := decimal.Zero
	var scale int32
	for _, m := range amounts {
		d, err := m.Decimal()
		if err != nil {
			return Money{}, err
		}
		if s := scaleOf(d); s > scale {
			scale = s
		}
		total = total.Add(d)
	}
	return NewMoney(total, scale, currency), nil
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
