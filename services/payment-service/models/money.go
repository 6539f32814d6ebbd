package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in currency minor units (centavos for BRL).
// JSON carries it as a decimal number in major units, e.g. 100.00.
type Money int64

// MaxMoney caps any single amount at one billion major units.
const MaxMoney Money = 100_000_000_000

var (
	hundred     = decimal.NewFromInt(100)
	maxMinor    = decimal.NewFromInt(int64(MaxMoney))
	basisPoints = decimal.NewFromInt(10000)
)

var ErrAmountOutOfRange = errors.New("amount out of range")

// MoneyFromDecimal converts a major-unit amount to minor units, rounding half
// away from zero so fractional centavos are never silently dropped.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Mul(hundred).Round(0)
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d.String())
	}
	return Money(minor.IntPart()), nil
}

// ParseMoney parses a major-unit decimal string such as "149.90".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// CommissionRateBasisPoints is the platform's share of every gross amount (15%).
const CommissionRateBasisPoints = 1500

var ErrNonPositiveAmount = errors.New("amount must be positive")

// Split divides gross into platform commission and instructor payout. The
// commission is rounded half up to the nearest minor unit and the instructor
// receives the remainder, so commission+instructor always equals gross.
func Split(gross Money) (commission, instructor Money, err error) {
	if gross <= 0 {
		return 0, 0, ErrNonPositiveAmount
	}
	if gross > MaxMoney {
		return 0, 0, fmt.Errorf("%w: %d minor units", ErrAmountOutOfRange, gross)
	}
	c := decimal.NewFromInt(int64(gross)).
		Mul(decimal.NewFromInt(CommissionRateBasisPoints)).
		Div(basisPoints).
		Round(0)
	commission = Money(c.IntPart())
	return commission, gross - commission, nil
}
