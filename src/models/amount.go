package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amount wraps decimal.Decimal for monetary and unit quantities.
// Values are stored in SQLite as TEXT decimal strings so nothing is lost
// to binary floating point on the way in or out.
type Amount struct {
	decimal.Decimal
}

// NewAmount parses a decimal string into an Amount.
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid decimal value %q: %w", s, err)
	}
	return Amount{d}, nil
}

// MustAmount parses a decimal string and panics on failure. For constants and tests.
func MustAmount(s string) Amount {
	return Amount{decimal.RequireFromString(s)}
}

// ZeroAmount returns an Amount holding exactly zero.
func ZeroAmount() Amount {
	return Amount{decimal.Zero}
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	if src == nil {
		a.Decimal = decimal.Zero
		return nil
	}
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	case int64:
		a.Decimal = decimal.NewFromInt(v)
		return nil
	case float64:
		a.Decimal = decimal.NewFromFloat(v)
		return nil
	}
	return a.Decimal.Scan(src)
}

// Value implements driver.Valuer, writing the exact decimal string.
func (a Amount) Value() (driver.Value, error) {
	return a.Decimal.String(), nil
}

// MarshalJSON outputs the decimal as a JSON string with at least two decimal
// places, e.g. "140.00". Values carrying more precision keep every digit.
func (a Amount) MarshalJSON() ([]byte, error) {
	places := int32(2)
	if exp := -a.Decimal.Exponent(); exp > places {
		places = exp
	}
	return []byte(`"` + a.Decimal.StringFixed(places) + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// AddAmounts sums its arguments without intermediate rounding.
func AddAmounts(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Decimal)
	}
	return Amount{total}
}
