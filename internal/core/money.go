// Package core provides the expense model and money handling.
//
// Amounts are exact decimals. They travel as JSON strings so that no
// binary floating point conversion happens on either side of the wire.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an exact decimal money value.
type Amount struct {
	d decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// ParseAmount parses user or wire input.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and keeps
// every digit given; no rounding happens.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount("12,34") -> 12.34
//	ParseAmount("1.005") -> 1.005
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{d: d}, nil
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Equal compares values, ignoring trailing zeros.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// String renders at least two fraction digits, more when present.
func (a Amount) String() string {
	if a.d.Exponent() < -2 {
		return a.d.String()
	}
	return a.d.StringFixed(2)
}

// MarshalJSON always writes a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidAmount)
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	a.d = d
	return nil
}
