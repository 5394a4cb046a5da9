package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a lenient numeric input. It accepts JSON numbers and numeric
// strings; anything else decodes to zero instead of failing the request.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a float for callers building forms in code.
func NewAmount(v float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(v)}
}

// ParseAmount coerces free-form text the same way JSON input is coerced.
func ParseAmount(s string) Amount {
	return Amount{Decimal: coerceString(s)}
}

// UnmarshalJSON never returns an error; invalid input becomes zero.
func (a *Amount) UnmarshalJSON(raw []byte) error {
	a.Decimal = coerceJSON(raw)
	return nil
}

// MarshalJSON emits the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func coerceJSON(raw []byte) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		return coerceString(s)
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return decimal.Zero
	}
	return coerceString(string(raw))
}

func coerceString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
