package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPoints is returned when a stored amount is not a whole number.
var ErrInvalidPoints = errors.New("points value is not an integer")

// Points is a whole-number point amount. It scans integers, integral
// floats and decimal text (Postgres NUMERIC aggregates arrive as text).
type Points int64

// Scan implements sql.Scanner.
func (p *Points) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = 0
	case int64:
		*p = Points(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return fmt.Errorf("%w: %v", ErrInvalidPoints, v)
		}
		*p = Points(v)
	case []byte:
		return p.parse(string(v))
	case string:
		return p.parse(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidPoints, src)
	}
	return nil
}

// Value implements driver.Valuer.
func (p Points) Value() (driver.Value, error) {
	return int64(p), nil
}

// Int64 returns the raw amount.
func (p Points) Int64() int64 {
	return int64(p)
}

func (p *Points) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*p = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*p = Points(n)
		return nil
	}
	// NUMERIC renders integral sums as "120" but may carry a scale, "120.00".
	whole, frac, found := strings.Cut(raw, ".")
	if !found || strings.Trim(frac, "0") != "" {
		return fmt.Errorf("%w: %q", ErrInvalidPoints, raw)
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPoints, raw)
	}
	*p = Points(n)
	return nil
}
