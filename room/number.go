package room

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const numberBound = 1_000_000

// Number is a client supplied integer. Valid is false when the field was
// missing, null or not numeric. Numeric strings are accepted and fractions
// are truncated.
type Number struct {
	Value int
	Valid bool
}

func Int(v int) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Max(-numberBound, math.Min(numberBound, f))
	*n = Number{Value: int(f), Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}
