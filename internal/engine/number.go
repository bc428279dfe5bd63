package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Number is a request number that may arrive as a JSON number or a
// numeric string. Request structs hold *Number so absence is detectable.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	if _, ok := v.(bool); ok {
		return fmt.Errorf("expected a number, got %s", string(b))
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("expected a number, got %s", string(b))
	}
	*n = Number(f)
	return nil
}

// Float returns the value, or zero for a nil Number.
func (n *Number) Float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// Num is a convenience for building requests in code.
func Num(f float64) *Number {
	n := Number(f)
	return &n
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
