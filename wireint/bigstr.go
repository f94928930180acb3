// Package wireint implements the facilitator's wide-integer wire format:
// fields wider than 53 bits (value, validAfter, validBefore,
// maxAmountRequired) travel as JSON decimal strings, never JSON numbers, so
// that 256-bit values survive the round trip through languages whose
// numbers are IEEE-754 doubles.
package wireint

import (
	"fmt"
	"math/big"
)

// Int is a *big.Int that marshals to and from a JSON string instead of a
// JSON number. Decoding a bare JSON number is treated as non-conforming
// input and rejected rather than silently accepted.
type Int struct {
	big.Int
}

// FromInt64 builds an Int from a native integer, for tests and constants.
func FromInt64(v int64) Int {
	var i Int
	i.SetInt64(v)
	return i
}

// FromString parses a decimal string into an Int.
func FromString(s string) (Int, error) {
	var i Int
	if _, ok := i.SetString(s, 10); !ok {
		return Int{}, fmt.Errorf("wireint: %q is not a base-10 integer", s)
	}
	return i, nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.String() + `"`), nil
}

func (i *Int) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("wireint: integer field %s must be a JSON string, not a number", string(data))
	}
	s := string(data[1 : len(data)-1])
	if _, ok := i.SetString(s, 10); !ok {
		return fmt.Errorf("wireint: %q is not a base-10 integer", s)
	}
	return nil
}

// Cmp wraps big.Int.Cmp on the embedded value for call-site brevity.
func (i Int) Cmp(o Int) int {
	return i.Int.Cmp(&o.Int)
}

// Sign reports the sign of the value (-1, 0, +1).
func (i Int) Sign() int {
	return i.Int.Sign()
}
