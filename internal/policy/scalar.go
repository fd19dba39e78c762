package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScalarKind identifies the JSON type carried by a Scalar
type ScalarKind int

const (
	ScalarString ScalarKind = iota
	ScalarNumber
	ScalarBool
)

// Scalar is a JSON scalar value (string, number or boolean) used by
// fixed values, list members and default values
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  float64
	Bool bool
}

// StringScalar returns a string Scalar
func StringScalar(s string) Scalar {
	return Scalar{Kind: ScalarString, Str: s}
}

// NumberScalar returns a numeric Scalar
func NumberScalar(n float64) Scalar {
	return Scalar{Kind: ScalarNumber, Num: n}
}

// BoolScalar returns a boolean Scalar
func BoolScalar(b bool) Scalar {
	return Scalar{Kind: ScalarBool, Bool: b}
}

// String renders the scalar the way a user would type it
func (s Scalar) String() string {
	switch s.Kind {
	case ScalarNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	default:
		return s.Str
	}
}

// Equal reports whether two scalars have the same kind and value
func (s Scalar) Equal(o Scalar) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case ScalarNumber:
		return s.Num == o.Num
	case ScalarBool:
		return s.Bool == o.Bool
	default:
		return s.Str == o.Str
	}
}

// MarshalJSON implements json.Marshaler
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarNumber:
		return []byte(strconv.FormatFloat(s.Num, 'f', -1, 64)), nil
	case ScalarBool:
		return []byte(strconv.FormatBool(s.Bool)), nil
	default:
		return json.Marshal(s.Str)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Arrays, objects and null are rejected.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty scalar")
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StringScalar(str)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*s = BoolScalar(b)
	case 'n':
		return fmt.Errorf("scalar cannot be null")
	case '[', '{':
		return fmt.Errorf("expected a scalar, got %s", string(data[:1]))
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", string(data), err)
		}
		*s = NumberScalar(n)
	}
	return nil
}

// RawInput is a user-entered value before it is coerced into an attribute's
// domain. It decodes from any JSON scalar so API clients may send either
// "4" or 4.
type RawInput string

// UnmarshalJSON implements json.Unmarshaler
func (r *RawInput) UnmarshalJSON(data []byte) error {
	var sc Scalar
	if err := sc.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = RawInput(sc.String())
	return nil
}

// Blank reports whether the input is empty after trimming
func (r RawInput) Blank() bool {
	return strings.TrimSpace(string(r)) == ""
}
