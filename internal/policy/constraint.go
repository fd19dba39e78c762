package policy

import (
	"encoding/json"
	"fmt"
)

// Mode is the constraint type applied to an attribute
type Mode string

const (
	ModeFixed     Mode = "fixed"
	ModeForbidden Mode = "forbidden"
	ModeRegex     Mode = "regex"
	ModeRange     Mode = "range"
	ModeAllowlist Mode = "allowlist"
	ModeBlocklist Mode = "blocklist"
	ModeUnlimited Mode = "unlimited"
)

// AllModes lists every mode in display order
var AllModes = []Mode{ModeFixed, ModeForbidden, ModeRegex, ModeRange, ModeAllowlist, ModeBlocklist, ModeUnlimited}

// ParseMode converts a wire type name into a Mode
func ParseMode(s string) (Mode, error) {
	for _, m := range AllModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown constraint type %q", s)
}

// AcceptsModifiers reports whether default value and optional flags apply to the mode
func (m Mode) AcceptsModifiers() bool {
	return m != ModeFixed && m != ModeForbidden
}

// Toggle is an optional modifier the editor can switch on
type Toggle string

const (
	ToggleDefaultValue Toggle = "default_value"
	ToggleOptional     Toggle = "make_optional"
	ToggleHidden       Toggle = "hide_from_ui"
)

// TogglesFor returns the modifiers applicable to mode
func TogglesFor(m Mode) []Toggle {
	if !m.AcceptsModifiers() {
		return []Toggle{ToggleHidden}
	}
	return []Toggle{ToggleDefaultValue, ToggleOptional, ToggleHidden}
}

// Constraint is the rule governing one attribute. Only the payload fields
// legal for Mode are populated.
type Constraint struct {
	Mode Mode

	// fixed, forbidden
	Value *Scalar
	// regex
	Pattern string
	// range
	MinValue *float64
	MaxValue *float64
	// allowlist, blocklist
	Values []Scalar

	DefaultValue *Scalar
	IsOptional   bool
	Hidden       bool
}

// Fixed returns a fixed constraint on v
func Fixed(v Scalar) Constraint {
	return Constraint{Mode: ModeFixed, Value: &v}
}

// Range returns a range constraint between lo and hi
func Range(lo, hi float64) Constraint {
	return Constraint{Mode: ModeRange, MinValue: &lo, MaxValue: &hi}
}

// Equal reports structural equality
func (c Constraint) Equal(o Constraint) bool {
	if c.Mode != o.Mode || c.Pattern != o.Pattern || c.IsOptional != o.IsOptional || c.Hidden != o.Hidden {
		return false
	}
	if !scalarPtrEqual(c.Value, o.Value) || !scalarPtrEqual(c.DefaultValue, o.DefaultValue) {
		return false
	}
	if !floatPtrEqual(c.MinValue, o.MinValue) || !floatPtrEqual(c.MaxValue, o.MaxValue) {
		return false
	}
	if len(c.Values) != len(o.Values) {
		return false
	}
	for i := range c.Values {
		if !c.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

// Shape checks that the payload matches the mode: invariants on field
// presence, range ordering and non-empty lists. It does not consult the catalog.
func (c Constraint) Shape() error {
	switch c.Mode {
	case ModeFixed:
		if c.Value == nil {
			return Invalid("value", "required for fixed")
		}
	case ModeForbidden:
	case ModeRegex:
		if c.Pattern == "" {
			return Invalid("pattern", "required for regex")
		}
	case ModeRange:
		if c.MinValue == nil && c.MaxValue == nil {
			return Invalid("minValue", "range needs minValue or maxValue")
		}
		if c.MinValue != nil && c.MaxValue != nil && *c.MinValue > *c.MaxValue {
			return Invalid("minValue", "must be less than or equal to maxValue")
		}
	case ModeAllowlist, ModeBlocklist:
		if len(c.Values) == 0 {
			return Invalid("values", "%s needs at least one value", c.Mode)
		}
	case ModeUnlimited:
	default:
		return Invalid("type", "unknown constraint type %q", c.Mode)
	}

	hasValue := c.Value != nil
	hasPattern := c.Pattern != ""
	hasRange := c.MinValue != nil || c.MaxValue != nil
	hasValues := len(c.Values) > 0
	switch {
	case hasValue && c.Mode != ModeFixed && c.Mode != ModeForbidden:
		return Invalid("value", "not allowed for %s", c.Mode)
	case hasPattern && c.Mode != ModeRegex:
		return Invalid("pattern", "not allowed for %s", c.Mode)
	case hasRange && c.Mode != ModeRange:
		return Invalid("minValue", "not allowed for %s", c.Mode)
	case hasValues && c.Mode != ModeAllowlist && c.Mode != ModeBlocklist:
		return Invalid("values", "not allowed for %s", c.Mode)
	}

	if !c.Mode.AcceptsModifiers() {
		if c.DefaultValue != nil {
			return Invalid("defaultValue", "not allowed for %s", c.Mode)
		}
		if c.IsOptional {
			return Invalid("isOptional", "not allowed for %s", c.Mode)
		}
	}
	return nil
}

// wireConstraint is the JSON shape shared by every constraint type
type wireConstraint struct {
	Type         Mode     `json:"type"`
	Value        *Scalar  `json:"value,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	MinValue     *float64 `json:"minValue,omitempty"`
	MaxValue     *float64 `json:"maxValue,omitempty"`
	Values       []Scalar `json:"values,omitempty"`
	DefaultValue *Scalar  `json:"defaultValue,omitempty"`
	IsOptional   bool     `json:"isOptional,omitempty"`
	Hidden       bool     `json:"hidden,omitempty"`
}

// MarshalJSON emits only the fields legal for the constraint's mode
func (c Constraint) MarshalJSON() ([]byte, error) {
	w := wireConstraint{Type: c.Mode, Hidden: c.Hidden}
	switch c.Mode {
	case ModeFixed, ModeForbidden:
		w.Value = c.Value
	case ModeRegex:
		w.Pattern = c.Pattern
	case ModeRange:
		w.MinValue, w.MaxValue = c.MinValue, c.MaxValue
	case ModeAllowlist, ModeBlocklist:
		w.Values = c.Values
	}
	if c.Mode.AcceptsModifiers() {
		w.DefaultValue = c.DefaultValue
		w.IsOptional = c.IsOptional
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a constraint and rejects payloads impossible for its type
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var w wireConstraint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	mode, err := ParseMode(string(w.Type))
	if err != nil {
		return err
	}
	parsed := Constraint{
		Mode:         mode,
		Value:        w.Value,
		Pattern:      w.Pattern,
		MinValue:     w.MinValue,
		MaxValue:     w.MaxValue,
		Values:       w.Values,
		DefaultValue: w.DefaultValue,
		IsOptional:   w.IsOptional,
		Hidden:       w.Hidden,
	}
	if err := parsed.Shape(); err != nil {
		return err
	}
	*c = parsed
	return nil
}

func scalarPtrEqual(a, b *Scalar) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
