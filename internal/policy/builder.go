package policy

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Payload holds the raw mode-specific values entered for a constraint
type Payload struct {
	Value    *RawInput  `json:"value,omitempty"`
	Pattern  string     `json:"pattern,omitempty"`
	MinValue *float64   `json:"minValue,omitempty"`
	MaxValue *float64   `json:"maxValue,omitempty"`
	Values   []RawInput `json:"values,omitempty"`
}

// Modifiers holds the raw modifier toggles entered for a constraint
type Modifiers struct {
	DefaultValue *RawInput `json:"defaultValue,omitempty"`
	IsOptional   bool      `json:"isOptional,omitempty"`
	Hidden       bool      `json:"hidden,omitempty"`
}

// Request asks the builder to produce one constraint
type Request struct {
	Attribute     string    `json:"attribute"`
	Discriminator string    `json:"discriminator,omitempty"`
	Mode          Mode      `json:"mode"`
	Payload       Payload   `json:"payload"`
	Modifiers     Modifiers `json:"modifiers"`
}

// Builder turns raw user input into validated constraints
type Builder struct {
	catalog *Catalog
	options OptionSource
}

// NewBuilder creates a builder over catalog. options may be nil when no
// attribute with an external option source is ever built.
func NewBuilder(catalog *Catalog, options OptionSource) *Builder {
	return &Builder{catalog: catalog, options: options}
}

// Catalog returns the catalog the builder validates against
func (b *Builder) Catalog() *Catalog {
	return b.catalog
}

// SelectMode returns the modifiers applicable once mode is chosen for attribute
func (b *Builder) SelectMode(attribute string, mode Mode) ([]Toggle, error) {
	profile, err := b.catalog.ProfileFor(attribute)
	if err != nil {
		return nil, err
	}
	if !profile.Allows(mode) {
		return nil, Invalid("type", "%s does not support %s", attribute, mode)
	}
	return TogglesFor(mode), nil
}

// Build validates req and returns the concrete attribute name with its constraint
func (b *Builder) Build(ctx context.Context, req Request) (string, Constraint, error) {
	profile, err := b.catalog.ProfileFor(req.Attribute)
	if err != nil {
		return "", Constraint{}, err
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return "", Constraint{}, Invalid("type", "%v", err)
	}
	if !profile.Allows(req.Mode) {
		return "", Constraint{}, Invalid("type", "%s does not support %s", req.Attribute, req.Mode)
	}
	name, err := profile.Materialize(req.Discriminator)
	if err != nil {
		return "", Constraint{}, err
	}
	if !req.Mode.AcceptsModifiers() {
		if req.Modifiers.DefaultValue != nil {
			return "", Constraint{}, Invalid("defaultValue", "not allowed for %s", req.Mode)
		}
		if req.Modifiers.IsOptional {
			return "", Constraint{}, Invalid("isOptional", "not allowed for %s", req.Mode)
		}
	}

	d := &domain{ctx: ctx, profile: profile, options: b.options}
	c := Constraint{Mode: req.Mode, Hidden: req.Modifiers.Hidden}
	var pattern *regexp.Regexp

	switch req.Mode {
	case ModeFixed:
		if req.Payload.Value == nil || req.Payload.Value.Blank() {
			return "", Constraint{}, Invalid("value", "required for fixed")
		}
		v, err := d.coerce("value", *req.Payload.Value)
		if err != nil {
			return "", Constraint{}, err
		}
		c.Value = &v
	case ModeForbidden:
		if req.Payload.Value != nil && !req.Payload.Value.Blank() {
			v, err := d.coerce("value", *req.Payload.Value)
			if err != nil {
				return "", Constraint{}, err
			}
			c.Value = &v
		}
	case ModeRegex:
		if strings.TrimSpace(req.Payload.Pattern) == "" {
			return "", Constraint{}, Invalid("pattern", "required for regex")
		}
		pattern, err = regexp.Compile(req.Payload.Pattern)
		if err != nil {
			return "", Constraint{}, Invalid("pattern", "does not compile: %v", err)
		}
		c.Pattern = req.Payload.Pattern
	case ModeRange:
		if req.Payload.MinValue == nil {
			return "", Constraint{}, Invalid("minValue", "required for range")
		}
		if req.Payload.MaxValue == nil {
			return "", Constraint{}, Invalid("maxValue", "required for range")
		}
		lo, hi := *req.Payload.MinValue, *req.Payload.MaxValue
		if err := d.number("minValue", lo); err != nil {
			return "", Constraint{}, err
		}
		if err := d.number("maxValue", hi); err != nil {
			return "", Constraint{}, err
		}
		if lo > hi {
			return "", Constraint{}, Invalid("minValue", "%s is greater than maxValue %s", formatNumber(lo), formatNumber(hi))
		}
		c.MinValue, c.MaxValue = &lo, &hi
	case ModeAllowlist, ModeBlocklist:
		values, err := d.list(req.Payload.Values)
		if err != nil {
			return "", Constraint{}, err
		}
		if len(values) == 0 {
			return "", Constraint{}, Invalid("values", "%s needs at least one value", req.Mode)
		}
		c.Values = values
	case ModeUnlimited:
	}

	if req.Mode.AcceptsModifiers() {
		if dv := req.Modifiers.DefaultValue; dv != nil && !dv.Blank() {
			v, err := d.coerce("defaultValue", *dv)
			if err != nil {
				return "", Constraint{}, err
			}
			if err := satisfies(c, pattern, v); err != nil {
				return "", Constraint{}, err
			}
			c.DefaultValue = &v
		}
		c.IsOptional = req.Modifiers.IsOptional
	}

	if err := c.Shape(); err != nil {
		return "", Constraint{}, err
	}
	return name, c, nil
}

// satisfies checks that a default value is permitted by the constraint it belongs to
func satisfies(c Constraint, pattern *regexp.Regexp, v Scalar) error {
	switch c.Mode {
	case ModeRange:
		if v.Kind != ScalarNumber || v.Num < *c.MinValue || v.Num > *c.MaxValue {
			return Invalid("defaultValue", "%s is outside the range [%s, %s]", v, formatNumber(*c.MinValue), formatNumber(*c.MaxValue))
		}
	case ModeAllowlist:
		if !containsScalar(c.Values, v) {
			return Invalid("defaultValue", "%s is not in the allowlist", v)
		}
	case ModeBlocklist:
		if containsScalar(c.Values, v) {
			return Invalid("defaultValue", "%s is blocklisted", v)
		}
	case ModeRegex:
		if !pattern.MatchString(v.String()) {
			return Invalid("defaultValue", "%s does not match %s", v, c.Pattern)
		}
	}
	return nil
}

func containsScalar(values []Scalar, v Scalar) bool {
	for _, x := range values {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// domain coerces raw input into an attribute's value domain. External
// options are fetched at most once per build.
type domain struct {
	ctx     context.Context
	profile Profile
	options OptionSource

	allowed map[string]struct{}
}

func (d *domain) coerce(field string, raw RawInput) (Scalar, error) {
	s := strings.TrimSpace(string(raw))
	switch d.profile.Domain {
	case DomainNumeric:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Scalar{}, Invalid(field, "%q is not a number", s)
		}
		if err := d.number(field, n); err != nil {
			return Scalar{}, err
		}
		return NumberScalar(n), nil
	case DomainBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Scalar{}, Invalid(field, "%q is not true or false", s)
		}
		return BoolScalar(b), nil
	case DomainEnumerated:
		if d.profile.Enumerated() {
			allowed, err := d.members()
			if err != nil {
				return Scalar{}, err
			}
			if _, ok := allowed[s]; !ok {
				return Scalar{}, Invalid(field, "%q is not a valid %s", s, d.profile.Name)
			}
		}
		return StringScalar(s), nil
	default:
		return StringScalar(string(raw)), nil
	}
}

func (d *domain) number(field string, n float64) error {
	if d.profile.Domain != DomainNumeric {
		return Invalid(field, "%s is not numeric", d.profile.Name)
	}
	if d.profile.Integer && n != math.Trunc(n) {
		return Invalid(field, "%s must be a whole number", formatNumber(n))
	}
	if d.profile.Min != nil && n < *d.profile.Min {
		return Invalid(field, "%s is below the minimum %s", formatNumber(n), formatNumber(*d.profile.Min))
	}
	if d.profile.Max != nil && n > *d.profile.Max {
		return Invalid(field, "%s is above the maximum %s", formatNumber(n), formatNumber(*d.profile.Max))
	}
	return nil
}

// list coerces list members, dropping blanks and duplicates while keeping first occurrence order
func (d *domain) list(raw []RawInput) ([]Scalar, error) {
	out := make([]Scalar, 0, len(raw))
	for i, r := range raw {
		if r.Blank() {
			continue
		}
		v, err := d.coerce(fmt.Sprintf("values[%d]", i), r)
		if err != nil {
			return nil, err
		}
		if containsScalar(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *domain) members() (map[string]struct{}, error) {
	if d.allowed != nil {
		return d.allowed, nil
	}
	allowed := make(map[string]struct{}, len(d.profile.Enum))
	for _, v := range d.profile.Enum {
		allowed[v] = struct{}{}
	}
	if d.profile.Options != SourceNone {
		if d.options == nil {
			return nil, fmt.Errorf("no option source configured for %s", d.profile.Options)
		}
		values, err := d.options.OptionValues(d.ctx, d.profile.Options)
		if err != nil {
			return nil, fmt.Errorf("load %s options: %w", d.profile.Options, err)
		}
		for _, v := range values {
			allowed[v] = struct{}{}
		}
	}
	d.allowed = allowed
	return allowed, nil
}
