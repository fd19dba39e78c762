package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Definition maps concrete attribute names to their constraints
type Definition map[string]Constraint

// Put stores c under name, replacing any existing entry
func (d Definition) Put(name string, c Constraint) {
	d[name] = c
}

// Remove deletes the entry for name. Removing a missing name is a no-op.
func (d Definition) Remove(name string) {
	delete(d, name)
}

// Get returns the constraint stored under name
func (d Definition) Get(name string) (Constraint, bool) {
	c, ok := d[name]
	return c, ok
}

// Names returns the attribute names in sorted order
func (d Definition) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy
func (d Definition) Clone() Definition {
	out := make(Definition, len(d))
	for name, c := range d {
		out[name] = c.clone()
	}
	return out
}

// Equal reports whether both definitions hold the same constraints
func (d Definition) Equal(o Definition) bool {
	if len(d) != len(o) {
		return false
	}
	for name, c := range d {
		oc, ok := o[name]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// ToJSON encodes the definition as a flat JSON object. A nil definition encodes as {}.
func (d Definition) ToJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Constraint(d))
}

// ParseDefinition decodes a flat JSON object of constraints. Blank input
// yields an empty definition.
func ParseDefinition(data []byte) (Definition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Definition{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	def := make(Definition, len(raw))
	for name, msg := range raw {
		var c Constraint
		if err := json.Unmarshal(msg, &c); err != nil {
			return nil, fmt.Errorf("parse definition: %s: %w", name, err)
		}
		def[name] = c
	}
	return def, nil
}

// Validate reports the first entry that is not registered in catalog or
// that uses a mode its attribute does not support
func (d Definition) Validate(catalog *Catalog) error {
	for _, name := range d.Names() {
		profile, err := catalog.Resolve(name)
		if err != nil {
			return err
		}
		c := d[name]
		if !profile.Allows(c.Mode) {
			return Invalid(name, "%s does not support %s", profile.Name, c.Mode)
		}
		if err := c.Shape(); err != nil {
			if ve, ok := AsValidationError(err); ok {
				return Invalid(name, "%s: %s", ve.Field, ve.Reason)
			}
			return err
		}
	}
	return nil
}

func (c Constraint) clone() Constraint {
	out := c
	if c.Value != nil {
		v := *c.Value
		out.Value = &v
	}
	if c.DefaultValue != nil {
		v := *c.DefaultValue
		out.DefaultValue = &v
	}
	if c.MinValue != nil {
		v := *c.MinValue
		out.MinValue = &v
	}
	if c.MaxValue != nil {
		v := *c.MaxValue
		out.MaxValue = &v
	}
	if c.Values != nil {
		out.Values = append([]Scalar(nil), c.Values...)
	}
	return out
}
