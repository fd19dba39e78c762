package policy

import (
	"context"
	"encoding/json"
)

// Draft is the working copy of a policy being edited
type Draft struct {
	ID                 string          `json:"id,omitempty"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	MaxClustersPerUser *int            `json:"maxClustersPerUser,omitempty"`
	FamilyID           string          `json:"familyId,omitempty"`
	Definition         Definition      `json:"definition,omitempty"`
	Overrides          Definition      `json:"overrides,omitempty"`
	Libraries          json.RawMessage `json:"libraries,omitempty"`
}

// FamilyBased reports whether the draft inherits from a policy family
func (d Draft) FamilyBased() bool {
	return d.FamilyID != ""
}

// Persisted reports whether the draft was loaded from a stored policy
func (d Draft) Persisted() bool {
	return d.ID != ""
}

// Target returns the definition edits are applied to: overrides for family
// based drafts, the standalone definition otherwise
func (d Draft) Target() Definition {
	if d.FamilyBased() {
		return d.Overrides
	}
	return d.Definition
}

// Copy returns an unsaved copy of the draft without its id
func (d Draft) Copy() Draft {
	out := d.clone()
	out.ID = ""
	if out.Name != "" {
		out.Name += " (copy)"
	}
	return out
}

func (d Draft) clone() Draft {
	out := d
	if d.MaxClustersPerUser != nil {
		n := *d.MaxClustersPerUser
		out.MaxClustersPerUser = &n
	}
	if d.Definition != nil {
		out.Definition = d.Definition.Clone()
	}
	if d.Overrides != nil {
		out.Overrides = d.Overrides.Clone()
	}
	if d.Libraries != nil {
		out.Libraries = append(json.RawMessage(nil), d.Libraries...)
	}
	return out
}

// EditState is the pending, not yet committed edit of one attribute
type EditState struct {
	Attribute     string    `json:"attribute,omitempty"`
	Discriminator string    `json:"discriminator,omitempty"`
	Mode          Mode      `json:"mode,omitempty"`
	Payload       Payload   `json:"payload"`
	Modifiers     Modifiers `json:"modifiers"`
}

// Active reports whether an attribute is selected
func (e EditState) Active() bool {
	return e.Attribute != ""
}

// Request converts the pending edit into a builder request
func (e EditState) Request() Request {
	return Request{
		Attribute:     e.Attribute,
		Discriminator: e.Discriminator,
		Mode:          e.Mode,
		Payload:       e.Payload,
		Modifiers:     e.Modifiers,
	}
}

// Inputs is a partial update of the pending edit. Nil fields are left unchanged.
type Inputs struct {
	Discriminator *string    `json:"discriminator,omitempty"`
	Value         *RawInput  `json:"value,omitempty"`
	Pattern       *string    `json:"pattern,omitempty"`
	MinValue      *float64   `json:"minValue,omitempty"`
	MaxValue      *float64   `json:"maxValue,omitempty"`
	Values        []RawInput `json:"values,omitempty"`
	DefaultValue  *RawInput  `json:"defaultValue,omitempty"`
	IsOptional    *bool      `json:"isOptional,omitempty"`
	Hidden        *bool      `json:"hidden,omitempty"`
}

// Editor is the complete editor state. Operations never modify the
// receiver; they return the next state.
type Editor struct {
	Draft Draft `json:"draft"`
	// FamilyBase is the inherited family definition, used for previews only
	FamilyBase Definition `json:"familyBase,omitempty"`
	Edit       EditState  `json:"edit"`
}

// NewEditor returns an editor with an empty standalone draft
func NewEditor() Editor {
	return Editor{Draft: Draft{Definition: Definition{}}}
}

// NewFamilyEditor returns an editor with an empty draft bound to a family
func NewFamilyEditor(familyID string, base Definition) Editor {
	return Editor{
		Draft:      Draft{FamilyID: familyID, Overrides: Definition{}},
		FamilyBase: base.Clone(),
	}
}

// LoadEditor returns an editor over an existing draft with no pending edit
func LoadEditor(d Draft, base Definition) Editor {
	e := Editor{Draft: d.clone()}
	if d.FamilyBased() {
		if e.Draft.Overrides == nil {
			e.Draft.Overrides = Definition{}
		}
		e.Draft.Definition = nil
		e.FamilyBase = base.Clone()
	} else if e.Draft.Definition == nil {
		e.Draft.Definition = Definition{}
	}
	return e
}

// Reset discards the draft and any pending edit
func (e Editor) Reset() Editor {
	return NewEditor()
}

// SelectAttribute starts a new pending edit for name in fixed mode
func (e Editor) SelectAttribute(catalog *Catalog, name string) (Editor, error) {
	if _, err := catalog.ProfileFor(name); err != nil {
		return e, err
	}
	next := e.copy()
	next.Edit = EditState{Attribute: name, Mode: ModeFixed}
	return next, nil
}

// SelectMode switches the pending edit to mode and discards staged values
func (e Editor) SelectMode(b *Builder, mode Mode) (Editor, []Toggle, error) {
	if !e.Edit.Active() {
		return e, nil, Invalid("attribute", "no attribute selected")
	}
	toggles, err := b.SelectMode(e.Edit.Attribute, mode)
	if err != nil {
		return e, nil, err
	}
	next := e.copy()
	next.Edit = EditState{
		Attribute:     e.Edit.Attribute,
		Discriminator: e.Edit.Discriminator,
		Mode:          mode,
	}
	return next, toggles, nil
}

// Stage merges in into the pending edit
func (e Editor) Stage(in Inputs) (Editor, error) {
	if !e.Edit.Active() {
		return e, Invalid("attribute", "no attribute selected")
	}
	if !e.Edit.Mode.AcceptsModifiers() {
		if in.DefaultValue != nil {
			return e, Invalid("defaultValue", "not allowed for %s", e.Edit.Mode)
		}
		if in.IsOptional != nil && *in.IsOptional {
			return e, Invalid("isOptional", "not allowed for %s", e.Edit.Mode)
		}
	}
	next := e.copy()
	edit := &next.Edit
	if in.Discriminator != nil {
		edit.Discriminator = *in.Discriminator
	}
	if in.Value != nil {
		v := *in.Value
		edit.Payload.Value = &v
	}
	if in.Pattern != nil {
		edit.Payload.Pattern = *in.Pattern
	}
	if in.MinValue != nil {
		v := *in.MinValue
		edit.Payload.MinValue = &v
	}
	if in.MaxValue != nil {
		v := *in.MaxValue
		edit.Payload.MaxValue = &v
	}
	if in.Values != nil {
		edit.Payload.Values = append([]RawInput(nil), in.Values...)
	}
	if in.DefaultValue != nil {
		v := *in.DefaultValue
		edit.Modifiers.DefaultValue = &v
	}
	if in.IsOptional != nil {
		edit.Modifiers.IsOptional = *in.IsOptional
	}
	if in.Hidden != nil {
		edit.Modifiers.Hidden = *in.Hidden
	}
	return next, nil
}

// Commit builds the pending edit and stores it in the draft. On success the
// pending edit is cleared; on failure the editor is returned unchanged.
func (e Editor) Commit(ctx context.Context, b *Builder) (Editor, string, error) {
	if !e.Edit.Active() {
		return e, "", Invalid("attribute", "no attribute selected")
	}
	next, name, err := e.PutConstraint(ctx, b, e.Edit.Request())
	if err != nil {
		return e, "", err
	}
	next.Edit = EditState{}
	return next, name, nil
}

// PutConstraint builds req and stores the result without touching the pending edit
func (e Editor) PutConstraint(ctx context.Context, b *Builder, req Request) (Editor, string, error) {
	name, c, err := b.Build(ctx, req)
	if err != nil {
		return e, "", err
	}
	next := e.copy()
	next.target().Put(name, c)
	return next, name, nil
}

// RemoveAttribute deletes name from the draft
func (e Editor) RemoveAttribute(name string) Editor {
	next := e.copy()
	next.target().Remove(name)
	return next
}

// Effective returns the definition a cluster would see once the draft is saved
func (e Editor) Effective() Definition {
	if e.Draft.FamilyBased() {
		return Resolve(e.FamilyBase, e.Draft.Overrides)
	}
	return e.Draft.Definition.Clone()
}

// Preview returns the effective definition with provenance
func (e Editor) Preview() []ResolvedEntry {
	if e.Draft.FamilyBased() {
		return Preview(e.FamilyBase, e.Draft.Overrides)
	}
	def := e.Draft.Definition
	entries := make([]ResolvedEntry, 0, len(def))
	for _, name := range def.Names() {
		entries = append(entries, ResolvedEntry{Name: name, Constraint: def[name], Origin: OriginPolicy})
	}
	return entries
}

func (e *Editor) target() Definition {
	if e.Draft.FamilyBased() {
		if e.Draft.Overrides == nil {
			e.Draft.Overrides = Definition{}
		}
		return e.Draft.Overrides
	}
	if e.Draft.Definition == nil {
		e.Draft.Definition = Definition{}
	}
	return e.Draft.Definition
}

func (e Editor) copy() Editor {
	out := e
	out.Draft = e.Draft.clone()
	if e.FamilyBase != nil {
		out.FamilyBase = e.FamilyBase.Clone()
	}
	out.Edit.Payload.Values = append([]RawInput(nil), e.Edit.Payload.Values...)
	return out
}
