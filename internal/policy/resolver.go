package policy

// Origin tells where an effective constraint came from
type Origin string

const (
	OriginFamily   Origin = "family"
	OriginOverride Origin = "override"
	// OriginPolicy marks entries of a standalone policy
	OriginPolicy Origin = "policy"
)

// ResolvedEntry is one line of an effective definition preview
type ResolvedEntry struct {
	Name       string     `json:"name"`
	Constraint Constraint `json:"constraint"`
	Origin     Origin     `json:"origin"`
	// Overridden is set when an override replaced a family constraint
	Overridden bool `json:"overridden,omitempty"`
}

// Resolve layers overrides over base. Override entries replace base entries
// whole. Neither input is modified.
func Resolve(base, overrides Definition) Definition {
	out := base.Clone()
	for name, c := range overrides {
		out[name] = c.clone()
	}
	return out
}

// Preview returns the effective definition with per-entry provenance, sorted by name
func Preview(base, overrides Definition) []ResolvedEntry {
	merged := Resolve(base, overrides)
	entries := make([]ResolvedEntry, 0, len(merged))
	for _, name := range merged.Names() {
		entry := ResolvedEntry{Name: name, Constraint: merged[name], Origin: OriginFamily}
		if _, ok := overrides[name]; ok {
			entry.Origin = OriginOverride
			_, entry.Overridden = base[name]
		}
		entries = append(entries, entry)
	}
	return entries
}
