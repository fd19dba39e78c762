package policy

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Domain is the kind of value an attribute accepts
type Domain string

const (
	DomainNumeric    Domain = "numeric"
	DomainEnumerated Domain = "enumerated"
	DomainFreeString Domain = "string"
	DomainBoolean    Domain = "boolean"
)

// Wildcard describes how a `*` segment in an attribute name is materialized
type Wildcard string

const (
	WildcardNone  Wildcard = ""
	WildcardIndex Wildcard = "index"
	WildcardKey   Wildcard = "key"
)

// OptionSourceName names an externally provided option list
type OptionSourceName string

const (
	SourceNone             OptionSourceName = ""
	SourceNodeTypes        OptionSourceName = "node_types"
	SourceZones            OptionSourceName = "zones"
	SourceRegions          OptionSourceName = "regions"
	SourceInstancePools    OptionSourceName = "instance_pools"
	SourceInstanceProfiles OptionSourceName = "instance_profiles"
	SourceSparkVersions    OptionSourceName = "spark_versions"
	SourcePolicyFamilies   OptionSourceName = "policy_families"
)

// OptionSources lists every option source the catalog provider must serve
var OptionSources = []OptionSourceName{
	SourceNodeTypes,
	SourceZones,
	SourceRegions,
	SourceInstancePools,
	SourceInstanceProfiles,
	SourceSparkVersions,
	SourcePolicyFamilies,
}

// OptionSource resolves the current option values for a source
type OptionSource interface {
	OptionValues(ctx context.Context, source OptionSourceName) ([]string, error)
}

// Profile is the constraint capability profile of one attribute
type Profile struct {
	Name        string
	Description string

	SupportsRange     bool
	SupportsAllowlist bool
	SupportsBlocklist bool
	SupportsRegex     bool
	SupportsUnlimited bool

	Domain  Domain
	Min     *float64
	Max     *float64
	Integer bool

	// Enum holds static values of an enumerated domain. When Options is
	// set, Enum values are accepted in addition to the fetched options.
	Enum    []string
	Options OptionSourceName
	// Suggest marks Options as suggestions only: values outside the list are accepted
	Suggest bool

	Wildcard Wildcard
}

// Modes returns the legal modes, always starting with fixed and forbidden
func (p Profile) Modes() []Mode {
	modes := []Mode{ModeFixed, ModeForbidden}
	if p.SupportsRegex {
		modes = append(modes, ModeRegex)
	}
	if p.SupportsRange {
		modes = append(modes, ModeRange)
	}
	if p.SupportsAllowlist {
		modes = append(modes, ModeAllowlist)
	}
	if p.SupportsBlocklist {
		modes = append(modes, ModeBlocklist)
	}
	if p.SupportsUnlimited {
		modes = append(modes, ModeUnlimited)
	}
	return modes
}

// Allows reports whether mode is legal for the attribute
func (p Profile) Allows(mode Mode) bool {
	for _, m := range p.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}

// Enumerated reports whether values are restricted to a known set
func (p Profile) Enumerated() bool {
	return p.Domain == DomainEnumerated && !p.Suggest
}

// Materialize substitutes the discriminator for the wildcard segment and
// returns the concrete attribute name
func (p Profile) Materialize(discriminator string) (string, error) {
	if p.Wildcard == WildcardNone {
		return p.Name, nil
	}
	d := strings.TrimSpace(discriminator)
	if d == "" {
		return "", Invalid("discriminator", "%s needs a concrete %s", p.Name, p.Wildcard)
	}
	if p.Wildcard == WildcardIndex {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return "", Invalid("discriminator", "index must be a non-negative integer, got %q", d)
		}
		d = strconv.Itoa(n)
	}
	return strings.Replace(p.Name, "*", d, 1), nil
}

// matches reports whether a concrete attribute name was produced from this profile
func (p Profile) matches(concrete string) bool {
	if p.Wildcard == WildcardNone {
		return p.Name == concrete
	}
	star := strings.Index(p.Name, "*")
	prefix, suffix := p.Name[:star], p.Name[star+1:]
	if !strings.HasPrefix(concrete, prefix) || !strings.HasSuffix(concrete, suffix) {
		return false
	}
	if len(concrete) <= len(prefix)+len(suffix) {
		return false
	}
	middle := concrete[len(prefix) : len(concrete)-len(suffix)]
	if p.Wildcard == WildcardIndex {
		n, err := strconv.Atoi(middle)
		return err == nil && n >= 0
	}
	return true
}

// Catalog is the registry of attribute capability profiles
type Catalog struct {
	profiles map[string]Profile
	names    []string
}

// NewCatalog builds a catalog from profiles. Later duplicates replace earlier ones.
func NewCatalog(profiles ...Profile) *Catalog {
	c := &Catalog{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		c.profiles[p.Name] = p
	}
	c.names = make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// ProfileFor returns the profile registered under name
func (c *Catalog) ProfileFor(name string) (Profile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return Profile{}, unknownAttribute(name)
	}
	return p, nil
}

// Resolve finds the profile for a concrete attribute name, matching
// materialized wildcard names such as custom_tags.team to custom_tags.*
func (c *Catalog) Resolve(concrete string) (Profile, error) {
	if p, ok := c.profiles[concrete]; ok && p.Wildcard == WildcardNone {
		return p, nil
	}
	for _, name := range c.names {
		p := c.profiles[name]
		if p.Wildcard != WildcardNone && p.matches(concrete) {
			return p, nil
		}
	}
	return Profile{}, unknownAttribute(concrete)
}

// Names returns every registered attribute name in sorted order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Profiles returns every profile in name order
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.profiles[name])
	}
	return out
}
