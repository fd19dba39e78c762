package models

import (
	"encoding/json"
	"time"

	"github.com/upb/cluster-policy-builder/internal/policy"
)

// Policy represents a cluster policy stored in the workspace
type Policy struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	MaxClustersPerUser *int              `json:"max_clusters_per_user,omitempty"`
	FamilyID           string            `json:"policy_family_id,omitempty"` // Empty for standalone policies
	Definition         policy.Definition `json:"definition,omitempty"`
	Overrides          policy.Definition `json:"policy_family_definition_overrides,omitempty"`
	Libraries          json.RawMessage   `json:"libraries,omitempty"` // Passed through untouched
	CreatorUserName    string            `json:"creator_user_name,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	IsDefault          bool              `json:"is_default,omitempty"`
}

// FamilyBased returns true if the policy inherits from a policy family
func (p *Policy) FamilyBased() bool {
	return p.FamilyID != ""
}

// Summary returns the list view of the policy
func (p *Policy) Summary() PolicySummary {
	return PolicySummary{ID: p.ID, Name: p.Name, FamilyID: p.FamilyID}
}

// Draft converts the stored policy into an editable draft. Family based
// policies carry their overrides only; the server-merged definition is dropped.
func (p *Policy) Draft() policy.Draft {
	d := policy.Draft{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		FamilyID:    p.FamilyID,
		Libraries:   p.Libraries,
	}
	if p.MaxClustersPerUser != nil {
		n := *p.MaxClustersPerUser
		d.MaxClustersPerUser = &n
	}
	if p.FamilyBased() {
		d.Overrides = p.Overrides.Clone()
	} else {
		d.Definition = p.Definition.Clone()
	}
	return d
}

// PolicySummary is one entry of the policy list
type PolicySummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FamilyID string `json:"policy_family_id,omitempty"`
}

// PolicyFamily is a read-only template that policies may inherit from
type PolicyFamily struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Definition  policy.Definition `json:"definition"`
}

// PolicyRequest is the payload of a create or update call
type PolicyRequest struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	MaxClustersPerUser *int              `json:"max_clusters_per_user,omitempty"`
	FamilyID           string            `json:"policy_family_id,omitempty"`
	Definition         policy.Definition `json:"definition,omitempty"`
	Overrides          policy.Definition `json:"policy_family_definition_overrides,omitempty"`
	Libraries          json.RawMessage   `json:"libraries,omitempty"`
}

// Notification is the one-shot result shown after a successful submission
type Notification struct {
	PolicyID string `json:"policy_id"`
	Name     string `json:"name"`
	Created  bool   `json:"created"`
	URL      string `json:"url,omitempty"` // Workspace page of the policy
}
