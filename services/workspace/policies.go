package workspace

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
	"go.uber.org/zap"
)

// wirePolicy is a cluster policy as returned by the workspace. Definitions
// travel as JSON encoded strings.
type wirePolicy struct {
	PolicyID           string          `json:"policy_id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	Definition         string          `json:"definition,omitempty"`
	PolicyFamilyID     string          `json:"policy_family_id,omitempty"`
	Overrides          string          `json:"policy_family_definition_overrides,omitempty"`
	MaxClustersPerUser *int            `json:"max_clusters_per_user,omitempty"`
	CreatorUserName    string          `json:"creator_user_name,omitempty"`
	CreatedAtTimestamp int64           `json:"created_at_timestamp,omitempty"`
	IsDefault          bool            `json:"is_default,omitempty"`
	Libraries          json.RawMessage `json:"libraries,omitempty"`
}

type wireRequest struct {
	PolicyID           string          `json:"policy_id,omitempty"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	Definition         string          `json:"definition,omitempty"`
	PolicyFamilyID     string          `json:"policy_family_id,omitempty"`
	Overrides          string          `json:"policy_family_definition_overrides,omitempty"`
	MaxClustersPerUser *int            `json:"max_clusters_per_user,omitempty"`
	Libraries          json.RawMessage `json:"libraries,omitempty"`
}

type listPoliciesResponse struct {
	Policies []wirePolicy `json:"policies"`
}

type createPolicyResponse struct {
	PolicyID string `json:"policy_id"`
}

// List returns a summary of every cluster policy
func (c *Client) List(ctx context.Context) ([]models.PolicySummary, error) {
	var resp listPoliciesResponse
	if err := c.get(ctx, "policies.list", "/api/2.0/policies/clusters/list", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.PolicySummary, len(resp.Policies))
	for i, p := range resp.Policies {
		out[i] = models.PolicySummary{ID: p.PolicyID, Name: p.Name, FamilyID: p.PolicyFamilyID}
	}
	return out, nil
}

// Get fetches one policy
func (c *Client) Get(ctx context.Context, id string) (*models.Policy, error) {
	var resp wirePolicy
	query := url.Values{"policy_id": {id}}
	if err := c.get(ctx, "policies.get", "/api/2.0/policies/clusters/get", query, &resp); err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "policy not found", err).WithDetail("policy_id", id)
		}
		return nil, err
	}
	return c.toPolicy(resp)
}

// Create stores a new policy and returns its id
func (c *Client) Create(ctx context.Context, req models.PolicyRequest) (string, error) {
	body, err := toWire("", req)
	if err != nil {
		return "", err
	}
	var resp createPolicyResponse
	if err := c.post(ctx, "policies.create", "/api/2.0/policies/clusters/create", body, &resp); err != nil {
		return "", err
	}
	if resp.PolicyID == "" {
		return "", services.NewDomainError(services.ErrorTypeExternal, "workspace returned no policy id", nil)
	}
	return resp.PolicyID, nil
}

// Update replaces the stored policy id
func (c *Client) Update(ctx context.Context, id string, req models.PolicyRequest) error {
	body, err := toWire(id, req)
	if err != nil {
		return err
	}
	return c.post(ctx, "policies.edit", "/api/2.0/policies/clusters/edit", body, nil)
}

func toWire(id string, req models.PolicyRequest) (wireRequest, error) {
	out := wireRequest{
		PolicyID:           id,
		Name:               req.Name,
		Description:        req.Description,
		PolicyFamilyID:     req.FamilyID,
		MaxClustersPerUser: req.MaxClustersPerUser,
		Libraries:          req.Libraries,
	}
	if req.FamilyID != "" {
		data, err := req.Overrides.ToJSON()
		if err != nil {
			return out, services.WrapInternal("encode overrides", err)
		}
		out.Overrides = string(data)
		return out, nil
	}
	data, err := req.Definition.ToJSON()
	if err != nil {
		return out, services.WrapInternal("encode definition", err)
	}
	out.Definition = string(data)
	return out, nil
}

func (c *Client) toPolicy(w wirePolicy) (*models.Policy, error) {
	p := &models.Policy{
		ID:                 w.PolicyID,
		Name:               w.Name,
		Description:        w.Description,
		MaxClustersPerUser: w.MaxClustersPerUser,
		FamilyID:           w.PolicyFamilyID,
		Libraries:          w.Libraries,
		CreatorUserName:    w.CreatorUserName,
		IsDefault:          w.IsDefault,
	}
	if w.CreatedAtTimestamp > 0 {
		p.CreatedAt = time.UnixMilli(w.CreatedAtTimestamp).UTC()
	}

	if p.FamilyBased() {
		overrides, err := policy.ParseDefinition([]byte(w.Overrides))
		if err != nil {
			return nil, malformed("policies.get", err)
		}
		p.Overrides = overrides
		// The merged definition is informational only
		if def, err := policy.ParseDefinition([]byte(w.Definition)); err == nil {
			p.Definition = def
		} else {
			c.logger.Warn("ignoring unparsable merged definition",
				zap.String("policy_id", w.PolicyID),
				zap.Error(err))
		}
		return p, nil
	}

	def, err := policy.ParseDefinition([]byte(w.Definition))
	if err != nil {
		return nil, malformed("policies.get", err)
	}
	p.Definition = def
	return p, nil
}
