package workspace

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
)

type nodeTypesResponse struct {
	NodeTypes []struct {
		NodeTypeID   string `json:"node_type_id"`
		Description  string `json:"description"`
		IsDeprecated bool   `json:"is_deprecated"`
	} `json:"node_types"`
}

type zonesResponse struct {
	Zones       []string `json:"zones"`
	DefaultZone string   `json:"default_zone"`
}

type sparkVersionsResponse struct {
	Versions []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"versions"`
}

type instancePoolsResponse struct {
	InstancePools []struct {
		InstancePoolID   string `json:"instance_pool_id"`
		InstancePoolName string `json:"instance_pool_name"`
	} `json:"instance_pools"`
}

type instanceProfilesResponse struct {
	InstanceProfiles []struct {
		InstanceProfileArn string `json:"instance_profile_arn"`
	} `json:"instance_profiles"`
}

type wireFamily struct {
	PolicyFamilyID string `json:"policy_family_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Definition     string `json:"definition"`
}

type policyFamiliesResponse struct {
	PolicyFamilies []wireFamily `json:"policy_families"`
}

// ListNodeTypes returns every non-deprecated node type
func (c *Client) ListNodeTypes(ctx context.Context) ([]models.Option, error) {
	var resp nodeTypesResponse
	if err := c.get(ctx, "clusters.list_node_types", "/api/2.0/clusters/list-node-types", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Option, 0, len(resp.NodeTypes))
	for _, nt := range resp.NodeTypes {
		if nt.IsDeprecated {
			continue
		}
		out = append(out, models.Option{Value: nt.NodeTypeID, Label: nt.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

// ListZones returns the availability zones of the workspace
func (c *Client) ListZones(ctx context.Context) ([]models.Option, error) {
	zones, err := c.zones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Option, len(zones))
	for i, z := range zones {
		out[i] = models.Option{Value: z}
	}
	return out, nil
}

// ListRegions derives regions from the zone list; the workspace has no
// region listing of its own
func (c *Client) ListRegions(ctx context.Context) ([]models.Option, error) {
	zones, err := c.zones(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(zones))
	out := make([]models.Option, 0, len(zones))
	for _, z := range zones {
		region := regionOf(z)
		if _, ok := seen[region]; ok {
			continue
		}
		seen[region] = struct{}{}
		out = append(out, models.Option{Value: region})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

// ListInstancePools returns every instance pool
func (c *Client) ListInstancePools(ctx context.Context) ([]models.Option, error) {
	var resp instancePoolsResponse
	if err := c.get(ctx, "instance_pools.list", "/api/2.0/instance-pools/list", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Option, len(resp.InstancePools))
	for i, p := range resp.InstancePools {
		out[i] = models.Option{Value: p.InstancePoolID, Label: p.InstancePoolName}
	}
	return out, nil
}

// ListInstanceProfiles returns every registered instance profile ARN
func (c *Client) ListInstanceProfiles(ctx context.Context) ([]models.Option, error) {
	var resp instanceProfilesResponse
	if err := c.get(ctx, "instance_profiles.list", "/api/2.0/instance-profiles/list", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Option, len(resp.InstanceProfiles))
	for i, p := range resp.InstanceProfiles {
		out[i] = models.Option{Value: p.InstanceProfileArn}
	}
	return out, nil
}

// ListSparkVersions returns the runtime versions in workspace order
func (c *Client) ListSparkVersions(ctx context.Context) ([]models.Option, error) {
	var resp sparkVersionsResponse
	if err := c.get(ctx, "clusters.spark_versions", "/api/2.0/clusters/spark-versions", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Option, len(resp.Versions))
	for i, v := range resp.Versions {
		out[i] = models.Option{Value: v.Key, Label: v.Name}
	}
	return out, nil
}

// ListPolicyFamilies returns the first page of policy families
func (c *Client) ListPolicyFamilies(ctx context.Context) ([]models.PolicyFamily, error) {
	var resp policyFamiliesResponse
	if err := c.get(ctx, "policy_families.list", "/api/2.0/policy-families", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.PolicyFamily, 0, len(resp.PolicyFamilies))
	for _, f := range resp.PolicyFamilies {
		family, err := toFamily(f)
		if err != nil {
			return nil, err
		}
		out = append(out, *family)
	}
	return out, nil
}

// GetPolicyFamily fetches one policy family
func (c *Client) GetPolicyFamily(ctx context.Context, id string) (*models.PolicyFamily, error) {
	var resp wireFamily
	if err := c.get(ctx, "policy_families.get", "/api/2.0/policy-families/"+url.PathEscape(id), nil, &resp); err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "policy family not found", err).WithDetail("family_id", id)
		}
		return nil, err
	}
	return toFamily(resp)
}

func (c *Client) zones(ctx context.Context) ([]string, error) {
	var resp zonesResponse
	if err := c.get(ctx, "clusters.list_zones", "/api/2.0/clusters/list-zones", nil, &resp); err != nil {
		return nil, err
	}
	zones := append([]string(nil), resp.Zones...)
	sort.Strings(zones)
	return zones, nil
}

func toFamily(f wireFamily) (*models.PolicyFamily, error) {
	def, err := policy.ParseDefinition([]byte(f.Definition))
	if err != nil {
		return nil, malformed("policy_families", err)
	}
	return &models.PolicyFamily{
		ID:          f.PolicyFamilyID,
		Name:        f.Name,
		Description: f.Description,
		Definition:  def,
	}, nil
}

// regionOf strips the availability zone suffix: us-east-1a -> us-east-1,
// us-central1-b -> us-central1
func regionOf(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 && len(zone)-i == 2 && unicode.IsLetter(rune(zone[i+1])) {
		return zone[:i]
	}
	n := len(zone)
	if n > 1 && unicode.IsLetter(rune(zone[n-1])) && unicode.IsDigit(rune(zone[n-2])) {
		return zone[:n-1]
	}
	return zone
}
