package workspace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
	"go.uber.org/zap/zaptest"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recorded) {
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Host: server.URL + "/", Token: "service-token", Timeout: 5 * time.Second}, nil, zaptest.NewLogger(t))
	return client, &calls
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClient_NormalizesHost(t *testing.T) {
	c := NewClient(Config{Host: "adb-123.azuredatabricks.net/"}, nil, zaptest.NewLogger(t))
	assert.Equal(t, "https://adb-123.azuredatabricks.net", c.Host())
	assert.Equal(t, "https://adb-123.azuredatabricks.net/compute/policies/ABC", c.PolicyURL("ABC"))
	assert.Equal(t, defaultTimeout, c.config.Timeout)
}

func TestClient_CreateStandalone(t *testing.T) {
	client, calls := newTestClient(t, respond(`{"policy_id":"ABC123"}`))

	def := policy.Definition{"aws_attributes.availability": policy.Fixed(policy.StringScalar("SPOT"))}
	id, err := client.Create(context.Background(), models.PolicyRequest{Name: "Spot only", Definition: def})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", id)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/api/2.0/policies/clusters/create", call.path)
	assert.Equal(t, "Bearer service-token", call.auth)
	assert.Equal(t, "Spot only", call.body["name"])
	assert.JSONEq(t, `{"aws_attributes.availability":{"type":"fixed","value":"SPOT"}}`, call.body["definition"].(string))
	assert.NotContains(t, call.body, "policy_id")
	assert.NotContains(t, call.body, "policy_family_definition_overrides")
}

func TestClient_UpdateFamilyPolicySendsOverridesOnly(t *testing.T) {
	client, calls := newTestClient(t, respond(`{}`))

	limit := 2
	err := client.Update(context.Background(), "DEF456", models.PolicyRequest{
		Name:               "Personal",
		FamilyID:           "personal-vm",
		MaxClustersPerUser: &limit,
		Overrides:          policy.Definition{"autotermination_minutes": policy.Fixed(policy.NumberScalar(30))},
		Libraries:          json.RawMessage(`[{"pypi":{"package":"numpy"}}]`),
	})
	require.NoError(t, err)

	call := (*calls)[0]
	assert.Equal(t, "/api/2.0/policies/clusters/edit", call.path)
	assert.Equal(t, "DEF456", call.body["policy_id"])
	assert.Equal(t, "personal-vm", call.body["policy_family_id"])
	assert.Equal(t, 2.0, call.body["max_clusters_per_user"])
	assert.NotContains(t, call.body, "definition")
	assert.JSONEq(t, `{"autotermination_minutes":{"type":"fixed","value":30}}`, call.body["policy_family_definition_overrides"].(string))
	assert.NotNil(t, call.body["libraries"])
}

func TestClient_ForwardedTokenWins(t *testing.T) {
	client, calls := newTestClient(t, respond(`{"policies":[]}`))

	_, err := client.List(WithToken(context.Background(), "user-token"))
	require.NoError(t, err)
	_, err = client.List(WithToken(context.Background(), ""))
	require.NoError(t, err)

	assert.Equal(t, "Bearer user-token", (*calls)[0].auth)
	assert.Equal(t, "Bearer service-token", (*calls)[1].auth)
}

func TestClient_List(t *testing.T) {
	client, _ := newTestClient(t, respond(`{"policies":[
		{"policy_id":"A1","name":"Data","definition":"{}"},
		{"policy_id":"B2","name":"Personal","policy_family_id":"personal-vm"}
	]}`))

	got, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.PolicySummary{
		{ID: "A1", Name: "Data"},
		{ID: "B2", Name: "Personal", FamilyID: "personal-vm"},
	}, got)
}

func TestClient_Get(t *testing.T) {
	t.Run("standalone", func(t *testing.T) {
		client, calls := newTestClient(t, respond(`{
			"policy_id":"A1","name":"Data","max_clusters_per_user":3,
			"definition":"{\"num_workers\":{\"type\":\"range\",\"maxValue\":10}}",
			"created_at_timestamp":1700000000000,"creator_user_name":"ana@example.com"
		}`))

		p, err := client.Get(context.Background(), "A1")
		require.NoError(t, err)
		assert.Equal(t, "policy_id=A1", (*calls)[0].query)
		assert.Equal(t, "Data", p.Name)
		require.NotNil(t, p.MaxClustersPerUser)
		assert.Equal(t, 3, *p.MaxClustersPerUser)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), p.CreatedAt)
		c, ok := p.Definition.Get("num_workers")
		require.True(t, ok, "one-sided ranges are accepted as loaded")
		assert.Nil(t, c.MinValue)
	})

	t.Run("family based keeps overrides", func(t *testing.T) {
		client, _ := newTestClient(t, respond(`{
			"policy_id":"B2","name":"Personal","policy_family_id":"personal-vm",
			"policy_family_definition_overrides":"{\"autotermination_minutes\":{\"type\":\"fixed\",\"value\":30}}",
			"definition":"{\"autotermination_minutes\":{\"type\":\"fixed\",\"value\":30},\"num_workers\":{\"type\":\"fixed\",\"value\":0}}"
		}`))

		p, err := client.Get(context.Background(), "B2")
		require.NoError(t, err)
		assert.True(t, p.FamilyBased())
		assert.Len(t, p.Overrides, 1)
		assert.Len(t, p.Definition, 2)
		assert.Len(t, p.Draft().Overrides, 1)
	})

	t.Run("not found", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error_code":"RESOURCE_DOES_NOT_EXIST","message":"Policy X does not exist"}`)
		})

		_, err := client.Get(context.Background(), "X")
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("malformed definition", func(t *testing.T) {
		client, _ := newTestClient(t, respond(`{"policy_id":"A1","name":"Data","definition":"{\"num_workers\":{\"type\":\"range\"}}"}`))

		_, err := client.Get(context.Background(), "A1")
		require.Error(t, err)
		assert.True(t, services.IsExternalError(err))
	})
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error_code":"UNAUTHENTICATED","message":"bad token"}`, services.IsUnauthorizedError},
		{"forbidden", http.StatusForbidden, ``, services.IsUnauthorizedError},
		{"not found", http.StatusNotFound, ``, services.IsNotFoundError},
		{"invalid parameter", http.StatusBadRequest, `{"error_code":"INVALID_PARAMETER_VALUE","message":"bad definition"}`, services.IsValidationError},
		{"server error", http.StatusInternalServerError, `oops`, services.IsExternalError},
		{"throttled", http.StatusTooManyRequests, `{"error_code":"REQUEST_LIMIT_EXCEEDED"}`, services.IsExternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Create(context.Background(), models.PolicyRequest{Name: "x"})
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
			assert.Len(t, *calls, 1, "no retries")
			assert.Equal(t, tt.status, services.GetErrorDetails(err)["status"])
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{Host: server.URL}, nil, zaptest.NewLogger(t))
	_, err := client.ListNodeTypes(context.Background())
	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, respond(`{}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListZones(ctx)
	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
}

func TestClient_CatalogLists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/clusters/list-node-types", respond(`{"node_types":[
		{"node_type_id":"m5.large","description":"m5.large (8 GB)"},
		{"node_type_id":"i3.xlarge","description":"i3.xlarge"},
		{"node_type_id":"m4.large","is_deprecated":true}
	]}`))
	mux.HandleFunc("/api/2.0/clusters/list-zones", respond(`{"zones":["us-east-1b","us-east-1a","us-west-2a"],"default_zone":"us-east-1a"}`))
	mux.HandleFunc("/api/2.0/clusters/spark-versions", respond(`{"versions":[{"key":"15.3.x-scala2.12","name":"15.3 (Scala 2.12)"}]}`))
	mux.HandleFunc("/api/2.0/instance-pools/list", respond(`{"instance_pools":[{"instance_pool_id":"pool-1","instance_pool_name":"Warm pool"}]}`))
	mux.HandleFunc("/api/2.0/instance-profiles/list", respond(`{"instance_profiles":[{"instance_profile_arn":"arn:aws:iam::1:instance-profile/data"}]}`))
	mux.HandleFunc("/api/2.0/policy-families", respond(`{"policy_families":[{"policy_family_id":"personal-vm","name":"Personal Compute","definition":"{\"num_workers\":{\"type\":\"fixed\",\"value\":0}}"}]}`))
	mux.HandleFunc("/api/2.0/policy-families/personal-vm", respond(`{"policy_family_id":"personal-vm","name":"Personal Compute","definition":"{}"}`))

	client, _ := newTestClient(t, mux.ServeHTTP)
	ctx := context.Background()

	nodeTypes, err := client.ListNodeTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Option{{Value: "i3.xlarge", Label: "i3.xlarge"}, {Value: "m5.large", Label: "m5.large (8 GB)"}}, nodeTypes)

	zones, err := client.ListZones(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1a", "us-east-1b", "us-west-2a"}, models.OptionValues(zones))

	regions, err := client.ListRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, models.OptionValues(regions))

	versions, err := client.ListSparkVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "15.3 (Scala 2.12)", versions[0].Label)

	pools, err := client.ListInstancePools(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Option{{Value: "pool-1", Label: "Warm pool"}}, pools)

	profiles, err := client.ListInstanceProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:aws:iam::1:instance-profile/data"}, models.OptionValues(profiles))

	families, err := client.ListPolicyFamilies(ctx)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Contains(t, families[0].Definition, "num_workers")

	family, err := client.GetPolicyFamily(ctx, "personal-vm")
	require.NoError(t, err)
	assert.Equal(t, "Personal Compute", family.Name)
	assert.Empty(t, family.Definition)

	_, err = client.GetPolicyFamily(ctx, "nope")
	assert.True(t, services.IsNotFoundError(err))
}

func TestRegionOf(t *testing.T) {
	tests := map[string]string{
		"us-east-1a":    "us-east-1",
		"eu-west-2c":    "eu-west-2",
		"us-central1-b": "us-central1",
		"auto":          "auto",
		"westeurope":    "westeurope",
	}
	for zone, want := range tests {
		assert.Equal(t, want, regionOf(zone), zone)
	}
}
