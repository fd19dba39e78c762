package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/cluster-policy-builder/internal/policy"
)

// User tests
func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     User
		expected string
	}{
		{"user name wins", User{Subject: "123", UserName: "ana", Email: "ana@example.com"}, "ana"},
		{"email fallback", User{Subject: "123", Email: "ana@example.com"}, "ana@example.com"},
		{"subject fallback", User{Subject: "123"}, "123"},
		{"anonymous", Anonymous, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.DisplayName())
		})
	}
}

// Policy tests
func TestPolicy_Draft(t *testing.T) {
	limit := 2

	t.Run("standalone", func(t *testing.T) {
		p := &Policy{
			ID:                 "ABC123",
			Name:               "Team",
			MaxClustersPerUser: &limit,
			Definition:         policy.Definition{"num_workers": policy.Fixed(policy.NumberScalar(2))},
			Libraries:          json.RawMessage(`[{"jar":"dbfs:/a.jar"}]`),
		}

		d := p.Draft()
		assert.Equal(t, "ABC123", d.ID)
		assert.Equal(t, 2, *d.MaxClustersPerUser)
		assert.Len(t, d.Definition, 1)
		assert.Nil(t, d.Overrides)
		assert.JSONEq(t, `[{"jar":"dbfs:/a.jar"}]`, string(d.Libraries))

		d.Definition.Remove("num_workers")
		assert.Len(t, p.Definition, 1)
	})

	t.Run("family based keeps overrides only", func(t *testing.T) {
		p := &Policy{
			ID:         "DEF456",
			Name:       "Personal",
			FamilyID:   "personal-vm",
			Definition: policy.Definition{"num_workers": policy.Fixed(policy.NumberScalar(0))},
			Overrides:  policy.Definition{"autotermination_minutes": policy.Fixed(policy.NumberScalar(30))},
		}

		d := p.Draft()
		assert.True(t, d.FamilyBased())
		assert.Nil(t, d.Definition)
		assert.Contains(t, d.Overrides, "autotermination_minutes")
		assert.Equal(t, PolicySummary{ID: "DEF456", Name: "Personal", FamilyID: "personal-vm"}, p.Summary())
	})
}

func TestPolicyRequest_JSON(t *testing.T) {
	req := PolicyRequest{
		Name:       "Team Policy",
		Definition: policy.Definition{"aws_attributes.availability": policy.Fixed(policy.StringScalar("SPOT"))},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Team Policy",
		"definition": {"aws_attributes.availability": {"type": "fixed", "value": "SPOT"}}
	}`, string(data))
}

func TestOptionValues(t *testing.T) {
	options := []Option{{Value: "m5.large", Label: "m5.large (8 GB)"}, {Value: "i3.xlarge"}}
	assert.Equal(t, []string{"m5.large", "i3.xlarge"}, OptionValues(options))
	assert.Empty(t, OptionValues(nil))
}

// DraftSession tests
func TestDraftSession_TakeNotification(t *testing.T) {
	s := NewDraftSession("session-1", json.RawMessage(`{}`))
	assert.Equal(t, "draft_sessions", s.TableName())
	assert.False(t, s.UpdatedAt.IsZero())
	assert.Nil(t, s.TakeNotification())

	s.Notification = &Notification{PolicyID: "ABC", Name: "Team", Created: true}
	n := s.TakeNotification()
	require.NotNil(t, n)
	assert.Equal(t, "ABC", n.PolicyID)
	assert.Nil(t, s.TakeNotification())
}

// AuditLog tests
func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog("session-1", "ana", AuditActionPolicyCreated)

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, "session-1", log.SessionID)
	assert.Equal(t, "ana", log.Actor)
	assert.Equal(t, AuditActionPolicyCreated, log.Action)
	assert.False(t, log.Timestamp.IsZero())
}

func TestAuditLog_BuilderMethods(t *testing.T) {
	details := map[string]interface{}{"attributes": 3}

	log := NewAuditLog("session-1", "ana", AuditActionPolicyUpdated).
		WithPolicy("ABC123", "Team").
		WithDetails(details).
		WithRequest("req-1")

	require.NotNil(t, log.PolicyID)
	assert.Equal(t, "ABC123", *log.PolicyID)
	assert.Equal(t, "Team", log.PolicyName)
	assert.JSONEq(t, `{"attributes":3}`, string(log.Details))
	assert.Equal(t, "req-1", log.RequestID)

	draft := NewAuditLog("session-1", "ana", AuditActionDraftReset).WithPolicy("", "")
	assert.Nil(t, draft.PolicyID)
}

func TestAuditLog_TableName(t *testing.T) {
	assert.Equal(t, "audit_logs", AuditLog{}.TableName())
}
