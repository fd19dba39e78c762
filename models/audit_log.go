package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of editor event being audited
type AuditAction string

const (
	AuditActionPolicyLoaded       AuditAction = "policy_loaded"
	AuditActionPolicyCloned       AuditAction = "policy_cloned"
	AuditActionDraftReset         AuditAction = "draft_reset"
	AuditActionPolicyCreated      AuditAction = "policy_created"
	AuditActionPolicyUpdated      AuditAction = "policy_updated"
	AuditActionPolicySubmitFailed AuditAction = "policy_submit_failed"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	Actor      string          `json:"actor" db:"actor"`
	Action     AuditAction     `json:"action" db:"action"`
	PolicyID   *string         `json:"policy_id,omitempty" db:"policy_id"`
	PolicyName string          `json:"policy_name" db:"policy_name"`
	Details    json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	RequestID  string          `json:"request_id" db:"request_id"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(sessionID, actor string, action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		SessionID: sessionID,
		Actor:     actor,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// WithPolicy sets the affected policy. An empty id leaves PolicyID unset.
func (a *AuditLog) WithPolicy(id, name string) *AuditLog {
	if id != "" {
		a.PolicyID = &id
	}
	a.PolicyName = name
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}
