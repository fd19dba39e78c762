package models

import (
	"encoding/json"
	"time"
)

// DraftSession holds the persisted editor state of one session
type DraftSession struct {
	SessionID    string          `json:"session_id" db:"session_id"`
	Editor       json.RawMessage `json:"editor" db:"editor"` // JSONB encoded policy.Editor
	Notification *Notification   `json:"notification,omitempty" db:"notification"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the DraftSession model
func (DraftSession) TableName() string {
	return "draft_sessions"
}

// NewDraftSession creates a new DraftSession instance
func NewDraftSession(sessionID string, editor json.RawMessage) *DraftSession {
	return &DraftSession{
		SessionID: sessionID,
		Editor:    editor,
		UpdatedAt: time.Now(),
	}
}

// TakeNotification returns the pending notification and clears it
func (s *DraftSession) TakeNotification() *Notification {
	n := s.Notification
	s.Notification = nil
	return n
}
