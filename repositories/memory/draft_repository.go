package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
)

// DraftRepository implements repositories.DraftRepository with a map. Drafts
// are lost on restart.
type DraftRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.DraftSession
}

// NewDraftRepository creates an empty in-memory draft repository
func NewDraftRepository() *DraftRepository {
	return &DraftRepository{sessions: make(map[string]*models.DraftSession)}
}

var _ repositories.DraftRepository = (*DraftRepository)(nil)

// Get retrieves a copy of the session draft
func (r *DraftRepository) Get(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("draft session %s: %w", sessionID, repositories.ErrNotFound)
	}
	return copySession(session), nil
}

// Save stores a copy of session
func (r *DraftRepository) Save(ctx context.Context, session *models.DraftSession) error {
	session.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID] = copySession(session)
	return nil
}

// Delete removes the session draft
func (r *DraftRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// DeleteStale removes drafts not updated since before
func (r *DraftRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, session := range r.sessions {
		if session.UpdatedAt.Before(before) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func copySession(s *models.DraftSession) *models.DraftSession {
	out := *s
	out.Editor = append(json.RawMessage(nil), s.Editor...)
	if s.Notification != nil {
		n := *s.Notification
		out.Notification = &n
	}
	return &out
}
