package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
	"go.uber.org/zap"
)

// DraftRepository implements the repositories.DraftRepository interface
type DraftRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *DB, logger *zap.Logger) repositories.DraftRepository {
	return &DraftRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the draft of a session
func (r *DraftRepository) Get(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	query := `
		SELECT session_id, editor, notification, updated_at
		FROM draft_sessions
		WHERE session_id = $1
	`

	var (
		session      models.DraftSession
		editor       []byte
		notification []byte
	)
	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, sessionID).Scan(
		&session.SessionID,
		&editor,
		&notification,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft session %s: %w", sessionID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get draft session: %w", err)
	}

	session.Editor = json.RawMessage(editor)
	if len(notification) > 0 {
		var n models.Notification
		if err := json.Unmarshal(notification, &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		session.Notification = &n
	}
	return &session, nil
}

// Save creates or replaces the draft of a session
func (r *DraftRepository) Save(ctx context.Context, session *models.DraftSession) error {
	query := `
		INSERT INTO draft_sessions (session_id, editor, notification, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET editor = EXCLUDED.editor,
		    notification = EXCLUDED.notification,
		    updated_at = EXCLUDED.updated_at
	`

	var notification []byte
	if session.Notification != nil {
		data, err := json.Marshal(session.Notification)
		if err != nil {
			return fmt.Errorf("failed to encode notification: %w", err)
		}
		notification = data
	}
	session.UpdatedAt = time.Now()

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		session.SessionID,
		[]byte(session.Editor),
		notification,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft session: %w", err)
	}

	r.logger.Debug("draft session saved", zap.String("session_id", session.SessionID))
	return nil
}

// Delete removes the draft of a session
func (r *DraftRepository) Delete(ctx context.Context, sessionID string) error {
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, `DELETE FROM draft_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete draft session: %w", err)
	}
	return nil
}

// DeleteStale removes drafts not updated since before
func (r *DraftRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM draft_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted drafts: %w", err)
	}
	return n, nil
}
