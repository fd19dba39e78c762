package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/upb/cluster-policy-builder/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DraftRepository stores the editor state of each session
type DraftRepository interface {
	// Get retrieves the draft of a session. Returns ErrNotFound when the
	// session has none.
	Get(ctx context.Context, sessionID string) (*models.DraftSession, error)

	// Save creates or replaces the draft of a session
	Save(ctx context.Context, session *models.DraftSession) error

	// Delete removes the draft of a session
	Delete(ctx context.Context, sessionID string) error

	// DeleteStale removes drafts not updated since before
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// InsertBatch inserts several entries atomically
	InsertBatch(ctx context.Context, logs []*models.AuditLog) error

	// GetBySessionID retrieves audit logs of a session, newest first
	GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.AuditLog, error)

	// GetByPolicyID retrieves audit logs that touched a policy, newest first
	GetByPolicyID(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Drafts    DraftRepository
	AuditLogs AuditRepository
}
