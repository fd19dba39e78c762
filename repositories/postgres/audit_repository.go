package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
	"go.uber.org/zap"
)

const auditColumns = `id, session_id, actor, action, policy_id, policy_name, details, request_id, timestamp`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	txm    *TransactionManager
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		txm:    NewTransactionManager(db, logger),
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var details []byte
	if len(log.Details) > 0 {
		details = []byte(log.Details)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.SessionID,
		log.Actor,
		log.Action,
		log.PolicyID,
		log.PolicyName,
		details,
		log.RequestID,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// InsertBatch inserts all entries in one transaction
func (r *AuditRepository) InsertBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.txm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		for _, log := range logs {
			if err := r.Insert(ctx, log); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBySessionID retrieves audit logs of a session with pagination
func (r *AuditRepository) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE session_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryAuditLogs(ctx, query, sessionID, limit, offset)
}

// GetByPolicyID retrieves audit logs of a policy with pagination
func (r *AuditRepository) GetByPolicyID(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE policy_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryAuditLogs(ctx, query, policyID, limit, offset)
}

// queryAuditLogs is a helper function to query multiple audit logs
func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		var (
			log     models.AuditLog
			details []byte
		)
		err := rows.Scan(
			&log.ID,
			&log.SessionID,
			&log.Actor,
			&log.Action,
			&log.PolicyID,
			&log.PolicyName,
			&details,
			&log.RequestID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(details) > 0 {
			log.Details = json.RawMessage(details)
		}
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}
	return logs, nil
}
