package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
)

// AuditRepository implements repositories.AuditRepository in memory
type AuditRepository struct {
	mu   sync.RWMutex
	logs []*models.AuditLog
}

// NewAuditRepository creates an empty in-memory audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)

// Insert stores a copy of log
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	entry := *log
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, &entry)
	return nil
}

// InsertBatch stores every entry
func (r *AuditRepository) InsertBatch(ctx context.Context, logs []*models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, log := range logs {
		entry := *log
		r.logs = append(r.logs, &entry)
	}
	return nil
}

// GetBySessionID retrieves audit logs of a session, newest first
func (r *AuditRepository) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.AuditLog, error) {
	return r.query(func(l *models.AuditLog) bool { return l.SessionID == sessionID }, limit, offset), nil
}

// GetByPolicyID retrieves audit logs of a policy, newest first
func (r *AuditRepository) GetByPolicyID(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error) {
	return r.query(func(l *models.AuditLog) bool { return l.PolicyID != nil && *l.PolicyID == policyID }, limit, offset), nil
}

// Len returns the number of stored entries
func (r *AuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs)
}

func (r *AuditRepository) query(match func(*models.AuditLog) bool, limit, offset int) []*models.AuditLog {
	r.mu.RLock()
	results := make([]*models.AuditLog, 0)
	for _, l := range r.logs {
		if match(l) {
			entry := *l
			results = append(results, &entry)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if offset >= len(results) {
		return []*models.AuditLog{}
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}
