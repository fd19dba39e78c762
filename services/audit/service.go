package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/cluster-policy-builder/internal/observability"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
	"go.uber.org/zap"
)

// AuditService records editor events asynchronously. Events are queued on a
// buffered channel and written in batches by a fixed pool of workers, so a
// slow audit store never delays a request.
type AuditService struct {
	auditRepo repositories.AuditRepository
	metrics   *observability.Metrics
	logger    *zap.Logger
	config    Config
	eventChan chan *models.AuditLog
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool
	dropped   atomic.Uint64
	written   atomic.Uint64
	mu        sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize    int           // Size of the event buffer channel
	WorkerCount   int           // Number of concurrent workers
	BatchSize     int           // Events written per InsertBatch call
	FlushInterval time.Duration // Upper bound on how long a partial batch waits
	WriteTimeout  time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    10000,
		WorkerCount:   4,
		BatchSize:     50,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, metrics *observability.Metrics, logger *zap.Logger, config Config) *AuditService {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo: auditRepo,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		eventChan: make(chan *models.AuditLog, config.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Int("buffer_size", s.config.BufferSize),
		zap.Int("batch_size", s.config.BatchSize))

	return nil
}

// Stop gracefully stops the audit service.
// Queued events are flushed before the workers exit.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.stopped = true
	pending := len(s.eventChan)
	// Holding the write lock guarantees no sender is mid-select on the channel.
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. When the buffer is full the
// event is dropped and counted.
func (s *AuditService) LogEvent(log *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.dropped.Add(1)
		s.metrics.RecordAuditEvent(string(log.Action), fmt.Errorf("dropped"))
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("session_id", log.SessionID))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogEventBlocking waits until the event is queued, the context is cancelled
// or the service stops.
func (s *AuditService) LogEventBlocking(ctx context.Context, log *models.AuditLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- log:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit service stopped")
	}
}

// Record builds an editor event and queues it.
func (s *AuditService) Record(sessionID, actor string, action models.AuditAction, policyID, policyName, requestID string, details interface{}) error {
	log := models.NewAuditLog(sessionID, actor, action).
		WithPolicy(policyID, policyName).
		WithRequest(requestID)
	if details != nil {
		log.WithDetails(details)
	}
	return s.LogEvent(log)
}

// SessionHistory returns the events of one editing session, newest first.
func (s *AuditService) SessionHistory(ctx context.Context, sessionID string, limit, offset int) ([]*models.AuditLog, error) {
	return s.auditRepo.GetBySessionID(ctx, sessionID, limit, offset)
}

// PolicyHistory returns the events that touched one remote policy, newest first.
func (s *AuditService) PolicyHistory(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error) {
	return s.auditRepo.GetByPolicyID(ctx, policyID, limit, offset)
}

// worker drains the channel, flushing whenever a batch fills up or the
// flush interval elapses.
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditLog, 0, s.config.BatchSize)
	for {
		select {
		case log, ok := <-s.eventChan:
			if !ok {
				s.flush(id, batch)
				s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
				return
			}
			batch = append(batch, log)
			if len(batch) >= s.config.BatchSize {
				s.flush(id, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(id, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *AuditService) flush(id int, batch []*models.AuditLog) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	// The repository may keep the slice, so hand it a copy.
	logs := make([]*models.AuditLog, len(batch))
	copy(logs, batch)

	err := s.auditRepo.InsertBatch(ctx, logs)
	for _, log := range logs {
		s.metrics.RecordAuditEvent(string(log.Action), err)
	}
	if err != nil {
		s.logger.Error("failed to write audit batch",
			zap.Int("worker_id", id),
			zap.Int("batch_size", len(logs)),
			zap.Error(err))
		return
	}
	s.written.Add(uint64(len(logs)))
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.config.BufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.config.WorkerCount,
		Started:       s.started && !s.stopped,
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int    `json:"buffer_size"`
	PendingEvents int    `json:"pending_events"`
	WorkerCount   int    `json:"worker_count"`
	Started       bool   `json:"started"`
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
}
