package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/upb/cluster-policy-builder/internal/observability"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/repositories"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/services/policy"
	"go.uber.org/zap"
)

// Caller identifies who is acting on which session
type Caller struct {
	SessionID string
	Actor     string
	RequestID string
}

// AuditRecorder receives editor events
type AuditRecorder interface {
	Record(sessionID, actor string, action models.AuditAction, policyID, policyName, requestID string, details interface{}) error
	SessionHistory(ctx context.Context, sessionID string, limit, offset int) ([]*models.AuditLog, error)
	PolicyHistory(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error)
}

// View is the editor state returned to clients
type View struct {
	SessionID    string               `json:"session_id"`
	Editor       corepolicy.Editor    `json:"editor"`
	Toggles      []corepolicy.Toggle  `json:"toggles,omitempty"`
	Committed    string               `json:"committed,omitempty"`
	State        policy.State         `json:"state"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Service keeps one editor per session and routes editor operations to the
// constraint model and the submission coordinator.
type Service struct {
	drafts      repositories.DraftRepository
	builder     *corepolicy.Builder
	coordinator *policy.Coordinator
	audit       AuditRecorder
	metrics     *observability.Metrics
	logger      *zap.Logger
	locks       *keyedMutex
	now         func() time.Time
}

// NewService creates a new session Service
func NewService(
	drafts repositories.DraftRepository,
	builder *corepolicy.Builder,
	coordinator *policy.Coordinator,
	audit AuditRecorder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		drafts:      drafts,
		builder:     builder,
		coordinator: coordinator,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// Get returns the session's editor together with any pending notification.
// The notification is cleared once returned.
func (s *Service) Get(ctx context.Context, caller Caller) (*View, error) {
	unlock := s.locks.Lock(caller.SessionID)
	defer unlock()

	session, e, err := s.load(ctx, caller.SessionID)
	if err != nil {
		return nil, err
	}

	view := &View{SessionID: caller.SessionID, Editor: e, State: policy.StateDrafting}
	if n := session.TakeNotification(); n != nil {
		view.Notification = n
		if err := s.save(ctx, session, e); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Reset discards the draft and starts an empty standalone one
func (s *Service) Reset(ctx context.Context, caller Caller) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		s.record(caller, models.AuditActionDraftReset, e.Draft.ID, e.Draft.Name, nil)
		return &View{Editor: e.Reset()}, nil
	})
}

// StartFamily starts an empty draft bound to a policy family
func (s *Service) StartFamily(ctx context.Context, caller Caller, familyID string) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, err := s.coordinator.Start(ctx, familyID)
		if err != nil {
			return nil, err
		}
		s.record(caller, models.AuditActionDraftReset, "", "", map[string]string{"family_id": familyID})
		return &View{Editor: next}, nil
	})
}

// Load replaces the draft with a stored policy
func (s *Service) Load(ctx context.Context, caller Caller, policyID string) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, err := s.coordinator.Load(ctx, policyID)
		if err != nil {
			return nil, err
		}
		s.record(caller, models.AuditActionPolicyLoaded, next.Draft.ID, next.Draft.Name,
			map[string]interface{}{"family_id": next.Draft.FamilyID, "attributes": len(next.Draft.Target())})
		return &View{Editor: next}, nil
	})
}

// Clone turns the loaded policy into an unsaved copy
func (s *Service) Clone(ctx context.Context, caller Caller) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, err := s.coordinator.Clone(e)
		if err != nil {
			return nil, err
		}
		s.record(caller, models.AuditActionPolicyCloned, e.Draft.ID, e.Draft.Name, map[string]string{"copy_name": next.Draft.Name})
		return &View{Editor: next}, nil
	})
}

// SelectAttribute starts editing an attribute
func (s *Service) SelectAttribute(ctx context.Context, caller Caller, name string) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, err := e.SelectAttribute(s.builder.Catalog(), name)
		if err != nil {
			return nil, err
		}
		return &View{Editor: next}, nil
	})
}

// SelectMode switches the mode of the pending edit and returns its toggles
func (s *Service) SelectMode(ctx context.Context, caller Caller, mode corepolicy.Mode) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, toggles, err := e.SelectMode(s.builder, mode)
		if err != nil {
			return nil, err
		}
		return &View{Editor: next, Toggles: toggles}, nil
	})
}

// Stage merges inputs into the pending edit
func (s *Service) Stage(ctx context.Context, caller Caller, in corepolicy.Inputs) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, err := e.Stage(in)
		if err != nil {
			return nil, err
		}
		return &View{Editor: next}, nil
	})
}

// Commit builds the pending edit into the draft
func (s *Service) Commit(ctx context.Context, caller Caller) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, name, err := e.Commit(ctx, s.builder)
		s.metrics.RecordBuild(string(e.Edit.Mode), err)
		if err != nil {
			return nil, err
		}
		return &View{Editor: next, Committed: name}, nil
	})
}

// PutConstraint builds and stores a constraint in one step
func (s *Service) PutConstraint(ctx context.Context, caller Caller, req corepolicy.Request) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		next, name, err := e.PutConstraint(ctx, s.builder, req)
		s.metrics.RecordBuild(string(req.Mode), err)
		if err != nil {
			return nil, err
		}
		return &View{Editor: next, Committed: name}, nil
	})
}

// RemoveAttribute drops an attribute from the draft
func (s *Service) RemoveAttribute(ctx context.Context, caller Caller, name string) (*View, error) {
	return s.mutate(ctx, caller, func(e corepolicy.Editor) (*View, error) {
		if _, ok := e.Draft.Target().Get(name); !ok {
			return nil, services.NewDomainError(services.ErrorTypeNotFound,
				fmt.Sprintf("attribute %s is not set on the draft", name), nil).WithDetail("attribute", name)
		}
		return &View{Editor: e.RemoveAttribute(name)}, nil
	})
}

// Preview returns the effective definition with provenance
func (s *Service) Preview(ctx context.Context, caller Caller) ([]corepolicy.ResolvedEntry, error) {
	view, err := s.read(ctx, caller)
	if err != nil {
		return nil, err
	}
	return view.Editor.Preview(), nil
}

// Submit sends the draft to the workspace. A nil form is prefilled from the
// draft metadata. On success the editor is reset and the notification is kept
// for the next Get.
func (s *Service) Submit(ctx context.Context, caller Caller, form *policy.Form) (*View, error) {
	unlock := s.locks.Lock(caller.SessionID)
	defer unlock()

	session, e, err := s.load(ctx, caller.SessionID)
	if err != nil {
		return nil, err
	}

	f := policy.FormFor(e.Draft)
	if form != nil {
		f = *form
	}

	outcome, err := s.coordinator.Submit(ctx, caller.SessionID, e, f)
	if err != nil {
		s.record(caller, models.AuditActionPolicySubmitFailed, e.Draft.ID, f.Name, map[string]interface{}{
			"error_type": string(services.GetErrorType(err)),
			"error":      err.Error(),
		})
		return nil, err
	}

	action := models.AuditActionPolicyUpdated
	if outcome.Notification.Created {
		action = models.AuditActionPolicyCreated
	}
	s.record(caller, action, outcome.Notification.PolicyID, outcome.Notification.Name, map[string]interface{}{
		"family_id":  e.Draft.FamilyID,
		"attributes": len(e.Draft.Target()),
	})

	session.Notification = outcome.Notification
	if err := s.save(ctx, session, outcome.Editor); err != nil {
		return nil, err
	}
	return &View{SessionID: caller.SessionID, Editor: outcome.Editor, State: outcome.State}, nil
}

// History returns the audit trail of the caller's session
func (s *Service) History(ctx context.Context, caller Caller, limit, offset int) ([]*models.AuditLog, error) {
	if s.audit == nil {
		return []*models.AuditLog{}, nil
	}
	logs, err := s.audit.SessionHistory(ctx, caller.SessionID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to read session history", err)
	}
	return logs, nil
}

// PolicyHistory returns the audit trail of a stored policy
func (s *Service) PolicyHistory(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error) {
	if s.audit == nil {
		return []*models.AuditLog{}, nil
	}
	logs, err := s.audit.PolicyHistory(ctx, policyID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to read policy history", err)
	}
	return logs, nil
}

// CleanupStale removes drafts untouched for longer than maxAge
func (s *Service) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	removed, err := s.drafts.DeleteStale(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err)
	}
	if removed > 0 {
		s.logger.Info("removed stale drafts", zap.Int64("count", removed), zap.Duration("max_age", maxAge))
	}
	return removed, nil
}

// StartCleanupWorker periodically removes stale drafts until stopCh is closed
func (s *Service) StartCleanupWorker(interval, maxAge time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := s.CleanupStale(ctx, maxAge); err != nil {
					s.logger.Error("failed to clean up stale drafts", zap.Error(err))
				}
				cancel()
			case <-stopCh:
				return
			}
		}
	}()
}

// mutate loads the session editor, applies fn and saves the editor fn
// returned. Nothing is saved when fn fails.
func (s *Service) mutate(ctx context.Context, caller Caller, fn func(corepolicy.Editor) (*View, error)) (*View, error) {
	unlock := s.locks.Lock(caller.SessionID)
	defer unlock()

	session, e, err := s.load(ctx, caller.SessionID)
	if err != nil {
		return nil, err
	}

	view, err := fn(e)
	if err != nil {
		return nil, services.FromPolicyError(err)
	}

	if err := s.save(ctx, session, view.Editor); err != nil {
		return nil, err
	}
	view.SessionID = caller.SessionID
	view.State = policy.StateDrafting
	return view, nil
}

func (s *Service) read(ctx context.Context, caller Caller) (*View, error) {
	unlock := s.locks.Lock(caller.SessionID)
	defer unlock()

	_, e, err := s.load(ctx, caller.SessionID)
	if err != nil {
		return nil, err
	}
	return &View{SessionID: caller.SessionID, Editor: e, State: policy.StateDrafting}, nil
}

// load returns the stored session, or a fresh one holding an empty editor
func (s *Service) load(ctx context.Context, sessionID string) (*models.DraftSession, corepolicy.Editor, error) {
	session, err := s.drafts.Get(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.NewDraftSession(sessionID, nil), corepolicy.NewEditor(), nil
	}
	if err != nil {
		return nil, corepolicy.Editor{}, services.NewDomainError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err)
	}

	if len(session.Editor) == 0 {
		return session, corepolicy.NewEditor(), nil
	}
	var e corepolicy.Editor
	if err := json.Unmarshal(session.Editor, &e); err != nil {
		// A draft that no longer decodes is replaced rather than wedging the session.
		s.logger.Error("discarding undecodable draft", zap.String("session_id", sessionID), zap.Error(err))
		return session, corepolicy.NewEditor(), nil
	}
	return session, e, nil
}

func (s *Service) save(ctx context.Context, session *models.DraftSession, e corepolicy.Editor) error {
	data, err := json.Marshal(e)
	if err != nil {
		return services.WrapInternal("failed to encode draft", err)
	}
	session.Editor = data
	session.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, session); err != nil {
		return services.NewDomainError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err)
	}
	return nil
}

func (s *Service) record(caller Caller, action models.AuditAction, policyID, policyName string, details interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(caller.SessionID, caller.Actor, action, policyID, policyName, caller.RequestID, details); err != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("session_id", caller.SessionID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}
