package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/middleware"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/services/policy"
	"github.com/upb/cluster-policy-builder/services/session"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

// SessionService defines the editor operations available over HTTP
type SessionService interface {
	Get(ctx context.Context, caller session.Caller) (*session.View, error)
	Reset(ctx context.Context, caller session.Caller) (*session.View, error)
	StartFamily(ctx context.Context, caller session.Caller, familyID string) (*session.View, error)
	Load(ctx context.Context, caller session.Caller, policyID string) (*session.View, error)
	Clone(ctx context.Context, caller session.Caller) (*session.View, error)
	SelectAttribute(ctx context.Context, caller session.Caller, name string) (*session.View, error)
	SelectMode(ctx context.Context, caller session.Caller, mode corepolicy.Mode) (*session.View, error)
	Stage(ctx context.Context, caller session.Caller, in corepolicy.Inputs) (*session.View, error)
	Commit(ctx context.Context, caller session.Caller) (*session.View, error)
	PutConstraint(ctx context.Context, caller session.Caller, req corepolicy.Request) (*session.View, error)
	RemoveAttribute(ctx context.Context, caller session.Caller, name string) (*session.View, error)
	Preview(ctx context.Context, caller session.Caller) ([]corepolicy.ResolvedEntry, error)
	Submit(ctx context.Context, caller session.Caller, form *policy.Form) (*session.View, error)
	History(ctx context.Context, caller session.Caller, limit, offset int) ([]*models.AuditLog, error)
}

// SelectAttributeRequest starts editing an attribute
type SelectAttributeRequest struct {
	Attribute string `json:"attribute" validate:"notblank"`
}

// SelectModeRequest switches the mode of the pending edit
type SelectModeRequest struct {
	Mode string `json:"mode" validate:"notblank"`
}

// StartFamilyRequest starts a draft bound to a policy family
type StartFamilyRequest struct {
	FamilyID string `json:"family_id" validate:"notblank"`
}

// SessionHandler handles editor session requests
type SessionHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// callerFrom builds the session caller from the request context
func callerFrom(r *http.Request) session.Caller {
	ctx := r.Context()
	return session.Caller{
		SessionID: middleware.GetSessionIDFromContext(ctx),
		Actor:     middleware.GetUserFromContext(ctx).DisplayName(),
		RequestID: middleware.GetRequestIDFromContext(ctx),
	}
}

// respond writes a view or maps the error
func (h *SessionHandler) respond(w http.ResponseWriter, view *session.View, err error) {
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, view)
}

// decode reads and validates a request body. It writes the error response
// and returns false when the body is unusable.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleDecodeError(w, err, h.logger)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleDecodeError(w, err, h.logger)
		return false
	}
	return true
}

// HandleGet handles GET /api/v1/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(r.Context(), callerFrom(r))
	h.respond(w, view, err)
}

// HandleReset handles POST /api/v1/session/reset
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Reset(r.Context(), callerFrom(r))
	h.respond(w, view, err)
}

// HandleStartFamily handles POST /api/v1/session/family
func (h *SessionHandler) HandleStartFamily(w http.ResponseWriter, r *http.Request) {
	var req StartFamilyRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.sessions.StartFamily(r.Context(), callerFrom(r), req.FamilyID)
	h.respond(w, view, err)
}

// HandleLoad handles POST /api/v1/session/load/{id}
func (h *SessionHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Load(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	h.respond(w, view, err)
}

// HandleClone handles POST /api/v1/session/clone
func (h *SessionHandler) HandleClone(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Clone(r.Context(), callerFrom(r))
	h.respond(w, view, err)
}

// HandleSelectAttribute handles POST /api/v1/session/attribute
func (h *SessionHandler) HandleSelectAttribute(w http.ResponseWriter, r *http.Request) {
	var req SelectAttributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.sessions.SelectAttribute(r.Context(), callerFrom(r), req.Attribute)
	h.respond(w, view, err)
}

// HandleSelectMode handles POST /api/v1/session/mode
func (h *SessionHandler) HandleSelectMode(w http.ResponseWriter, r *http.Request) {
	var req SelectModeRequest
	if !h.decode(w, r, &req) {
		return
	}
	mode, err := corepolicy.ParseMode(req.Mode)
	if err != nil {
		HandleServiceError(w, services.FromPolicyError(corepolicy.Invalid("type", "%v", err)), h.logger)
		return
	}
	view, err := h.sessions.SelectMode(r.Context(), callerFrom(r), mode)
	h.respond(w, view, err)
}

// HandleStage handles PATCH /api/v1/session/inputs
func (h *SessionHandler) HandleStage(w http.ResponseWriter, r *http.Request) {
	var in corepolicy.Inputs
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.sessions.Stage(r.Context(), callerFrom(r), in)
	h.respond(w, view, err)
}

// HandleCommit handles POST /api/v1/session/commit
func (h *SessionHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Commit(r.Context(), callerFrom(r))
	h.respond(w, view, err)
}

// HandlePutConstraint handles PUT /api/v1/session/constraints
func (h *SessionHandler) HandlePutConstraint(w http.ResponseWriter, r *http.Request) {
	var req corepolicy.Request
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.sessions.PutConstraint(r.Context(), callerFrom(r), req)
	h.respond(w, view, err)
}

// HandleRemoveConstraint handles DELETE /api/v1/session/constraints/{name}
func (h *SessionHandler) HandleRemoveConstraint(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.RemoveAttribute(r.Context(), callerFrom(r), chi.URLParam(r, "name"))
	h.respond(w, view, err)
}

// HandlePreview handles GET /api/v1/session/preview
func (h *SessionHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sessions.Preview(r.Context(), callerFrom(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, entries)
}

// HandleSubmit handles POST /api/v1/session/submit. An empty body submits
// with the draft's own name and description.
func (h *SessionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFrom(r)

	var form *policy.Form
	if err := utils.DecodeJSON(r, &form); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	view, err := h.sessions.Submit(ctx, caller, form)
	if err != nil {
		h.logger.Info("policy submission failed",
			zap.String("request_id", caller.RequestID),
			zap.String("session_id", caller.SessionID),
			zap.String("error_type", string(services.GetErrorType(err))))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy submitted",
		zap.String("request_id", caller.RequestID),
		zap.String("session_id", caller.SessionID))
	_ = utils.WriteOK(w, view)
}

// HandleHistory handles GET /api/v1/session/history
func (h *SessionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	logs, err := h.sessions.History(r.Context(), callerFrom(r), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, logs)
}
