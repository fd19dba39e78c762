package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/cluster-policy-builder/middleware"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PolicyLister lists stored policies through the catalog cache
type PolicyLister interface {
	Policies(ctx context.Context, query string) ([]models.PolicySummary, error)
}

// PolicyGetter fetches one stored policy
type PolicyGetter interface {
	Get(ctx context.Context, id string) (*models.Policy, error)
}

// PolicyHistory returns the audit trail of a stored policy
type PolicyHistory interface {
	PolicyHistory(ctx context.Context, policyID string, limit, offset int) ([]*models.AuditLog, error)
}

// PolicyHandler handles read access to stored policies
type PolicyHandler struct {
	lister  PolicyLister
	store   PolicyGetter
	history PolicyHistory
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(lister PolicyLister, store PolicyGetter, history PolicyHistory, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		lister:  lister,
		store:   store,
		history: history,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/v1/policies?q=
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	query := r.URL.Query().Get("q")

	policies, err := h.lister.Policies(ctx, query)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed policies",
		zap.String("request_id", requestID),
		zap.String("query", query),
		zap.Int("count", len(policies)))

	_ = utils.WriteOK(w, policies)
}

// HandleGetPolicy handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	p, err := h.store.Get(ctx, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, p)
}

// HandlePolicyHistory handles GET /api/v1/policies/{id}/history
func (h *PolicyHandler) HandlePolicyHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	logs, err := h.history.PolicyHistory(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, logs)
}

var (
	errBadLimit  = errors.New("limit must be a positive integer")
	errBadOffset = errors.New("offset must be a non-negative integer")
)

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (int, int, error) {
	limit := defaultPageSize
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, errBadLimit
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errBadOffset
		}
		offset = n
	}

	return limit, offset, nil
}
