package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/middleware"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

// CatalogService serves the remote option lists
type CatalogService interface {
	Options(ctx context.Context, source corepolicy.OptionSourceName) ([]models.Option, error)
	Refresh() uint64
}

// CatalogHandler handles catalog option requests
type CatalogHandler struct {
	catalog CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleOptions handles GET /api/v1/catalog/{source}
func (h *CatalogHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	source := corepolicy.OptionSourceName(chi.URLParam(r, "source"))

	options, err := h.catalog.Options(ctx, source)
	if err != nil {
		h.logger.Debug("failed to load catalog options",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("source", string(source)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, options)
}

// RefreshResponse reports the catalog cursor after a refresh
type RefreshResponse struct {
	Cursor uint64 `json:"cursor"`
}

// HandleRefresh handles POST /api/v1/catalog/refresh
func (h *CatalogHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cursor := h.catalog.Refresh()

	h.logger.Info("catalog refresh requested",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Uint64("cursor", cursor))

	_ = utils.WriteOK(w, RefreshResponse{Cursor: cursor})
}
