package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

// AttributeResponse describes one attribute and the constraint modes it accepts
type AttributeResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Domain      corepolicy.Domain   `json:"domain"`
	Modes       []corepolicy.Mode   `json:"modes"`
	Min         *float64            `json:"min,omitempty"`
	Max         *float64            `json:"max,omitempty"`
	Integer     bool                `json:"integer,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Options     string              `json:"options,omitempty"`
	Suggest     bool                `json:"suggest,omitempty"`
	Wildcard    corepolicy.Wildcard `json:"wildcard,omitempty"`
}

// AttributeHandler serves the attribute catalog
type AttributeHandler struct {
	catalog *corepolicy.Catalog
	logger  *zap.Logger
}

// NewAttributeHandler creates a new AttributeHandler
func NewAttributeHandler(catalog *corepolicy.Catalog, logger *zap.Logger) *AttributeHandler {
	return &AttributeHandler{catalog: catalog, logger: logger}
}

// HandleList handles GET /api/v1/attributes
func (h *AttributeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles := h.catalog.Profiles()
	out := make([]AttributeResponse, len(profiles))
	for i, p := range profiles {
		out[i] = attributeToResponse(p)
	}
	_ = utils.WriteOK(w, out)
}

// HandleGet handles GET /api/v1/attributes/{name}. Materialized wildcard
// names such as custom_tags.team resolve to their wildcard profile.
func (h *AttributeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	profile, err := h.catalog.ProfileFor(name)
	if err != nil {
		profile, err = h.catalog.Resolve(name)
	}
	if err != nil {
		HandleServiceError(w, services.FromPolicyError(err), h.logger)
		return
	}
	_ = utils.WriteOK(w, attributeToResponse(profile))
}

func attributeToResponse(p corepolicy.Profile) AttributeResponse {
	return AttributeResponse{
		Name:        p.Name,
		Description: p.Description,
		Domain:      p.Domain,
		Modes:       p.Modes(),
		Min:         p.Min,
		Max:         p.Max,
		Integer:     p.Integer,
		Enum:        p.Enum,
		Options:     string(p.Options),
		Suggest:     p.Suggest,
		Wildcard:    p.Wildcard,
	}
}
