package handlers

import (
	"net/http"

	"github.com/upb/cluster-policy-builder/utils"
)

// Version is overridden at build time with -ldflags "-X ...handlers.Version=..."
var Version = "dev"

// StatusResponse describes the running service
type StatusResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	DraftStore  string `json:"draft_store"`
	Workspace   string `json:"workspace,omitempty"`
	Attributes  int    `json:"attributes"`
}

// StatusHandler handles GET /api/v1/status
func StatusHandler(status StatusResponse) http.HandlerFunc {
	if status.Version == "" {
		status.Version = Version
	}
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, status)
	}
}
