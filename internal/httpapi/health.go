package httpapi

import "net/http"

// handleHealth implements GET /health.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      Version,
		"provider":     h.cfg.ProviderLabel,
		"endpointKind": h.cfg.EndpointKind,
	})
}
