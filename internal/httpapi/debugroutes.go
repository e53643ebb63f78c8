package httpapi

import (
	"net/http"

	"github.com/digitallysavvy/anthropic-proxy/internal/translate"
)

// handleDebugRoutes implements GET /v1/debug/routes: it makes the
// model-capability table introspectable without reading source. It never
// contacts an upstream and answers 404 unless DEBUG is set (unlike
// /v1/debug/echo, which is always served).
func (h *handlers) handleDebugRoutes(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Debug {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"kind": "not_found", "message": "debug endpoints require DEBUG=true"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": translate.Capabilities(),
	})
}
