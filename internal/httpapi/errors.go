package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/digitallysavvy/anthropic-proxy/internal/proxyerr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("anthropic-proxy: failed to write JSON response: %v", err)
	}
}

// writeProxyError renders a pre-stream error as a JSON body with the
// appropriate status. It must only be called before any response bytes have
// been written.
func writeProxyError(w http.ResponseWriter, err *proxyerr.Error) {
	writeJSON(w, err.HTTPStatus(), err.AsBody())
}
