package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/proxyerr"
	"github.com/digitallysavvy/anthropic-proxy/internal/tokencount"
)

// handleCountTokens implements POST /v1/messages/count_tokens. It never
// contacts an upstream.
func (h *handlers) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeProxyError(w, proxyerr.Translation("failed to read request body", err))
		return
	}

	var req anthropicapi.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeProxyError(w, proxyerr.Translation("invalid JSON request body", err))
		return
	}

	writeJSON(w, http.StatusOK, anthropicapi.CountTokensResponse{
		InputTokens: tokencount.Estimate(&req),
	})
}
