package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/config"
	"github.com/digitallysavvy/anthropic-proxy/internal/proxyerr"
	"github.com/digitallysavvy/anthropic-proxy/internal/translate"
)

// handleDebugEcho implements POST /v1/debug/echo: it returns the exact body
// that would have been sent upstream, without ever making the call.
// translatedPayload never contains the auth header, only the JSON body, so
// no secret reaches the response.
func (h *handlers) handleDebugEcho(w http.ResponseWriter, r *http.Request) {
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

	var (
		model     string
		payload   any
		translErr error
	)
	if h.cfg.EndpointKind == config.EndpointAnthropic {
		model = req.Model
		payload = json.RawMessage(body)
	} else {
		model = translate.SelectModel(h.cfg, &req)
		payload, translErr = translate.ToOpenAIRequest(h.cfg, &req)
	}
	if translErr != nil {
		writeTranslationErr(w, translErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":          h.cfg.ProviderLabel,
		"baseURL":           h.cfg.BaseURL,
		"endpointKind":      h.cfg.EndpointKind,
		"authHeaderName":    h.cfg.AuthHeaderName,
		"modelChosen":       model,
		"hasKey":            h.cfg.HasKey(),
		"translatedPayload": payload,
	})
}
