package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/config"
	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/proxyerr"
	"github.com/digitallysavvy/anthropic-proxy/internal/streaming"
	"github.com/digitallysavvy/anthropic-proxy/internal/telemetry"
	"github.com/digitallysavvy/anthropic-proxy/internal/translate"
	"github.com/digitallysavvy/anthropic-proxy/internal/upstream"
)

const maxRequestBody = 32 * 1024 * 1024

// handleMessages implements POST /v1/messages, the core translate,
// call-upstream, adapt-response pipeline.
func (h *handlers) handleMessages(w http.ResponseWriter, r *http.Request) {
	reqID := h.cfg.NextRequestID()

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeProxyError(w, proxyerr.Translation("failed to read request body", err))
		return
	}
	if len(rawBody) > maxRequestBody {
		writeProxyError(w, proxyerr.Translation("request body too large", nil))
		return
	}

	var req anthropicapi.Request
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeProxyError(w, proxyerr.Translation("invalid JSON request body", err))
		return
	}
	if len(req.Messages) == 0 {
		writeProxyError(w, proxyerr.Translation("messages must not be empty", nil))
		return
	}
	if !h.cfg.HasKey() {
		writeProxyError(w, proxyerr.Config(config.ConfigError(h.cfg.ProviderLabel), nil))
		return
	}

	settings := telemetry.DefaultSettings().WithRequestID(reqID)
	if h.cfg.Debug {
		// Span export is still gated on OTEL_EXPORTER_OTLP_ENDPOINT at the
		// SDK level; DEBUG only turns on span recording.
		settings = settings.WithEnabled(true)
	}
	ctx := r.Context()

	if h.cfg.EndpointKind == config.EndpointAnthropic {
		h.forwardAnthropicNative(ctx, w, &req, rawBody, reqID)
		return
	}
	h.forwardOpenAI(ctx, w, &req, settings, reqID)
}

func (h *handlers) forwardOpenAI(ctx context.Context, w http.ResponseWriter, req *anthropicapi.Request, settings *telemetry.Settings, reqID uint64) {
	model := translate.SelectModel(h.cfg, req)

	openaiReq, err := translate.ToOpenAIRequest(h.cfg, req)
	if err != nil {
		writeTranslationErr(w, err)
		return
	}

	if h.cfg.Debug && len(req.Tools) > 0 {
		if capRow := translate.LookupCapability(model); capRow.ToolConcurrencyWarning {
			log.Printf("anthropic-proxy: req#%d debug: model %q has known tool-concurrency issues (%d tools declared)", reqID, model, len(req.Tools))
		}
	}

	attrs := telemetry.GetBaseAttributes(h.cfg.ProviderLabel, model, settings, nil)
	client := upstream.New(h.cfg)
	tracer := telemetry.GetTracer(settings)

	if req.Stream {
		_, err = telemetry.RecordSpan(ctx, tracer, telemetry.SpanOptions{Name: "anthropic_proxy.stream_response", Attributes: attrs, EndWhenDone: true},
			func(ctx context.Context, span trace.Span) (any, error) {
				return nil, h.streamOpenAI(ctx, w, client, openaiReq, model, span)
			})
		if err != nil {
			log.Printf("anthropic-proxy: req#%d stream error: %v", reqID, err)
		}
		return
	}

	var resp openaiapi.ChatResponse
	err = client.DoJSON(ctx, "/chat/completions", openaiReq, &resp)
	if err != nil {
		writeUpstreamErr(w, h.cfg.ProviderLabel, err)
		return
	}
	out := translate.FromOpenAIResponse(&resp, model)
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) streamOpenAI(ctx context.Context, w http.ResponseWriter, client *upstream.Client, openaiReq *openaiapi.ChatRequest, model string, span trace.Span) error {
	resp, err := client.DoStream(ctx, "/chat/completions", openaiReq)
	if err != nil {
		writeUpstreamErr(w, h.cfg.ProviderLabel, err)
		return err
	}
	defer resp.Body.Close()

	coord, err := streaming.NewCoordinator(w, model, h.cfg.Debug)
	if err != nil {
		writeProxyError(w, proxyerr.Transport(err.Error(), err))
		return err
	}
	err = coord.ForwardOpenAI(ctx, resp.Body)
	inputTokens, outputTokens, blocks := coord.Usage()
	telemetry.AddStreamAttributes(span, blocks, inputTokens, outputTokens)
	return err
}

func (h *handlers) forwardAnthropicNative(ctx context.Context, w http.ResponseWriter, req *anthropicapi.Request, rawBody []byte, reqID uint64) {
	if err := rejectUnsupportedImages(req); err != nil {
		writeTranslationErr(w, err)
		return
	}

	client := upstream.New(h.cfg)

	if req.Stream {
		resp, err := client.DoRaw(ctx, "/messages", rawBody, true)
		if err != nil {
			writeUpstreamErr(w, h.cfg.ProviderLabel, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			writeUpstreamErr(w, h.cfg.ProviderLabel, &upstream.HTTPError{Status: resp.StatusCode, Body: string(body)})
			return
		}
		if err := streaming.ForwardAnthropicNative(ctx, w, resp.Body); err != nil {
			log.Printf("anthropic-proxy: req#%d anthropic-native stream error: %v", reqID, err)
		}
		return
	}

	resp, err := client.DoRaw(ctx, "/messages", rawBody, false)
	if err != nil {
		writeUpstreamErr(w, h.cfg.ProviderLabel, err)
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeProxyError(w, proxyerr.Transport("failed to read upstream response", err))
		return
	}
	if resp.StatusCode >= 400 {
		writeUpstreamErr(w, h.cfg.ProviderLabel, &upstream.HTTPError{Status: resp.StatusCode, Body: excerptBody(body)})
		return
	}
	var probe map[string]any
	if err := json.Unmarshal(body, &probe); err != nil {
		writeProxyError(w, proxyerr.UpstreamParse("upstream returned non-JSON body", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func rejectUnsupportedImages(req *anthropicapi.Request) *proxyerr.Error {
	capRow := translate.LookupCapability(req.Model)
	if capRow.ImageInput {
		return nil
	}
	for _, m := range req.Messages {
		blocks, err := m.DecodeContent()
		if err != nil {
			continue
		}
		for _, b := range blocks {
			if b.Type == "image" {
				return proxyerr.Translation(fmt.Sprintf("model %q does not advertise image support", req.Model), nil)
			}
		}
	}
	return nil
}

func writeTranslationErr(w http.ResponseWriter, err error) {
	var pe *proxyerr.Error
	if proxyerr.As(err, &pe) {
		writeProxyError(w, pe)
		return
	}
	writeProxyError(w, proxyerr.Translation(err.Error(), err))
}

func writeUpstreamErr(w http.ResponseWriter, provider string, err error) {
	var httpErr *upstream.HTTPError
	if errors.As(err, &httpErr) {
		writeProxyError(w, proxyerr.UpstreamHTTP(provider, httpErr.Status, httpErr.Body))
		return
	}
	var parseErr *upstream.ParseError
	if errors.As(err, &parseErr) {
		writeProxyError(w, proxyerr.UpstreamParse("upstream returned an unparseable response body", err))
		return
	}
	writeProxyError(w, proxyerr.Transport("upstream request failed", err))
}

func excerptBody(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max]) + "...(truncated)"
	}
	return string(body)
}
