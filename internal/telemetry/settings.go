// Package telemetry provides the proxy's OpenTelemetry integration: one span
// per proxied request/stream, with a no-op tracer when telemetry is disabled
// so the request path never branches on whether an exporter is configured.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures telemetry for a proxied request. Telemetry is disabled
// by default; span export additionally requires OTEL_EXPORTER_OTLP_ENDPOINT.
type Settings struct {
	// IsEnabled controls whether telemetry is active.
	IsEnabled bool

	// RecordHeaders controls whether request headers are attached to spans
	// (with Authorization/x-api-key always redacted regardless).
	RecordHeaders bool

	// RequestID is the per-request correlation ID from config.ProviderConfig.NextRequestID.
	RequestID uint64

	// Metadata contains additional key-value pairs to include in telemetry spans.
	Metadata map[string]attribute.Value

	// Tracer is a custom OpenTelemetry tracer. If nil, the global tracer will be used.
	Tracer trace.Tracer
}

// DefaultSettings returns Settings with telemetry disabled.
func DefaultSettings() *Settings {
	return &Settings{
		IsEnabled:     false,
		RecordHeaders: true,
		Metadata:      make(map[string]attribute.Value),
	}
}

// WithEnabled returns a copy of Settings with IsEnabled set to the given value.
func (s *Settings) WithEnabled(enabled bool) *Settings {
	c := *s
	c.IsEnabled = enabled
	return &c
}

// WithRequestID returns a copy of Settings carrying the given request ID.
func (s *Settings) WithRequestID(id uint64) *Settings {
	c := *s
	c.RequestID = id
	return &c
}

// WithTracer returns a copy of Settings with Tracer set to the given value.
func (s *Settings) WithTracer(tracer trace.Tracer) *Settings {
	c := *s
	c.Tracer = tracer
	return &c
}
