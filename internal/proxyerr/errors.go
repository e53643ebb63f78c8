// Package proxyerr defines the proxy's error taxonomy: a small, closed set of
// machine-readable kinds so the HTTP surface and the streaming coordinator can
// agree on how to report a failure without inspecting error strings.
package proxyerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable classification of a proxy error.
type Kind string

const (
	// KindConfig means the provider configuration is unusable (e.g. no API key).
	KindConfig Kind = "config"
	// KindUpstreamHTTP means the upstream returned a non-2xx HTTP response.
	KindUpstreamHTTP Kind = "upstream_http"
	// KindUpstreamParse means the upstream response body could not be parsed.
	KindUpstreamParse Kind = "upstream_parse"
	// KindTranslation means the inbound request could not be translated.
	KindTranslation Kind = "translation"
	// KindTransport means the upstream connection failed below the HTTP layer.
	KindTransport Kind = "transport"
	// KindCanceled means the client disconnected or the context was canceled.
	KindCanceled Kind = "canceled"
)

// Error is the proxy's error type. It carries enough structure to render
// either a JSON error body (before headers are sent) or an SSE error event
// (after headers are sent).
type Error struct {
	Kind Kind
	// Provider is the configured provider label, when relevant (upstream_http).
	Provider string
	// Status is the upstream HTTP status code, when Kind is KindUpstreamHTTP.
	Status int
	// Message is a redacted, user-facing message. It must never contain a key.
	Message string
	// Cause is the underlying error, kept for logging only.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the default HTTP status for this error when it is
// reported before any response byte has been written.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig, KindTranslation:
		return http.StatusBadRequest
	case KindUpstreamHTTP:
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	case KindUpstreamParse, KindTransport:
		return http.StatusBadGateway
	case KindCanceled:
		return 499 // client closed request; non-standard but widely used (nginx convention)
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON shape written for a pre-stream error response.
type Body struct {
	Error BodyDetail `json:"error"`
}

// BodyDetail is the inner `error` object of Body.
type BodyDetail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// AsBody renders the error as the wire JSON body for a pre-stream response.
func (e *Error) AsBody() Body {
	return Body{Error: BodyDetail{Kind: e.Kind, Message: e.Message}}
}

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Config builds a KindConfig error.
func Config(message string, cause error) *Error { return newErr(KindConfig, message, cause) }

// Translation builds a KindTranslation error.
func Translation(message string, cause error) *Error {
	return newErr(KindTranslation, message, cause)
}

// Transport builds a KindTransport error.
func Transport(message string, cause error) *Error { return newErr(KindTransport, message, cause) }

// UpstreamParse builds a KindUpstreamParse error.
func UpstreamParse(message string, cause error) *Error {
	return newErr(KindUpstreamParse, message, cause)
}

// Canceled builds a KindCanceled error.
func Canceled(cause error) *Error {
	return newErr(KindCanceled, "request canceled", cause)
}

// UpstreamHTTP builds a KindUpstreamHTTP error carrying the provider label,
// the upstream status code, and a redacted excerpt of the upstream body.
func UpstreamHTTP(provider string, status int, bodyExcerpt string) *Error {
	return &Error{
		Kind:     KindUpstreamHTTP,
		Provider: provider,
		Status:   status,
		Message:  fmt.Sprintf("upstream %s returned HTTP %d: %s", provider, status, bodyExcerpt),
	}
}

// As reports whether err is (or wraps) an *Error, writing it into target.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
