package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOptions configures a telemetry span.
type SpanOptions struct {
	// Name is the operation name for the span, e.g.
	// "anthropic_proxy.forward_request" or "anthropic_proxy.stream_response".
	Name string

	// Attributes are key-value pairs attached to the span.
	Attributes []attribute.KeyValue

	// EndWhenDone controls whether the span should be ended automatically
	// when the function returns successfully.
	EndWhenDone bool
}

// RecordSpan creates and executes a telemetry span for one proxy operation.
// The span is automatically ended when the function completes, unless
// EndWhenDone is false. Errors are automatically recorded on the span.
func RecordSpan[T any](
	ctx context.Context,
	tracer trace.Tracer,
	opts SpanOptions,
	fn func(context.Context, trace.Span) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name,
		trace.WithAttributes(opts.Attributes...),
	)

	result, err := fn(ctx, span)

	if err != nil {
		RecordErrorOnSpan(span, err)
		span.End()
		var zero T
		return zero, err
	}

	if opts.EndWhenDone {
		span.End()
	}

	return result, nil
}

// RecordErrorOnSpan records an error on a span and sets the span status to error.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetBaseAttributes returns the common attributes attached to every proxy
// span: the resolved upstream provider/model and (redacted) request headers.
func GetBaseAttributes(
	provider string,
	modelID string,
	settings *Settings,
	headers map[string]string,
) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("anthropic_proxy.provider", provider),
		attribute.String("anthropic_proxy.model", modelID),
	}

	if settings != nil {
		if settings.RequestID != 0 {
			attrs = append(attrs, attribute.Int64("anthropic_proxy.request_id", int64(settings.RequestID)))
		}
		for key, value := range settings.Metadata {
			attrs = append(attrs, attribute.KeyValue{
				Key:   attribute.Key("anthropic_proxy.metadata." + key),
				Value: value,
			})
		}
	}

	if settings == nil || !settings.RecordHeaders {
		return attrs
	}

	for key, value := range headers {
		// Never attach anything that could be or contain a credential.
		lower := strings.ToLower(key)
		if lower == "authorization" || lower == "x-api-key" || lower == "api-key" {
			continue
		}
		attrs = append(attrs, attribute.String("anthropic_proxy.request.header."+key, value))
	}

	return attrs
}

// AddStreamAttributes records the final accounting of a completed stream
// (block counts, token usage) on its span once the stream closes.
func AddStreamAttributes(span trace.Span, blockCount, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.Int("anthropic_proxy.stream.blocks", blockCount),
		attribute.Int("anthropic_proxy.usage.input_tokens", inputTokens),
		attribute.Int("anthropic_proxy.usage.output_tokens", outputTokens),
	)
}
