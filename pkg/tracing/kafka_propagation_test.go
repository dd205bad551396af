package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("OrderCreated")}})
	assert.Equal(t, "OrderCreated", HeaderValue(headers, "event_type"))
	assert.Equal(t, Traceparent(ctx), HeaderValue(headers, TraceparentHeader))

	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}

func TestHeaderValueMissing(t *testing.T) {
	assert.Empty(t, HeaderValue(nil, "tenant_id"))
	assert.Empty(t, Traceparent(context.Background()))
}
