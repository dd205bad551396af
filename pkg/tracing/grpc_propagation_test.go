package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestGRPCPropagation(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", "r-1")

	var sent metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		sent, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	require.NoError(t, UnaryClientInterceptor()(ctx, "/inventory.v1.Inventory/CreateTransfer", nil, nil, nil, invoker))

	assert.Equal(t, []string{"r-1"}, sent.Get("x-request-id"))
	require.Len(t, sent.Get(TraceparentHeader), 1)

	got := trace.SpanContextFromContext(ExtractGRPC(metadata.NewIncomingContext(context.Background(), sent)))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestExtractGRPCWithoutMetadata(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ExtractGRPC(ctx))
}
