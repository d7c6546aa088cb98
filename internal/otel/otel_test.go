package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestXRayTraceID(t *testing.T) {
	tid, err := trace.TraceIDFromHex("5759e988bd862e3fe1be46a994272793")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid})
	span := trace.SpanFromContext(trace.ContextWithSpanContext(context.Background(), sc))

	assert.Equal(t, "1-5759e988-bd862e3fe1be46a994272793", XRayTraceID(span))
}
