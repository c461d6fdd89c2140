package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenforge/lumenforge/internal/config"
	"github.com/lumenforge/lumenforge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{}, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_RejectsUnsupportedProtocol(t *testing.T) {
	_, err := Init(context.Background(), config.ObservabilityConfig{
		OTLPEndpoint: "localhost:4318",
		OTLPProtocol: "grpc",
		ServiceName:  "lumenapi",
	}, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OTLP protocol")
}

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := StartSpan(context.Background(), "lumenapi/test", "iam.GetRoles",
		attribute.String(AttrPrincipalSubject, "subject-1"),
	)
	AddEvent(span, "roles.privileged")
	RecordError(span, errors.New("database unavailable"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "iam.GetRoles", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "database unavailable", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(AttrPrincipalSubject, "subject-1"))
	require.Len(t, spans[0].Events(), 2) // custom event plus the recorded exception
}

func TestInit_InstallsProvider(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	shutdown, err := Init(context.Background(), config.ObservabilityConfig{
		OTLPEndpoint: "127.0.0.1:4318",
		OTLPInsecure: true,
		ServiceName:  "lumenapi",
		SampleRatio:  1,
	}, logging.Discard())
	require.NoError(t, err)

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}
