package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	assert.NotNil(t, m.ChatRequests)
	assert.NotNil(t, m.BackendRequests)
	assert.NotNil(t, m.BackendDuration)
	assert.NotNil(t, m.LookupRequests)
	assert.NotNil(t, m.MemoryItems)
	assert.NotNil(t, m.ThunksCreated)
	assert.NotNil(t, m.QualityFlags)
	assert.NotNil(t, m.HTTPRequestDuration)
}

func TestMetrics_RecordsThroughReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.ChatRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	m.BackendDuration.Record(ctx, 1.5, metric.WithAttributes(attribute.String("backend", "local")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, inst := range sm.Metrics {
			names[inst.Name] = true
		}
	}
	assert.True(t, names["thalamus.chat.requests"])
	assert.True(t, names["thalamus.backend.duration"])
}
