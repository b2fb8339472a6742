package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	providerMu     sync.RWMutex
	globalProvider trace.TracerProvider
)

// SetTracerProvider overrides the provider used for client spans.
// Passing nil restores the otel global provider.
func SetTracerProvider(tp trace.TracerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = tp
}

// GetTracerProvider returns the provider set with SetTracerProvider, or the otel global one
func GetTracerProvider() trace.TracerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if globalProvider != nil {
		return globalProvider
	}
	return otel.GetTracerProvider()
}
