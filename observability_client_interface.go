package statsig

import (
	"context"
)

// IObservabilityClient lets users plug their own metrics integration into the
// SDK. All methods must be safe for concurrent use; panics are contained by
// the SDK.
type IObservabilityClient interface {
	// Init is called once during client initialization.
	Init(ctx context.Context) error

	// Increment adds value to a counter metric.
	Increment(metricName string, value int, tags map[string]interface{}) error

	// Gauge sets a gauge metric.
	Gauge(metricName string, value float64, tags map[string]interface{}) error

	// Distribution records one sample of a distribution metric.
	Distribution(metricName string, value float64, tags map[string]interface{}) error

	// ShouldEnableHighCardinalityForThisTag reports whether a high cardinality
	// tag may be attached to metrics.
	ShouldEnableHighCardinalityForThisTag(tag string) bool

	// Shutdown is called once when the client shuts down.
	Shutdown(ctx context.Context) error
}
