package statsig

import (
	"context"
	"errors"
	"sync"
)

// Metric is a single data point recorded by observabilityClientExample.
type Metric struct {
	Name  string
	Type  string
	Value float64
	Tags  map[string]interface{}
}

// observabilityClientExample is an in-memory IObservabilityClient. It records
// every metric it receives so callers can inspect what the SDK emitted.
type observabilityClientExample struct {
	mu       sync.Mutex
	recorded []Metric
}

func NewObservabilityClientExample() *observabilityClientExample {
	return &observabilityClientExample{}
}

func (o *observabilityClientExample) record(metricType string, name string, value float64, tags map[string]interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorded = append(o.recorded, Metric{
		Name:  name,
		Type:  metricType,
		Value: value,
		Tags:  tags,
	})
}

func (o *observabilityClientExample) Init(ctx context.Context) error {
	return nil
}

func (o *observabilityClientExample) Increment(metricName string, value int, tags map[string]interface{}) error {
	o.record("increment", metricName, float64(value), tags)
	return nil
}

func (o *observabilityClientExample) Gauge(metricName string, value float64, tags map[string]interface{}) error {
	o.record("gauge", metricName, value, tags)
	return nil
}

func (o *observabilityClientExample) Distribution(metricName string, value float64, tags map[string]interface{}) error {
	o.record("distribution", metricName, value, tags)
	return nil
}

func (o *observabilityClientExample) ShouldEnableHighCardinalityForThisTag(tag string) bool {
	return true
}

func (o *observabilityClientExample) Shutdown(ctx context.Context) error {
	return nil
}

// GetMetrics returns a copy of the recorded metrics of the given type, or all
// of them when metricType is empty.
func (o *observabilityClientExample) GetMetrics(metricType string) []Metric {
	o.mu.Lock()
	defer o.mu.Unlock()
	metrics := make([]Metric, 0, len(o.recorded))
	for _, metric := range o.recorded {
		if metricType == "" || metric.Type == metricType {
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

// brokenObservabilityClientExample fails every call. Useful for verifying that
// the SDK contains integration errors instead of surfacing them to callers.
type brokenObservabilityClientExample struct {
	err error
}

func NewBrokenObservabilityClientExample() *brokenObservabilityClientExample {
	return &brokenObservabilityClientExample{err: errors.New("observability client is down")}
}

func (o *brokenObservabilityClientExample) Init(ctx context.Context) error {
	return o.err
}

func (o *brokenObservabilityClientExample) Increment(metricName string, value int, tags map[string]interface{}) error {
	return o.err
}

func (o *brokenObservabilityClientExample) Gauge(metricName string, value float64, tags map[string]interface{}) error {
	return o.err
}

func (o *brokenObservabilityClientExample) Distribution(metricName string, value float64, tags map[string]interface{}) error {
	return o.err
}

func (o *brokenObservabilityClientExample) ShouldEnableHighCardinalityForThisTag(tag string) bool {
	return false
}

func (o *brokenObservabilityClientExample) Shutdown(ctx context.Context) error {
	return o.err
}
