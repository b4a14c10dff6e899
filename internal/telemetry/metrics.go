package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/webstarter"
)

// Metrics holds the OpenTelemetry instruments for builds and the dev server.
// Without a configured provider the instruments are no-ops.
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram

	// Live reload metrics
	ReloadClients   metric.Int64UpDownCounter
	ReloadsNotified metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	// Instrument creation only fails on invalid names, which are constant here.
	m.BuildsTotal, _ = meter.Int64Counter("webstarter.builds.total",
		metric.WithDescription("Number of asset builds by result"))
	m.BuildErrorsTotal, _ = meter.Int64Counter("webstarter.build.errors.total",
		metric.WithDescription("Number of errors reported by asset builds"))
	m.BuildDuration, _ = meter.Float64Histogram("webstarter.build.duration",
		metric.WithDescription("Asset build duration"),
		metric.WithUnit("s"))
	m.ReloadClients, _ = meter.Int64UpDownCounter("webstarter.reload.clients",
		metric.WithDescription("Connected live reload clients"))
	m.ReloadsNotified, _ = meter.Int64Counter("webstarter.reloads.total",
		metric.WithDescription("Number of live reload notifications sent"))

	return m
}
