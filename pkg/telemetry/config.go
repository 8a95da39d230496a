package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config groups the logging, tracing, metrics and event settings of a
// crfleet process.
type Config struct {
	ServiceName    string `validate:"required"`
	ServiceVersion string

	// Environment is recorded on every span (development, staging, prod).
	Environment string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn error"`
	Format string `validate:"oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output       string
	EnableCaller bool

	// TimeFormat is unix, unixms or rfc3339.
	TimeFormat string
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none.
	Exporter      string  `validate:"oneof=otlp stdout none"`
	Endpoint      string  `validate:"required_if=Exporter otlp Enabled true"`
	SamplingRate  float64 `validate:"gte=0,lte=1"`
	ExportTimeout time.Duration
	Headers       map[string]string

	// Insecure disables TLS towards the collector.
	Insecure bool
}

// MetricsConfig configures the prometheus registry and its endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string `validate:"required_if=Enabled true"`
	Path          string
	Namespace     string

	// DefaultHistogramBuckets are latency buckets in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the in-process event publisher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int `validate:"gte=0,required_if=Enabled true"`
}

// DefaultConfig returns the telemetry settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "crfleet",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			Headers:       make(map[string]string),
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "crfleet",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}
