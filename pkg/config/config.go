package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/crfleet/pkg/controlplane"
	"github.com/openfroyo/crfleet/pkg/orchestrator"
	"github.com/openfroyo/crfleet/pkg/stores"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// DefaultStorePath is where the journal and simulated fleets live when no
// path is configured.
const DefaultStorePath = "crfleet.db"

// Config is the crfleet configuration file.
type Config struct {
	Environment  string             `yaml:"environment"`
	Log          LogConfig          `yaml:"log"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Store        StoreConfig        `yaml:"store"`
	Simulator    SimulatorConfig    `yaml:"simulator"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Tags         TagsConfig         `yaml:"tags"`
	Policy       PolicyConfig       `yaml:"policy"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output"`
	Caller bool   `yaml:"caller"`
}

// TracingConfig contains trace export settings
type TracingConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Exporter     string            `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string            `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64           `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Timeout      Duration          `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	Insecure     bool              `yaml:"insecure"`
}

// MetricsConfig contains prometheus endpoint settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen" validate:"required_if=Enabled true"`
	Path      string `yaml:"path" validate:"startswith=/"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// StoreConfig contains database settings
type StoreConfig struct {
	Path            string   `yaml:"path" validate:"required"`
	MaxOpenConns    int      `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int      `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// SimulatorConfig shapes the simulated control plane
type SimulatorConfig struct {
	SubmitObservations int     `yaml:"submit_observations" validate:"gte=0"`
	ModifyObservations int     `yaml:"modify_observations" validate:"gte=0"`
	CancelObservations int     `yaml:"cancel_observations" validate:"gte=0"`
	FulfillmentRatio   float64 `yaml:"fulfillment_ratio" validate:"gte=0,lte=1"`
	FailAboveCapacity  int     `yaml:"fail_above_capacity" validate:"gte=0"`
	ThrottleEvery      int     `yaml:"throttle_every" validate:"gte=0"`
}

// OrchestratorConfig paces the driver between ticks
type OrchestratorConfig struct {
	InitialInterval     Duration `yaml:"initial_interval" validate:"gt=0"`
	MaxInterval         Duration `yaml:"max_interval" validate:"gtefield=InitialInterval"`
	Multiplier          float64  `yaml:"multiplier" validate:"gte=1"`
	RandomizationFactor float64  `yaml:"randomization_factor" validate:"gte=0,lt=1"`
	Timeout             Duration `yaml:"timeout" validate:"gte=0"`
	MaxTickRetries      int      `yaml:"max_tick_retries" validate:"gte=0"`
}

// RateLimitConfig throttles calls to the control plane
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"gt=0"`
}

// TagsConfig holds the tags applied to every created fleet
type TagsConfig struct {
	Stack  map[string]string `yaml:"stack"`
	System map[string]string `yaml:"system"`
}

// PolicyConfig selects the admission policies checked before create and update
type PolicyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Paths        []string `yaml:"paths"`
	Disabled     []string `yaml:"disabled"`
	RequiredTags []string `yaml:"required_tags" validate:"dive,required"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON renders the duration the way it is written in YAML
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration returns the time.Duration value
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	orch := orchestrator.DefaultConfig()
	sim := controlplane.DefaultSimulatorConfig()

	return &Config{
		Environment: tel.Environment,
		Log: LogConfig{
			Level:  tel.Logging.Level,
			Format: tel.Logging.Format,
			Output: tel.Logging.Output,
		},
		Tracing: TracingConfig{
			Exporter:     tel.Tracing.Exporter,
			SamplingRate: tel.Tracing.SamplingRate,
			Timeout:      Duration(tel.Tracing.ExportTimeout),
			Insecure:     tel.Tracing.Insecure,
		},
		Metrics: MetricsConfig{
			Listen:    tel.Metrics.ListenAddress,
			Path:      tel.Metrics.Path,
			Namespace: tel.Metrics.Namespace,
		},
		Store: StoreConfig{
			Path: DefaultStorePath,
		},
		Simulator: SimulatorConfig{
			SubmitObservations: sim.SubmitObservations,
			ModifyObservations: sim.ModifyObservations,
			CancelObservations: sim.CancelObservations,
			FulfillmentRatio:   sim.FulfillmentRatio,
		},
		Orchestrator: OrchestratorConfig{
			InitialInterval:     Duration(orch.InitialInterval),
			MaxInterval:         Duration(orch.MaxInterval),
			Multiplier:          orch.Multiplier,
			RandomizationFactor: orch.RandomizationFactor,
			Timeout:             Duration(orch.Timeout),
			MaxTickRetries:      orch.MaxTickRetries,
		},
		RateLimit: RateLimitConfig{
			RPS:   controlplane.DefaultRequestsPerSecond,
			Burst: int(controlplane.DefaultRequestsPerSecond),
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file. Fields absent from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Telemetry converts the logging, tracing and metrics sections.
func (c *Config) Telemetry() *telemetry.Config {
	tel := telemetry.DefaultConfig()
	if c.Environment != "" {
		tel.Environment = c.Environment
	}

	tel.Logging.Level = c.Log.Level
	tel.Logging.Format = c.Log.Format
	if c.Log.Output != "" {
		tel.Logging.Output = c.Log.Output
	}
	tel.Logging.EnableCaller = c.Log.Caller

	tel.Tracing.Enabled = c.Tracing.Enabled
	tel.Tracing.Exporter = c.Tracing.Exporter
	tel.Tracing.Endpoint = c.Tracing.Endpoint
	tel.Tracing.SamplingRate = c.Tracing.SamplingRate
	if c.Tracing.Timeout > 0 {
		tel.Tracing.ExportTimeout = c.Tracing.Timeout.Duration()
	}
	for k, v := range c.Tracing.Headers {
		tel.Tracing.Headers[k] = v
	}
	tel.Tracing.Insecure = c.Tracing.Insecure

	tel.Metrics.Enabled = c.Metrics.Enabled
	tel.Metrics.ListenAddress = c.Metrics.Listen
	tel.Metrics.Path = c.Metrics.Path
	tel.Metrics.Namespace = c.Metrics.Namespace

	return tel
}

// StoreConfig converts the store section.
func (c *Config) StoreConfig() stores.Config {
	return stores.Config{
		Path:            c.Store.Path,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime.Duration(),
	}
}

// SimulatorConfig converts the simulator section.
func (c *Config) SimulatorConfig() controlplane.SimulatorConfig {
	return controlplane.SimulatorConfig{
		SubmitObservations: c.Simulator.SubmitObservations,
		ModifyObservations: c.Simulator.ModifyObservations,
		CancelObservations: c.Simulator.CancelObservations,
		FulfillmentRatio:   c.Simulator.FulfillmentRatio,
		FailAboveCapacity:  c.Simulator.FailAboveCapacity,
		ThrottleEvery:      c.Simulator.ThrottleEvery,
	}
}

// OrchestratorConfig converts the orchestrator section.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		InitialInterval:     c.Orchestrator.InitialInterval.Duration(),
		MaxInterval:         c.Orchestrator.MaxInterval.Duration(),
		Multiplier:          c.Orchestrator.Multiplier,
		RandomizationFactor: c.Orchestrator.RandomizationFactor,
		Timeout:             c.Orchestrator.Timeout.Duration(),
		MaxTickRetries:      c.Orchestrator.MaxTickRetries,
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
