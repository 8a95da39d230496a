package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/config"
	"github.com/openfroyo/crfleet/pkg/controlplane"
	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/orchestrator"
	"github.com/openfroyo/crfleet/pkg/policy"
	"github.com/openfroyo/crfleet/pkg/stores"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// app holds the components shared by every command.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	store  *stores.SQLiteStore
	engine *engine.Engine
	driver *orchestrator.Driver
	policy *policy.Engine

	cancelMetrics context.CancelFunc
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// newApp wires store, simulated control plane, engine and driver.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	telCfg := cfg.Telemetry()
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := stores.NewSQLiteStore(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	sim, err := controlplane.NewSimulator(store, cfg.SimulatorConfig(), tel)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var api engine.ControlPlane = sim
	api = controlplane.NewRateLimited(api, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	api = controlplane.NewInstrumented(api, tel)

	eng := engine.New(api)
	driver, err := orchestrator.NewDriver(eng, store, tel, cfg.OrchestratorConfig())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var policies *policy.Engine
	if cfg.Policy.Enabled {
		policies, err = newPolicyEngine(ctx, cfg, tel)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	metricsCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := tel.Metrics.Serve(metricsCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics endpoint stopped")
		}
	}()

	return &app{
		cfg:           cfg,
		tel:           tel,
		store:         store,
		engine:        eng,
		driver:        driver,
		policy:        policies,
		cancelMetrics: cancel,
	}, nil
}

func newPolicyEngine(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*policy.Engine, error) {
	eng, err := policy.NewEngine(ctx, tel.Logger.Zerolog())
	if err != nil {
		return nil, err
	}
	if len(cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// withTelemetry returns ctx carrying the app's telemetry and logger.
func (a *app) withTelemetry(ctx context.Context) context.Context {
	return a.tel.WithContext(ctx)
}

func (a *app) Close() {
	a.cancelMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.withTelemetry(cmd.Context()), a)
}

// request builds an engine request carrying the configured tags.
func (a *app) request(op engine.Operation) *engine.Request {
	return &engine.Request{
		Operation:  op,
		StackTags:  a.cfg.Tags.Stack,
		SystemTags: a.cfg.Tags.System,
	}
}

// run drives req and turns a failed signal into an error.
func (a *app) run(ctx context.Context, cmd *cobra.Command, req *engine.Request) error {
	result, err := a.driver.Run(ctx, req)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result)
}

// current reads the fleet's present model.
func (a *app) current(ctx context.Context, id string) (*engine.ResourceModel, error) {
	req := a.request(engine.OperationRead)
	req.DesiredModel = &engine.ResourceModel{ID: id}

	signal := a.engine.Execute(ctx, req)
	if err := signal.Err(); err != nil {
		return nil, err
	}
	return signal.Model, nil
}

// admit checks a model against the admission policies. Warnings are
// logged; blocking violations fail with an error wrapping policy.ErrDenied.
func (a *app) admit(ctx context.Context, op engine.Operation, model, previous *engine.ResourceModel) error {
	if a.policy == nil {
		return nil
	}

	result, err := a.policy.Evaluate(ctx, &policy.Input{
		Operation:    op,
		Model:        model,
		Previous:     previous,
		StackTags:    a.cfg.Tags.Stack,
		SystemTags:   a.cfg.Tags.System,
		RequiredTags: a.cfg.Policy.RequiredTags,
		Environment:  a.cfg.Environment,
	})
	if err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx)
	for _, w := range result.Warnings {
		logger.WithField("policy", w.Policy).Warn(w.Message)
	}
	return result.Err()
}
