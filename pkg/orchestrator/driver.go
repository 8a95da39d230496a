package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/stores"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// ErrInvocationCompleted is returned when resuming a run that already finished.
var ErrInvocationCompleted = errors.New("invocation already completed")

// Executor runs one engine tick. *engine.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req *engine.Request) *engine.ProgressSignal
}

// Config controls tick pacing, retries and the overall deadline of a run.
type Config struct {
	// InitialInterval is the delay before the second tick.
	InitialInterval time.Duration

	// MaxInterval caps the delay between ticks.
	MaxInterval time.Duration

	// Multiplier grows the delay after every tick.
	Multiplier float64

	// RandomizationFactor jitters each delay by up to this fraction.
	RandomizationFactor float64

	// Timeout is the wall-clock budget of a run. Zero means no limit.
	Timeout time.Duration

	// MaxTickRetries is how many consecutive retryable failures are re-run.
	MaxTickRetries int
}

// DefaultConfig returns the pacing used by the CLI.
func DefaultConfig() Config {
	return Config{
		InitialInterval:     time.Duration(engine.DefaultCallbackDelaySeconds) * time.Second,
		MaxInterval:         time.Minute,
		Multiplier:          1.5,
		RandomizationFactor: 0.2,
		Timeout:             30 * time.Minute,
		MaxTickRetries:      3,
	}
}

// Result is the outcome of a run.
type Result struct {
	// InvocationID identifies the journaled run.
	InvocationID string

	// Signal is the last signal of the run. A timed-out run reports a
	// synthesized NotStabilized failure.
	Signal *engine.ProgressSignal

	// Ticks is the number of engine invocations, including earlier ones
	// when the run was resumed.
	Ticks int

	// Retries is the number of failed ticks that were re-run.
	Retries int

	// TimedOut is set when the run exhausted its timeout.
	TimedOut bool

	// Duration is the time spent in this call.
	Duration time.Duration
}

// Driver ticks the engine until a terminal signal and journals every tick.
type Driver struct {
	exec   Executor
	store  stores.Store
	tel    *telemetry.Telemetry
	config Config

	clock backoff.Clock
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Driver.
type Option func(*Driver)

// WithClock sets the clock used for the run deadline.
func WithClock(clock backoff.Clock) Option {
	return func(d *Driver) { d.clock = clock }
}

// WithSleep replaces the wait between ticks.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// NewDriver creates a driver. The store must be initialized and migrated.
func NewDriver(exec Executor, store stores.Store, tel *telemetry.Telemetry, config Config, opts ...Option) (*Driver, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.MaxTickRetries < 0 {
		return nil, fmt.Errorf("max tick retries must not be negative, got %d", config.MaxTickRetries)
	}
	if tel == nil {
		tel = telemetry.Nop()
	}

	d := &Driver{
		exec:   exec,
		store:  store,
		tel:    tel,
		config: config,
		clock:  backoff.SystemClock,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run starts a new journaled run of req and drives it to completion.
//
// Engine failures are reported through Result.Signal. The returned error
// is reserved for journal failures and cancellation of ctx; a cancelled
// run stays resumable.
func (d *Driver) Run(ctx context.Context, req *engine.Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	run := *req
	run.CallbackContext = nil

	id := uuid.New().String()
	if run.Operation == engine.OperationCreate && run.ClientToken == "" {
		// a resumed create must not submit a second fleet
		run.ClientToken = id
	}

	payload, err := json.Marshal(&run)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	inv := &stores.Invocation{
		ID:        id,
		Operation: string(run.Operation),
		FleetID:   fleetIDOf(run.DesiredModel),
		Status:    stores.InvocationStatusRunning,
		Request:   string(payload),
	}
	if err := d.store.CreateInvocation(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to journal invocation: %w", err)
	}

	d.tel.Metrics.RecordRunStarted(inv.Operation)
	if err := d.tel.Events.PublishRunStarted(inv.ID, inv.Operation, inv.FleetID); err != nil {
		d.tel.Logger.WithError(err).Warn("failed to publish run started event")
	}

	return d.drive(ctx, inv, &run, 0)
}

// Resume continues a run from its last journaled callback context.
func (d *Driver) Resume(ctx context.Context, invocationID string) (*Result, error) {
	inv, err := d.store.GetInvocation(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, fmt.Errorf("invocation %s is %s: %w", inv.ID, inv.Status, ErrInvocationCompleted)
	}

	var req engine.Request
	if err := json.Unmarshal([]byte(inv.Request), &req); err != nil {
		return nil, fmt.Errorf("failed to decode journaled request: %w", err)
	}

	if inv.CallbackContext != "" {
		cb, err := engine.DecodeCallbackContext(inv.CallbackContext)
		if err != nil {
			return nil, err
		}
		req.CallbackContext = &cb
	}
	if inv.Model != nil {
		var model engine.ResourceModel
		if err := json.Unmarshal([]byte(*inv.Model), &model); err != nil {
			return nil, fmt.Errorf("failed to decode journaled model: %w", err)
		}
		req.DesiredModel = &model
	}

	d.tel.Logger.WithInvocationID(inv.ID).Infof("resuming %s after %d ticks", inv.Operation, inv.Ticks)
	return d.drive(ctx, inv, &req, inv.Ticks)
}

// ResumeAll resumes every run that was left running.
func (d *Driver) ResumeAll(ctx context.Context) ([]*Result, error) {
	running := stores.InvocationStatusRunning
	invocations, err := d.store.ListInvocations(ctx, &running, 1000, 0)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(invocations))
	for _, inv := range invocations {
		result, err := d.Resume(ctx, inv.ID)
		if err != nil {
			return results, fmt.Errorf("failed to resume %s: %w", inv.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// drive ticks the engine from sequence number seq until the run ends.
func (d *Driver) drive(ctx context.Context, inv *stores.Invocation, req *engine.Request, seq int) (*Result, error) {
	start := time.Now()
	op := string(req.Operation)

	ctx, runSpan := d.tel.Tracer.StartRunSpan(ctx, inv.ID, op)
	defer runSpan.End()

	logger := d.tel.Logger.WithInvocationID(inv.ID).WithField("operation", op)
	ctx = logger.WithContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.InitialInterval
	b.MaxInterval = d.config.MaxInterval
	b.Multiplier = d.config.Multiplier
	b.RandomizationFactor = d.config.RandomizationFactor
	b.MaxElapsedTime = d.config.Timeout
	b.Clock = d.clock
	b.Reset()

	result := &Result{InvocationID: inv.ID}
	retries := 0
	fleetID := inv.FleetID

	for {
		seq++
		signal, err := d.tick(ctx, inv.ID, req, seq)
		result.Ticks = seq
		if err != nil {
			tickErr := fmt.Errorf("tick %d of %s: %w", seq, inv.ID, err)
			telemetry.RecordError(runSpan, tickErr)
			return result, tickErr
		}
		result.Signal = signal
		if id := signalFleetID(signal); id != "" {
			fleetID = id
		}

		switch signal.Status {
		case engine.StatusSuccess:
			result.Duration = time.Since(start)
			return result, d.finish(ctx, inv, req, fleetID, signal, attemptsOf(req), result.Duration, stores.InvocationStatusSucceeded)

		case engine.StatusInProgress:
			retries = 0
			req.CallbackContext = signal.CallbackContext
			if signal.Model != nil {
				req.DesiredModel = signal.Model
			}
			if err := d.tel.Events.PublishRunProgressed(inv.ID, fleetID, seq, attemptsOf(req)); err != nil {
				logger.WithError(err).Debug("failed to publish progress event")
			}

		case engine.StatusFailed:
			if !signal.Retryable() || retries >= d.config.MaxTickRetries {
				result.Duration = time.Since(start)
				return result, d.finish(ctx, inv, req, fleetID, signal, attemptsOf(req), result.Duration, stores.InvocationStatusFailed)
			}
			retries++
			result.Retries++
			req.CallbackContext = signal.CallbackContext
			d.tel.Metrics.RecordTickRetry(op, string(signal.ErrorKind))
			logger.WithTick(seq).Warnf("retrying after %s (%d/%d)", signal.ErrorKind, retries, d.config.MaxTickRetries)
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			timeout := engine.NewNotStabilizedError(
				fmt.Sprintf("capacity reservation fleet did not stabilize within %s", d.config.Timeout), nil).
				WithResource(fleetID).
				WithOperation(op)
			signal = engine.Failed(req.Operation, timeout, req.CallbackContext)
			result.Signal = signal
			result.TimedOut = true
			result.Duration = time.Since(start)
			return result, d.finish(ctx, inv, req, fleetID, signal, attemptsOf(req), result.Duration, stores.InvocationStatusTimedOut)
		}

		logger.Debugf("next tick in %s", delay)
		if err := d.sleep(ctx, delay); err != nil {
			telemetry.RecordError(runSpan, err)
			return result, err
		}
	}
}

// tick runs one engine invocation and journals it.
func (d *Driver) tick(ctx context.Context, invocationID string, req *engine.Request, seq int) (*engine.ProgressSignal, error) {
	fleetID := fleetIDOf(req.DesiredModel)
	if fleetID == "" && req.CallbackContext != nil {
		fleetID = req.CallbackContext.FleetID
	}

	ctx, span := d.tel.Tracer.StartTickSpan(ctx, seq, string(req.Operation), fleetID)
	defer span.End()
	ctx = telemetry.FromContext(ctx).WithTick(seq).WithContext(ctx)

	timer := telemetry.NewTimer()
	signal := d.exec.Execute(ctx, req)
	duration := timer.Duration()

	d.tel.Metrics.RecordInvocation(string(req.Operation), string(signal.Status), duration)
	span.SetAttributes(telemetry.AttrStatus.String(string(signal.Status)))
	if signal.Status == engine.StatusFailed {
		d.tel.Metrics.RecordError(string(signal.ErrorKind))
		span.SetAttributes(telemetry.AttrErrorKind.String(string(signal.ErrorKind)))
		telemetry.RecordError(span, signal.Err())
	} else {
		telemetry.RecordSuccess(span)
	}

	tick, progress, err := journalEntry(invocationID, seq, signal, duration)
	if err != nil {
		return nil, err
	}

	// the journal is local; retry briefly on a busy database but not on a
	// missing invocation row
	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 3), ctx)
	appendTick := func() error {
		err := d.store.AppendTick(ctx, tick, progress)
		if errors.Is(err, stores.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(appendTick, retry); err != nil {
		return nil, fmt.Errorf("failed to journal tick: %w", err)
	}
	return signal, nil
}

// finish records the terminal status of a run.
func (d *Driver) finish(ctx context.Context, inv *stores.Invocation, req *engine.Request, fleetID string, signal *engine.ProgressSignal, attempts int, duration time.Duration, status stores.InvocationStatus) error {
	var kind, message *string
	if signal.Status == engine.StatusFailed {
		k, m := string(signal.ErrorKind), signal.Message
		kind, message = &k, &m
	}

	if err := d.store.CompleteInvocation(ctx, inv.ID, status, kind, message); err != nil {
		return fmt.Errorf("failed to complete invocation: %w", err)
	}

	op := string(req.Operation)
	d.tel.Metrics.RecordRunCompleted(op, string(status), duration, attempts)

	logger := telemetry.FromContext(ctx)
	var err error
	if status == stores.InvocationStatusSucceeded {
		logger.Infof("%s finished in %s", op, duration.Round(time.Millisecond))
		err = d.tel.Events.PublishRunCompleted(inv.ID, fleetID, duration)
	} else {
		logger.Warnf("%s ended %s: %s", op, status, signal.Message)
		err = d.tel.Events.PublishRunFailed(inv.ID, fleetID, string(signal.ErrorKind), signal.Message)
	}
	if err != nil {
		logger.WithError(err).Debug("failed to publish completion event")
	}
	return nil
}

func journalEntry(invocationID string, seq int, signal *engine.ProgressSignal, duration time.Duration) (*stores.Tick, stores.TickProgress, error) {
	tick := &stores.Tick{
		InvocationID: invocationID,
		Seq:          seq,
		Status:       string(signal.Status),
		DurationMs:   duration.Milliseconds(),
	}
	progress := stores.TickProgress{FleetID: signalFleetID(signal)}

	if signal.Status == engine.StatusFailed {
		kind, message := string(signal.ErrorKind), signal.Message
		tick.ErrorKind, tick.Message = &kind, &message
	}

	if signal.CallbackContext != nil {
		encoded, err := signal.CallbackContext.Encode()
		if err != nil {
			return nil, progress, err
		}
		tick.CallbackContext = encoded
		progress.CallbackContext = encoded
		progress.Attempts = signal.CallbackContext.Attempts
	}

	if signal.Model != nil {
		data, err := json.Marshal(signal.Model)
		if err != nil {
			return nil, progress, fmt.Errorf("failed to encode model: %w", err)
		}
		model := string(data)
		progress.Model = &model
	}

	return tick, progress, nil
}

func fleetIDOf(model *engine.ResourceModel) string {
	if model == nil {
		return ""
	}
	return model.ID
}

func signalFleetID(signal *engine.ProgressSignal) string {
	if id := fleetIDOf(signal.Model); id != "" {
		return id
	}
	if signal.CallbackContext != nil {
		return signal.CallbackContext.FleetID
	}
	return ""
}

func attemptsOf(req *engine.Request) int {
	if req.CallbackContext == nil {
		return 0
	}
	return req.CallbackContext.Attempts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
