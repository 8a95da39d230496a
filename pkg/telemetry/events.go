package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle event published while fleets are reconciled.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// InvocationID is the orchestrated run, if applicable.
	InvocationID string `json:"invocation_id,omitempty"`

	// FleetID is the fleet involved, if known.
	FleetID string `json:"fleet_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted        = "run.started"
	EventTypeRunProgressed     = "run.progressed"
	EventTypeRunCompleted      = "run.completed"
	EventTypeRunFailed         = "run.failed"
	EventTypeFleetStateChanged = "fleet.state_changed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherClosed is returned by Publish after Shutdown.
var ErrPublisherClosed = errors.New("event publisher stopped")

// EventSubscriber handles delivered events.
type EventSubscriber func(event Event)

// EventFilter determines if an event is delivered to a subscriber.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers in publish order from a
// single dispatcher goroutine.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	mu          sync.RWMutex
	closed      bool
	done        chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go ep.dispatch()
	return ep, nil
}

// Publish queues an event for delivery. It fails instead of blocking when
// the buffer is full.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.closed {
		return ErrPublisherClosed
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, %s event dropped", event.Type)
	}
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(invocationID, operation, fleetID string) error {
	return ep.Publish(Event{
		Type:         EventTypeRunStarted,
		Source:       "orchestrator",
		InvocationID: invocationID,
		FleetID:      fleetID,
		Message:      fmt.Sprintf("%s run %s started", operation, invocationID),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"operation": operation,
		},
	})
}

// PublishRunProgressed publishes the outcome of one non-terminal tick.
func (ep *EventPublisher) PublishRunProgressed(invocationID, fleetID string, seq, attempts int) error {
	return ep.Publish(Event{
		Type:         EventTypeRunProgressed,
		Source:       "orchestrator",
		InvocationID: invocationID,
		FleetID:      fleetID,
		Message:      fmt.Sprintf("run %s waiting for fleet %s to stabilize", invocationID, fleetID),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"tick":     seq,
			"attempts": attempts,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(invocationID, fleetID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:         EventTypeRunCompleted,
		Source:       "orchestrator",
		InvocationID: invocationID,
		FleetID:      fleetID,
		Message:      fmt.Sprintf("run %s completed", invocationID),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(invocationID, fleetID, kind, reason string) error {
	return ep.Publish(Event{
		Type:         EventTypeRunFailed,
		Source:       "orchestrator",
		InvocationID: invocationID,
		FleetID:      fleetID,
		Message:      fmt.Sprintf("run %s failed: %s", invocationID, reason),
		Level:        EventLevelError,
		Data: map[string]interface{}{
			"kind":   kind,
			"reason": reason,
		},
	})
}

// PublishFleetStateChanged publishes a simulated fleet transition.
func (ep *EventPublisher) PublishFleetStateChanged(fleetID, oldState, newState string) error {
	return ep.Publish(Event{
		Type:    EventTypeFleetStateChanged,
		Source:  "simulator",
		FleetID: fleetID,
		Message: fmt.Sprintf("fleet %s moved from %s to %s", fleetID, oldState, newState),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"old_state": oldState,
			"new_state": newState,
		},
	})
}

// Subscribe adds a subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

func (ep *EventPublisher) dispatch() {
	defer close(ep.done)
	for event := range ep.buffer {
		ep.deliver(event)
	}
}

func (ep *EventPublisher) deliver(event Event) {
	ep.mu.RLock()
	subscribers := append([]subscriberEntry(nil), ep.subscribers...)
	ep.mu.RUnlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits until queued events are delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.mu.Lock()
	if !ep.closed {
		ep.closed = true
		close(ep.buffer)
	}
	ep.mu.Unlock()

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByInvocationID creates a filter that only allows events of one run.
func FilterByInvocationID(invocationID string) EventFilter {
	return func(event Event) bool {
		return event.InvocationID == invocationID
	}
}
