package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// InvocationStatus represents the status of an orchestrated run
type InvocationStatus string

const (
	InvocationStatusRunning   InvocationStatus = "running"
	InvocationStatusSucceeded InvocationStatus = "succeeded"
	InvocationStatusFailed    InvocationStatus = "failed"
	InvocationStatusTimedOut  InvocationStatus = "timed_out"
)

// IsTerminal reports whether no further ticks will be journaled.
func (s InvocationStatus) IsTerminal() bool {
	return s == InvocationStatusSucceeded || s == InvocationStatusFailed || s == InvocationStatusTimedOut
}

// Fleet is one fleet held by the simulated control plane.
type Fleet struct {
	ID                     string     `json:"id"`
	State                  string     `json:"state"`
	TotalTargetCapacity    int        `json:"total_target_capacity"`
	TotalFulfilledCapacity float64    `json:"total_fulfilled_capacity"`
	AllocationStrategy     string     `json:"allocation_strategy"`
	InstanceMatchCriteria  string     `json:"instance_match_criteria"`
	Tenancy                string     `json:"tenancy"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	InstanceTypes          string     `json:"instance_types"` // JSON blob
	Tags                   string     `json:"tags"`           // JSON blob
	ClientToken            *string    `json:"client_token,omitempty"`
	Observations           int        `json:"observations"` // describes since the last transition
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Invocation is one orchestrated run of a lifecycle operation.
type Invocation struct {
	ID              string           `json:"id"`
	Operation       string           `json:"operation"`
	FleetID         string           `json:"fleet_id"`
	Status          InvocationStatus `json:"status"`
	Request         string           `json:"request"`          // JSON blob
	CallbackContext string           `json:"callback_context"` // last journaled context
	Model           *string          `json:"model,omitempty"`  // JSON blob
	Ticks           int              `json:"ticks"`
	Attempts        int              `json:"attempts"`
	ErrorKind       *string          `json:"error_kind,omitempty"`
	Error           *string          `json:"error,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Tick is one engine invocation within a run.
type Tick struct {
	ID              int64     `json:"id"`
	InvocationID    string    `json:"invocation_id"`
	Seq             int       `json:"seq"`
	Status          string    `json:"status"`
	ErrorKind       *string   `json:"error_kind,omitempty"`
	Message         *string   `json:"message,omitempty"`
	CallbackContext string    `json:"callback_context"`
	DurationMs      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// TickProgress is the invocation state recorded together with a tick.
type TickProgress struct {
	FleetID         string
	CallbackContext string
	Model           *string
	Attempts        int
}

// Store defines the interface for persistence operations
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transactions
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Fleets
	CreateFleet(ctx context.Context, fleet *Fleet) error
	GetFleet(ctx context.Context, id string) (*Fleet, error)
	GetFleetByClientToken(ctx context.Context, token string) (*Fleet, error)
	UpdateFleet(ctx context.Context, fleet *Fleet) error
	ListFleets(ctx context.Context, limit, offset int) ([]*Fleet, error)
	CountFleetsByState(ctx context.Context) (map[string]int, error)

	// Invocations
	CreateInvocation(ctx context.Context, inv *Invocation) error
	GetInvocation(ctx context.Context, id string) (*Invocation, error)
	ListInvocations(ctx context.Context, status *InvocationStatus, limit, offset int) ([]*Invocation, error)
	CompleteInvocation(ctx context.Context, id string, status InvocationStatus, errorKind, errMsg *string) error

	// Ticks
	AppendTick(ctx context.Context, tick *Tick, progress TickProgress) error
	ListTicks(ctx context.Context, invocationID string) ([]*Tick, error)

	// Health
	HealthCheck(ctx context.Context) error
}
