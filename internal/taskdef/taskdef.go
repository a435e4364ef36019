// Package taskdef holds the types shared by the worker pool and the task
// dispatcher: the task definition itself, its cooperative cancellation
// flag, and the lifecycle event payloads. Everything above the worker
// pool (archive pipeline, cut engine, copier) depends on this package;
// it depends on nothing in this module.
package taskdef

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Event names a point in a task's lifecycle.
type Event string

const (
	EventStart    Event = "start"
	EventProgress Event = "progress"
	EventFinish   Event = "finish"
	EventError    Event = "error"
	EventAbort    Event = "abort"
)

// State is a task's position in the Pending -> Running -> terminal state
// machine described in spec §3. Only Completed, Errored and Aborted are
// terminal.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
	StateAborted   State = "aborted"
)

// Terminal reports whether s is one of the three states a task cannot
// leave once entered.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateAborted
}

// Result is the worker's result tuple. Code follows the external-process
// convention in spec §6.3: 1 (or 0) success, -1 tool failure, -2
// cancelled mid-process.
type Result struct {
	Code    int
	Message string
}

const (
	CodeSuccess            = 1
	CodeToolFailure        = -1
	CodeCancelledMidStream = -2
)

// ProgressFunc is how a worker reports fractional progress back to the
// pool. fraction is clamped to [0,1] by the caller.
type ProgressFunc func(fraction float64, message string)

// CancelFlag is the cooperative cancellation predicate injected into
// every worker. Workers calling an external tool poll Cancelled()
// between subprocess-wait iterations (spec §5, ~10ms granularity).
type CancelFlag struct {
	flag atomic.Bool
}

// Cancel marks the flag as set. Idempotent.
func (c *CancelFlag) Cancel() { c.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *CancelFlag) Cancelled() bool { return c.flag.Load() }

// WorkerFunc is the unit of work a TaskDef carries. It must return
// promptly once ctx is done or cancelled.Cancelled() becomes true.
type WorkerFunc func(ctx context.Context, cancelled *CancelFlag, progress ProgressFunc) (Result, error)

// TaskDef is a unit of schedulable work. task_id is globally unique;
// task_prefix groups related tasks for bulk cancel and group-completion
// queries (spec §3).
//
// TaskDef.Cargo is the legacy open key-value bag spec §4.3/§9 describes
// as a pragmatic extension point, not a design feature. It is kept here
// only so the dispatcher can stash the three fields it documents writing
// into it (percentage, message, result_tuple) for callers that want to
// inspect a task's last-known payload out of band; handlers themselves
// always receive a typed EventPayload, never the cargo bag, so no
// dispatch code needs to type-assert into Cargo.
type TaskDef struct {
	ID       string
	Prefix   string
	Worker   WorkerFunc
	Cancel   *CancelFlag
	Cargo    map[string]any
	State    State
}

// New creates a TaskDef with a fresh UUID-based ID, per spec §9's
// replacement of the legacy timestamp-counter ID scheme: a task ID must
// be a stable unique identifier, and a UUIDv4 does not depend on wall
// clock resolution the way the teacher's `time.Now().UnixNano()` scheme
// did.
func New(prefix string, worker WorkerFunc) *TaskDef {
	return &TaskDef{
		ID:     uuid.NewString(),
		Prefix: prefix,
		Worker: worker,
		Cancel: &CancelFlag{},
		Cargo:  make(map[string]any),
		State:  StatePending,
	}
}

// EventPayload is implemented by the five typed payloads delivered to
// lifecycle handlers, one per Event. Encoding the payload shape in the
// type (per spec §9's "tagged-variant command set") means a handler for
// EventFinish is handed a FinishPayload, not an open map it must probe.
type EventPayload interface {
	event() Event
}

type StartPayload struct{}

func (StartPayload) event() Event { return EventStart }

type ProgressPayload struct {
	Fraction float64
	Message  string
}

func (ProgressPayload) event() Event { return EventProgress }

type FinishPayload struct {
	Result Result
}

func (FinishPayload) event() Event { return EventFinish }

type ErrorPayload struct {
	Message string
}

func (ErrorPayload) event() Event { return EventError }

type AbortPayload struct {
	Message string
}

func (AbortPayload) event() Event { return EventAbort }

// HandlerFunc receives a lifecycle event for a task. taskID identifies
// the task; payload's concrete type matches the Event it was registered
// against.
type HandlerFunc func(taskID string, payload EventPayload)
