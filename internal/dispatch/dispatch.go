// Package dispatch implements the TaskDispatcher (spec §4.2, C4): a
// multi-handler lifecycle router sitting on top of the worker pool.
// Callers register lifecycle hooks keyed by (task_id, event,
// dispatch_name); the dispatcher owns four state stacks (pending,
// completed, errored, aborted) and routes each event to the matching
// hooks in ascending lexical order of dispatch_name.
//
// Per spec §9, this is deliberately NOT a process-wide singleton: the
// application root constructs one Dispatcher and passes it to every
// component that needs to submit work or query task state
// (ArchivePipeline and the HTTP API handler), the way the teacher's jobs.Queue is constructed once
// in cmd/shrinkray/main.go and threaded through explicitly.
package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gwlsn/dvdarchive/internal/pool"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// DispatchMethod is one lifecycle hook registration. A TaskDef submitted
// with several DispatchMethods for the same event fires all of them, in
// ascending lexical order of DispatchName, whenever that event occurs.
type DispatchMethod struct {
	DispatchName   string
	OperationLabel string
	Event          taskdef.Event
	Handler        taskdef.HandlerFunc
}

// ResultTuple is the payload delivered with a finish event. WorkerCode/
// WorkerMessage always hold what the worker itself returned; Code/
// Message normally mirror them, except when this finish is also the
// last task in its prefix group to terminate, in which case Code/
// Message are transformed to (1, "all done") per spec §4.2 while
// WorkerCode/WorkerMessage still expose the original values.
type ResultTuple struct {
	Code          int
	Message       string
	WorkerCode    int
	WorkerMessage string
	GroupComplete bool
}

type methodKey struct {
	taskID       string
	event        taskdef.Event
	dispatchName string
}

// Dispatcher routes lifecycle events from a Pool to registered
// DispatchMethods and tracks each task's terminal state.
type Dispatcher struct {
	pool *pool.Pool

	mu       sync.Mutex
	methods  map[methodKey]DispatchMethod
	byTask   map[string][]methodKey // preserves registration for bulk removal
	pending  map[string]*taskdef.TaskDef
	completed map[string]*taskdef.TaskDef
	errored  map[string]*taskdef.TaskDef
	aborted  map[string]*taskdef.TaskDef
	prefixOf map[string]string // taskID -> prefix, kept even after removal from methods
}

// New wraps pool with dispatch routing.
func New(p *pool.Pool) *Dispatcher {
	return &Dispatcher{
		pool:      p,
		methods:   make(map[methodKey]DispatchMethod),
		byTask:    make(map[string][]methodKey),
		pending:   make(map[string]*taskdef.TaskDef),
		completed: make(map[string]*taskdef.TaskDef),
		errored:   make(map[string]*taskdef.TaskDef),
		aborted:   make(map[string]*taskdef.TaskDef),
		prefixOf:  make(map[string]string),
	}
}

// Submit registers methods for task and enqueues it on the pool.
// A duplicate (task_id, event, dispatch_name) key is a contract
// violation and panics immediately, per spec §3's "Internal" error kind
// and §4.2's "fail loudly at submission".
func (d *Dispatcher) Submit(task *taskdef.TaskDef, methods []DispatchMethod) {
	d.mu.Lock()
	keys := make([]methodKey, 0, len(methods))
	for _, m := range methods {
		k := methodKey{taskID: task.ID, event: m.Event, dispatchName: m.DispatchName}
		if _, exists := d.methods[k]; exists {
			d.mu.Unlock()
			panic(fmt.Sprintf("dispatch: duplicate registration for task=%s event=%s dispatch_name=%s", task.ID, m.Event, m.DispatchName))
		}
		d.methods[k] = m
		keys = append(keys, k)
	}
	d.byTask[task.ID] = append(d.byTask[task.ID], keys...)
	d.pending[task.ID] = task
	d.prefixOf[task.ID] = task.Prefix
	d.mu.Unlock()

	d.pool.Submit(task, pool.Callbacks{
		OnStart:    func(id string) { d.route(id, taskdef.EventStart, taskdef.StartPayload{}) },
		OnProgress: func(id string, fraction float64, message string) { d.route(id, taskdef.EventProgress, taskdef.ProgressPayload{Fraction: fraction, Message: message}) },
		OnFinish:   func(id string, result taskdef.Result) { d.routeFinish(id, result) },
		OnError:    func(id string, message string) { d.route(id, taskdef.EventError, taskdef.ErrorPayload{Message: message}) },
		OnAbort:    func(id string, message string) { d.route(id, taskdef.EventAbort, taskdef.AbortPayload{Message: message}) },
	})
}

// matchingHandlers returns the handlers registered for (taskID, event),
// sorted ascending by dispatch name, under the lock.
func (d *Dispatcher) matchingHandlers(taskID string, event taskdef.Event) []DispatchMethod {
	var matched []DispatchMethod
	for _, k := range d.byTask[taskID] {
		if k.event == event {
			if m, ok := d.methods[k]; ok {
				matched = append(matched, m)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DispatchName < matched[j].DispatchName })
	return matched
}

func (d *Dispatcher) transitionState(taskID string, to taskdef.State) {
	task, ok := d.pending[taskID]
	if !ok {
		return
	}
	delete(d.pending, taskID)
	task.State = to
	switch to {
	case taskdef.StateCompleted:
		d.completed[taskID] = task
	case taskdef.StateErrored:
		d.errored[taskID] = task
	case taskdef.StateAborted:
		d.aborted[taskID] = task
	}
}

// removeAllMethods drops every registration for taskID. Called after a
// terminal event has been delivered, per spec §4.2/§8: "after a terminal
// event is delivered, the dispatcher's dispatch-method registry contains
// no entry keyed by that task_id."
func (d *Dispatcher) removeAllMethods(taskID string) {
	for _, k := range d.byTask[taskID] {
		delete(d.methods, k)
	}
	delete(d.byTask, taskID)
}

func (d *Dispatcher) route(taskID string, event taskdef.Event, payload taskdef.EventPayload) {
	d.mu.Lock()
	handlers := d.matchingHandlers(taskID, event)

	terminal := event == taskdef.EventError || event == taskdef.EventAbort
	if task, ok := d.pending[taskID]; ok {
		switch event {
		case taskdef.EventProgress:
			p := payload.(taskdef.ProgressPayload)
			task.Cargo["percentage"] = p.Fraction
			task.Cargo["message"] = p.Message
		case taskdef.EventError:
			task.Cargo["message"] = payload.(taskdef.ErrorPayload).Message
		case taskdef.EventAbort:
			task.Cargo["message"] = payload.(taskdef.AbortPayload).Message
		}
	}
	if terminal {
		state := taskdef.StateErrored
		if event == taskdef.EventAbort {
			state = taskdef.StateAborted
		}
		d.transitionState(taskID, state)
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h.Handler(taskID, payload)
	}

	if terminal {
		d.mu.Lock()
		d.removeAllMethods(taskID)
		d.mu.Unlock()
	}
}

// routeFinish handles the finish event specially: it must compute
// whether this task is the last of its prefix group to terminate
// (writing the group-complete transform into the result tuple) before
// removing the task's methods and before invoking handlers, since
// group_status needs to see this task already in `completed`.
func (d *Dispatcher) routeFinish(taskID string, result taskdef.Result) {
	d.mu.Lock()
	handlers := d.matchingHandlers(taskID, taskdef.EventFinish)
	d.transitionState(taskID, taskdef.StateCompleted)

	tuple := ResultTuple{Code: result.Code, Message: result.Message, WorkerCode: result.Code, WorkerMessage: result.Message}
	prefix := d.prefixOf[taskID]
	if d.groupCompleteLocked(prefix) {
		tuple.GroupComplete = true
		tuple.Code = 1
		tuple.Message = "all done"
	}
	if task, ok := d.completed[taskID]; ok {
		task.Cargo["result_tuple"] = tuple
	}
	d.mu.Unlock()

	payload := taskdef.FinishPayload{Result: taskdef.Result{Code: tuple.Code, Message: tuple.Message}}
	for _, h := range handlers {
		h.Handler(taskID, payload)
	}

	d.mu.Lock()
	d.removeAllMethods(taskID)
	d.mu.Unlock()
}

// groupCompleteLocked reports whether prefix has zero pending, errored
// and aborted tasks. Must be called with d.mu held.
func (d *Dispatcher) groupCompleteLocked(prefix string) bool {
	for id, p := range d.prefixOf {
		if p != prefix {
			continue
		}
		if _, ok := d.pending[id]; ok {
			return false
		}
		if _, ok := d.errored[id]; ok {
			return false
		}
		if _, ok := d.aborted[id]; ok {
			return false
		}
	}
	return true
}

// GroupStatus scans the dispatcher's stacks for every task registered
// under prefix and returns the count in each terminal/non-terminal
// bucket.
func (d *Dispatcher) GroupStatus(prefix string) (pending, completed, errored, aborted int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, p := range d.prefixOf {
		if p != prefix {
			continue
		}
		if _, ok := d.pending[id]; ok {
			pending++
		}
		if _, ok := d.completed[id]; ok {
			completed++
		}
		if _, ok := d.errored[id]; ok {
			errored++
		}
		if _, ok := d.aborted[id]; ok {
			aborted++
		}
	}
	return
}

// GroupComplete reports whether prefix has zero pending, errored and
// aborted tasks (spec §4.2's definition of group completion).
func (d *Dispatcher) GroupComplete(prefix string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.groupCompleteLocked(prefix)
}

// ForgetGroup drops prefixOf/completed/errored/aborted bookkeeping for
// every task registered under prefix. Unlike removeAllMethods (called
// automatically the instant a single task terminates), this is never
// called automatically: a group's tasks keep their terminal-state
// entries around after completion so GroupStatus/GroupComplete can
// still be polled for it. Callers that know a prefix group will never
// be queried again (e.g. ArchivePipeline once a build has fired its
// completion notification) should call this to release it; an
// unforgotten prefix only costs one map entry per terminated task, not
// a correctness problem, but a long-running daemon that never forgets
// finished builds grows prefixOf/completed without bound.
func (d *Dispatcher) ForgetGroup(prefix string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.prefixOf {
		if p != prefix {
			continue
		}
		delete(d.prefixOf, id)
		delete(d.completed, id)
		delete(d.errored, id)
		delete(d.aborted, id)
		delete(d.pending, id)
	}
}

// Cancel cancels a single task via the underlying pool.
func (d *Dispatcher) Cancel(taskID string) bool {
	return d.pool.Cancel(taskID)
}

// CancelByPrefix cancels every active task under prefix.
func (d *Dispatcher) CancelByPrefix(prefix string) int {
	return d.pool.CancelByPrefix(prefix)
}

// WaitForFinished blocks until the underlying pool has no active tasks.
func (d *Dispatcher) WaitForFinished() {
	d.pool.WaitForFinished()
}
