// Package pool implements the bounded worker pool (spec §4.1, C3): a
// fixed set of goroutines executing TaskDef.Worker, with per-task
// cooperative cancellation and a single delivery goroutine so lifecycle
// callbacks never run on a worker goroutine.
//
// Grounded on the teacher's internal/jobs WorkerPool/Worker pair: a
// pool of long-lived goroutines pulling from a shared queue, a pause
// flag, and a resize operation that cancels the most recently started
// jobs first. The restart-on-panic behaviour below is new, borrowed
// from lyrebirdaudio-go's internal/supervisor Service/restart shape.
package pool

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// Callbacks are the lifecycle hooks a caller registers at Submit time.
// Any may be nil. All are invoked on the pool's single delivery
// goroutine (spec §5: "All lifecycle callback handlers ... execute on a
// single dedicated dispatcher thread").
type Callbacks struct {
	OnStart    func(taskID string)
	OnProgress func(taskID string, fraction float64, message string)
	OnFinish   func(taskID string, result taskdef.Result)
	OnError    func(taskID string, message string)
	OnAbort    func(taskID string, message string)
}

type queuedTask struct {
	task *taskdef.TaskDef
	cb   Callbacks
}

type delivery struct {
	taskID  string
	payload taskdef.EventPayload
	cb      Callbacks
}

// Pool is a bounded set of worker goroutines. The zero value is not
// usable; construct with New.
type Pool struct {
	mu      sync.Mutex
	pending []*queuedTask
	active  map[string]*queuedTask // tasks currently assigned to a worker
	cond    *sync.Cond

	size    int
	workers []*workerHandle

	deliverCh chan delivery
	wg        sync.WaitGroup // worker goroutines
	deliverWg sync.WaitGroup // delivery goroutine

	pausedMu sync.RWMutex
	paused   bool

	ctx    context.Context
	cancel context.CancelFunc

	closed bool
}

type workerHandle struct {
	id     int
	stopCh chan struct{}
}

// New creates a Pool with n worker goroutines and starts them along
// with the single delivery goroutine.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		active:    make(map[string]*queuedTask),
		size:      n,
		deliverCh: make(chan delivery, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	p.deliverWg.Add(1)
	go p.deliverLoop()

	for i := 0; i < n; i++ {
		p.startWorker(i)
	}
	return p
}

func (p *Pool) startWorker(id int) {
	h := &workerHandle{id: id, stopCh: make(chan struct{})}
	p.workers = append(p.workers, h)
	p.wg.Add(1)
	go p.superviseWorker(h)
}

// superviseWorker runs the worker loop and restarts it if it panics,
// so one misbehaving task.Worker does not shrink pool capacity
// permanently. Mirrors lyrebirdaudio-go's supervisor restart behaviour
// applied to a fixed-size pool instead of a dynamic service set.
func (p *Pool) superviseWorker(h *workerHandle) {
	defer p.wg.Done()
	for {
		done := p.runWorkerOnce(h)
		if done {
			return
		}
		logger.Warn("pool worker restarted after panic", "worker_id", h.id)
	}
}

// runWorkerOnce executes the worker loop, recovering from a panic in a
// task.Worker call. Returns true if the worker should not be restarted
// (pool shutting down), false if it panicked and should be restarted.
func (p *Pool) runWorkerOnce(h *workerHandle) (shutdown bool) {
	defer func() {
		if r := recover(); r != nil {
			shutdown = false
		}
	}()

	for {
		select {
		case <-h.stopCh:
			return true
		case <-p.ctx.Done():
			return true
		default:
		}

		if p.isPaused() {
			select {
			case <-h.stopCh:
				return true
			case <-p.ctx.Done():
				return true
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		qt := p.dequeue(h)
		if qt == nil {
			return true // stopCh or ctx closed while waiting
		}

		p.execute(qt)
	}
}

// dequeue blocks until a task is available or the pool is stopping for
// this worker. Returns nil if the worker should exit.
func (p *Pool) dequeue(h *workerHandle) *queuedTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) == 0 {
		select {
		case <-h.stopCh:
			return nil
		case <-p.ctx.Done():
			return nil
		default:
		}
		if p.closed {
			return nil
		}
		p.cond.Wait()
		select {
		case <-h.stopCh:
			return nil
		case <-p.ctx.Done():
			return nil
		default:
		}
	}

	qt := p.pending[0]
	p.pending = p.pending[1:]
	p.active[qt.task.ID] = qt
	return qt
}

func (p *Pool) isPaused() bool {
	p.pausedMu.RLock()
	defer p.pausedMu.RUnlock()
	return p.paused
}

// Pause prevents workers from picking up new tasks. Tasks already
// running continue; new submissions still queue.
func (p *Pool) Pause() {
	p.pausedMu.Lock()
	p.paused = true
	p.pausedMu.Unlock()
}

// Unpause resumes dequeueing.
func (p *Pool) Unpause() {
	p.pausedMu.Lock()
	p.paused = false
	p.pausedMu.Unlock()
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) execute(qt *queuedTask) {
	task := qt.task
	p.deliverCh <- delivery{taskID: task.ID, payload: taskdef.StartPayload{}, cb: qt.cb}

	progress := func(fraction float64, message string) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		p.deliverCh <- delivery{taskID: task.ID, payload: taskdef.ProgressPayload{Fraction: fraction, Message: message}, cb: qt.cb}
	}

	result, err := p.runTask(task, progress)

	p.mu.Lock()
	delete(p.active, task.ID)
	p.mu.Unlock()

	switch {
	case task.Cancel.Cancelled():
		reason := "cancelled before completion"
		if result.Code == taskdef.CodeCancelledMidStream {
			reason = "cancelled mid-execution"
		} else if err == nil {
			reason = "cancelled after execution completed"
		}
		p.deliverCh <- delivery{taskID: task.ID, payload: taskdef.AbortPayload{Message: reason}, cb: qt.cb}
	case err != nil:
		p.deliverCh <- delivery{taskID: task.ID, payload: taskdef.ErrorPayload{Message: err.Error()}, cb: qt.cb}
	default:
		p.deliverCh <- delivery{taskID: task.ID, payload: taskdef.FinishPayload{Result: result}, cb: qt.cb}
	}
}

// runTask invokes the worker, converting a panic into an error event
// rather than crashing the worker goroutine (the supervisor would
// restart it regardless, but a clean error is better for the caller).
func (p *Pool) runTask(task *taskdef.TaskDef, progress taskdef.ProgressFunc) (result taskdef.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return task.Worker(p.ctx, task.Cancel, progress)
}

type panicError struct{ value any }

func (e *panicError) Error() string {
	return "worker panicked: " + toString(e.value)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown panic value"
}

func (p *Pool) deliverLoop() {
	defer p.deliverWg.Done()
	for d := range p.deliverCh {
		switch payload := d.payload.(type) {
		case taskdef.StartPayload:
			if d.cb.OnStart != nil {
				d.cb.OnStart(d.taskID)
			}
		case taskdef.ProgressPayload:
			if d.cb.OnProgress != nil {
				d.cb.OnProgress(d.taskID, payload.Fraction, payload.Message)
			}
		case taskdef.FinishPayload:
			if d.cb.OnFinish != nil {
				d.cb.OnFinish(d.taskID, payload.Result)
			}
		case taskdef.ErrorPayload:
			if d.cb.OnError != nil {
				d.cb.OnError(d.taskID, payload.Message)
			}
		case taskdef.AbortPayload:
			if d.cb.OnAbort != nil {
				d.cb.OnAbort(d.taskID, payload.Message)
			}
		}
	}
}

// Submit enqueues task. Non-blocking: if a worker is idle it picks the
// task up immediately, otherwise it waits behind whatever is queued.
func (p *Pool) Submit(task *taskdef.TaskDef, cb Callbacks) string {
	p.mu.Lock()
	p.pending = append(p.pending, &queuedTask{task: task, cb: cb})
	p.cond.Signal()
	p.mu.Unlock()
	return task.ID
}

// Cancel sets the cancellation flag for task_id if it is active
// (pending or running). Returns false if the task is unknown.
func (p *Pool) Cancel(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if qt, ok := p.active[taskID]; ok {
		qt.task.Cancel.Cancel()
		return true
	}
	for _, qt := range p.pending {
		if qt.task.ID == taskID {
			qt.task.Cancel.Cancel()
			return true
		}
	}
	return false
}

// CancelByPrefix cancels every active (pending or running) task whose
// prefix starts with prefix.
func (p *Pool) CancelByPrefix(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, qt := range p.active {
		if strings.HasPrefix(qt.task.Prefix, prefix) {
			qt.task.Cancel.Cancel()
			count++
		}
	}
	for _, qt := range p.pending {
		if strings.HasPrefix(qt.task.Prefix, prefix) {
			qt.task.Cancel.Cancel()
			count++
		}
	}
	return count
}

// ActiveTasks returns a snapshot of id -> TaskDef for every task that is
// pending or running.
func (p *Pool) ActiveTasks() map[string]*taskdef.TaskDef {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]*taskdef.TaskDef, len(p.active)+len(p.pending))
	for id, qt := range p.active {
		out[id] = qt.task
	}
	for _, qt := range p.pending {
		out[qt.task.ID] = qt.task
	}
	return out
}

// WaitForFinished blocks until no tasks remain pending or running.
func (p *Pool) WaitForFinished() {
	for {
		p.mu.Lock()
		n := len(p.active) + len(p.pending)
		p.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Resize changes the number of worker goroutines. Growing starts new
// workers immediately; shrinking first cancels one active task per
// removed worker, picked in descending task-ID order (task IDs are
// random UUIDs, so this is not start order), then signals the removed
// workers to exit after their current task.
func (p *Pool) Resize(n int) {
	if n < 1 {
		n = 1
	}

	p.mu.Lock()
	current := len(p.workers)
	p.mu.Unlock()

	if n > current {
		for i := current; i < n; i++ {
			p.startWorker(i)
		}
		return
	}
	if n == current {
		return
	}

	toStop := current - n

	p.mu.Lock()
	var runningTasks []string
	for id := range p.active {
		runningTasks = append(runningTasks, id)
	}
	sort.Slice(runningTasks, func(i, j int) bool { return runningTasks[i] > runningTasks[j] })
	p.mu.Unlock()

	for i := 0; i < toStop && i < len(runningTasks); i++ {
		p.Cancel(runningTasks[i])
	}

	p.mu.Lock()
	if toStop > len(p.workers) {
		toStop = len(p.workers)
	}
	stopping := p.workers[len(p.workers)-toStop:]
	p.workers = p.workers[:len(p.workers)-toStop]
	p.mu.Unlock()

	for _, h := range stopping {
		close(h.stopCh)
	}
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Stop signals every worker to exit after its current task, waits for
// them, then shuts down the delivery goroutine. Shutdown policy: active
// tasks are cancelled first so the wait bound stays finite (spec §5).
func (p *Pool) Stop() {
	p.mu.Lock()
	for _, qt := range p.active {
		qt.task.Cancel.Cancel()
	}
	for _, qt := range p.pending {
		qt.task.Cancel.Cancel()
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	close(p.deliverCh)
	p.deliverWg.Wait()
}
