package pool

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

func immediateWorker(result taskdef.Result) taskdef.WorkerFunc {
	return func(ctx context.Context, cancelled *taskdef.CancelFlag, progress taskdef.ProgressFunc) (taskdef.Result, error) {
		progress(0.5, "halfway")
		return result, nil
	}
}

func blockingWorker(release <-chan struct{}) taskdef.WorkerFunc {
	return func(ctx context.Context, cancelled *taskdef.CancelFlag, progress taskdef.ProgressFunc) (taskdef.Result, error) {
		for {
			select {
			case <-release:
				return taskdef.Result{}, nil
			case <-time.After(5 * time.Millisecond):
				if cancelled.Cancelled() {
					return taskdef.Result{Code: taskdef.CodeCancelledMidStream}, nil
				}
			}
		}
	}
}

func TestSubmitDeliversStartProgressFinish(t *testing.T) {
	p := New(2)
	defer p.Stop()

	var mu sync.Mutex
	var events []string

	cb := Callbacks{
		OnStart: func(id string) {
			mu.Lock()
			events = append(events, "start")
			mu.Unlock()
		},
		OnProgress: func(id string, fraction float64, message string) {
			mu.Lock()
			events = append(events, "progress")
			mu.Unlock()
		},
		OnFinish: func(id string, result taskdef.Result) {
			mu.Lock()
			events = append(events, "finish")
			mu.Unlock()
		},
	}

	task := taskdef.New("T", immediateWorker(taskdef.Result{Code: taskdef.CodeSuccess}))
	p.Submit(task, cb)
	p.WaitForFinished()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 || events[0] != "start" || events[1] != "progress" || events[2] != "finish" {
		t.Fatalf("unexpected event order: %v", events)
	}
}

func TestCancelSurfacesAbort(t *testing.T) {
	p := New(1)
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)

	done := make(chan struct{})
	var aborted bool

	task := taskdef.New("T", blockingWorker(release))
	p.Submit(task, Callbacks{
		OnAbort: func(id string, message string) {
			aborted = true
			close(done)
		},
		OnFinish: func(id string, result taskdef.Result) {
			close(done)
		},
	})

	time.Sleep(10 * time.Millisecond)
	if !p.Cancel(task.ID) {
		t.Fatal("expected Cancel to find the running task")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}

	if !aborted {
		t.Fatal("expected aborted terminal event after cancellation")
	}
}

func TestCancelByPrefixCancelsAllMatching(t *testing.T) {
	p := New(4)
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)

	var mu sync.Mutex
	abortedCount := 0
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		task := taskdef.New("Y_sub", blockingWorker(release))
		p.Submit(task, Callbacks{
			OnAbort: func(id string, message string) {
				mu.Lock()
				abortedCount++
				mu.Unlock()
				wg.Done()
			},
		})
	}

	time.Sleep(20 * time.Millisecond)
	n := p.CancelByPrefix("Y")
	if n != 4 {
		t.Fatalf("expected 4 tasks cancelled, got %d", n)
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all aborts")
	}

	mu.Lock()
	defer mu.Unlock()
	if abortedCount != 4 {
		t.Fatalf("expected 4 aborted callbacks, got %d", abortedCount)
	}
}

func TestCancelByPrefixRequiresPrefixMatch(t *testing.T) {
	p := New(1)
	defer p.Stop()

	task := taskdef.New("OTHER_1", immediateWorker(taskdef.Result{Code: taskdef.CodeSuccess}))
	p.Submit(task, Callbacks{})
	p.WaitForFinished()

	if !strings.HasPrefix("OTHER_1", "OTHER") {
		t.Fatal("sanity check failed")
	}
	if n := p.CancelByPrefix("ZZZ"); n != 0 {
		t.Fatalf("expected 0 matches, got %d", n)
	}
}
