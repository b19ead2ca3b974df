package taskexec

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crddagt/taskgraph/crdgraph"
)

// WrapperState is a TaskWrapper's lifecycle state (§4.8).
type WrapperState int32

const (
	NotReady WrapperState = iota
	Ready
	Queued
	Executing
	Succeeded
	Failed
	Cancelled
)

func (s WrapperState) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Ready:
		return "Ready"
	case Queued:
		return "Queued"
	case Executing:
		return "Executing"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "WrapperState(?)"
	}
}

// IsTerminal reports whether s is one of Succeeded, Failed, Cancelled.
func (s WrapperState) IsTerminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// TaskWrapper is the per-step orchestration unit. Wrappers do not own
// steps (the ExecutableGraph does); they hold plain pointers to their
// successors rather than literal weak references, since Go's tracing
// collector has no use for a weak-pointer idiom to break ownership
// cycles — the successor slice is still read-only after setup and the
// wrapper never back-references the executor through anything but the
// plain pointer recorded at construction.
type TaskWrapper struct {
	index crdgraph.StepIndex
	step  Step

	state      int32 // atomic WrapperState
	remaining  int32 // atomic predecessors-remaining counter
	successors []*TaskWrapper
	exec       *executorCore

	err                error
	collectTiming      bool
	startedAt, endedAt time.Time
	duration           time.Duration
}

func newTaskWrapper(index crdgraph.StepIndex, step Step, predecessorCount int, exec *executorCore, collectTiming bool) *TaskWrapper {
	initial := NotReady
	if predecessorCount == 0 {
		initial = Ready
	}
	return &TaskWrapper{
		index:         index,
		step:          step,
		state:         int32(initial),
		remaining:     int32(predecessorCount),
		exec:          exec,
		collectTiming: collectTiming,
	}
}

// State returns the wrapper's current lifecycle state.
func (w *TaskWrapper) State() WrapperState {
	return WrapperState(atomic.LoadInt32(&w.state))
}

// run executes the step exactly once, per the §4.8 run() procedure.
func (w *TaskWrapper) run() {
	if w.exec == nil {
		return
	}

	if w.exec.stopRequested() {
		atomic.StoreInt32(&w.state, int32(Cancelled))
		w.exec.emit(w.index, Cancelled, nil)
		w.propagateCancellation()
		w.exec.notifyCompletion()
		return
	}

	if !atomic.CompareAndSwapInt32(&w.state, int32(Queued), int32(Executing)) {
		w.exec.notifyCompletion()
		return
	}
	w.exec.emit(w.index, Executing, nil)

	if w.collectTiming {
		w.startedAt = time.Now()
	}

	err := w.invoke()

	if err != nil {
		w.err = err
		atomic.StoreInt32(&w.state, int32(Failed))
		w.exec.emit(w.index, Failed, err)
	} else {
		atomic.StoreInt32(&w.state, int32(Succeeded))
		w.exec.emit(w.index, Succeeded, nil)
	}

	if w.collectTiming {
		w.endedAt = time.Now()
		w.duration = w.endedAt.Sub(w.startedAt)
	}

	if err != nil && w.exec.abortOnFailure {
		w.exec.requestStop()
	}

	w.notifySuccessors()
	w.exec.notifyCompletion()
}

// invoke calls step.Execute(), converting a panic into a captured error so
// user-code failures never propagate across goroutines (Go's analogue of
// the spec's "exception captured verbatim").
func (w *TaskWrapper) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in step %q: %v", w.step.UniqueName(), r)
		}
	}()
	return w.step.Execute()
}

// notifySuccessors decrements each successor's predecessor counter and
// enqueues any that become Ready, or marks them Cancelled if a stop was
// requested in the meantime.
func (w *TaskWrapper) notifySuccessors() {
	stopped := w.exec.stopRequested()
	for _, succ := range w.successors {
		if stopped {
			if succ.cancelIfNotStarted() {
				succ.exec.emit(succ.index, Cancelled, nil)
				succ.exec.notifyCompletion()
				succ.propagateCancellation()
			}
			continue
		}
		if atomic.AddInt32(&succ.remaining, -1) == 0 {
			atomic.CompareAndSwapInt32(&succ.state, int32(NotReady), int32(Ready))
			if atomic.CompareAndSwapInt32(&succ.state, int32(Ready), int32(Queued)) {
				w.exec.emit(succ.index, Queued, nil)
				w.exec.enqueue(succ)
			}
		}
	}
}

// propagateCancellation marks every successor Cancelled, recursively,
// stopping at anything already terminal (nothing to overwrite) or already
// Cancelled (already visited via another path). Each wrapper cancelled this
// way will never reach run(), so it must still notify completion itself —
// otherwise a worker-pool executor's completion counter would never reach
// the step count.
func (w *TaskWrapper) propagateCancellation() {
	for _, succ := range w.successors {
		if succ.cancelIfNotStarted() {
			succ.exec.emit(succ.index, Cancelled, nil)
			succ.exec.notifyCompletion()
			succ.propagateCancellation()
		}
	}
}

// cancelIfNotStarted transitions the wrapper to Cancelled if it is still in
// NotReady, Ready, or Queued. Reports whether it performed the transition.
func (w *TaskWrapper) cancelIfNotStarted() bool {
	for {
		cur := WrapperState(atomic.LoadInt32(&w.state))
		if cur != NotReady && cur != Ready && cur != Queued {
			return false
		}
		if atomic.CompareAndSwapInt32(&w.state, int32(cur), int32(Cancelled)) {
			return true
		}
	}
}
