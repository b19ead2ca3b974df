package taskexec

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/crddagt/taskgraph/crdgraph"
)

// ExecutorConfig configures an Executor. ThreadCount 0 means "pick hardware
// parallelism"; 1 means strictly sequential.
type ExecutorConfig struct {
	ThreadCount    int
	CollectTiming  bool
	AbortOnFailure bool

	// OnEvent, if set, is called synchronously on every transition to
	// Queued, Executing, Succeeded, Failed or Cancelled (NotReady -> Ready
	// is not reported), from whichever goroutine makes the transition
	// (Execute's own goroutine for the initial Queued events). It must not
	// block or call back into the Executor. A host wires this to its own logger (zerolog, zap, ...)
	// instead of this package importing one itself.
	OnEvent func(Event)
}

// Event is one TaskWrapper state transition, reported to ExecutorConfig's
// OnEvent hook.
type Event struct {
	Step  crdgraph.StepIndex
	State WrapperState
	Err   error
}

// ExecutionResult summarizes one Executor.Execute run.
type ExecutionResult struct {
	Success        bool
	Stopped        bool
	CompletedSteps []crdgraph.StepIndex
	FailedSteps    []crdgraph.StepIndex
	ErrorMessages  []string
	CancelledSteps []crdgraph.StepIndex
	TotalDuration  time.Duration
	StepDurations  map[crdgraph.StepIndex]time.Duration // nil unless CollectTiming
}

// Executor runs an ExecutableGraph to completion.
type Executor interface {
	Execute(graph *ExecutableGraph) (*ExecutionResult, error)
	RequestStop()
	StopRequested() bool
}

// NewExecutor picks the sequential or worker-pool implementation per
// cfg.ThreadCount.
func NewExecutor(cfg ExecutorConfig) Executor {
	if cfg.ThreadCount == 1 {
		return &SequentialExecutor{cfg: cfg}
	}
	return &WorkerPoolExecutor{cfg: cfg}
}

// executorCore holds the state shared between an Executor and every
// TaskWrapper it owns: the stop flag, completion counter, and the queue
// push function (a closure so sequential and worker-pool executors can
// supply entirely different queue mechanics without TaskWrapper knowing
// which one it's talking to).
type executorCore struct {
	abortOnFailure bool
	stopFlag       *atomic.Bool
	completed      atomic.Int32
	total          int32
	doneCh         chan struct{}
	doneOnce       sync.Once
	pushFn         func(w *TaskWrapper)
	onEvent        func(Event)
}

func (c *executorCore) stopRequested() bool    { return c.stopFlag.Load() }
func (c *executorCore) requestStop()           { c.stopFlag.Store(true) }
func (c *executorCore) enqueue(w *TaskWrapper) { c.pushFn(w) }

func (c *executorCore) emit(step crdgraph.StepIndex, state WrapperState, err error) {
	if c.onEvent != nil {
		c.onEvent(Event{Step: step, State: state, Err: err})
	}
}

func (c *executorCore) notifyCompletion() {
	if c.completed.Add(1) == c.total {
		c.doneOnce.Do(func() { close(c.doneCh) })
	}
}

// buildWrappers constructs one TaskWrapper per step and wires every
// successor pointer, once, before any wrapper runs (§4.8).
func buildWrappers(graph *ExecutableGraph, core *executorCore, collectTiming bool) []*TaskWrapper {
	n := graph.StepCount()
	wrappers := make([]*TaskWrapper, n)
	for s := 0; s < n; s++ {
		idx := crdgraph.StepIndex(s)
		wrappers[s] = newTaskWrapper(idx, graph.Step(idx), int(graph.predecessorCounts[s]), core, collectTiming)
	}
	for s := 0; s < n; s++ {
		for _, succIdx := range graph.Successors(crdgraph.StepIndex(s)) {
			wrappers[s].successors = append(wrappers[s].successors, wrappers[succIdx])
		}
	}
	return wrappers
}

// seedReady enqueues every initially-ready wrapper (predecessor count zero).
func seedReady(graph *ExecutableGraph, wrappers []*TaskWrapper, core *executorCore) {
	for _, s := range graph.GetInitialReadySteps() {
		w := wrappers[s]
		if atomic.CompareAndSwapInt32(&w.state, int32(Ready), int32(Queued)) {
			core.emit(w.index, Queued, nil)
			core.enqueue(w)
		}
	}
}

// buildResult aggregates terminal wrapper states into an ExecutionResult.
func buildResult(wrappers []*TaskWrapper, stopped bool, total time.Duration, collectTiming bool) *ExecutionResult {
	res := &ExecutionResult{Stopped: stopped, TotalDuration: total}
	if collectTiming {
		res.StepDurations = make(map[crdgraph.StepIndex]time.Duration, len(wrappers))
	}

	ok := true
	for _, w := range wrappers {
		switch w.State() {
		case Succeeded:
			res.CompletedSteps = append(res.CompletedSteps, w.index)
		case Failed:
			ok = false
			res.FailedSteps = append(res.FailedSteps, w.index)
			msg := ""
			if w.err != nil {
				msg = w.err.Error()
			}
			res.ErrorMessages = append(res.ErrorMessages, msg)
		case Cancelled:
			ok = false
			res.CancelledSteps = append(res.CancelledSteps, w.index)
		default:
			ok = false
		}
		if collectTiming {
			res.StepDurations[w.index] = w.duration
		}
	}

	res.Success = ok && !stopped
	return res
}

// SequentialExecutor drains the ready queue in the calling goroutine: no
// worker goroutines are spawned at all, matching the spec's "single-
// threaded variant".
type SequentialExecutor struct {
	cfg      ExecutorConfig
	stopFlag atomic.Bool
}

func (e *SequentialExecutor) RequestStop()        { e.stopFlag.Store(true) }
func (e *SequentialExecutor) StopRequested() bool { return e.stopFlag.Load() }

func (e *SequentialExecutor) Execute(graph *ExecutableGraph) (*ExecutionResult, error) {
	n := graph.StepCount()
	core := &executorCore{
		abortOnFailure: e.cfg.AbortOnFailure,
		stopFlag:       &e.stopFlag,
		total:          int32(n),
		doneCh:         make(chan struct{}),
		onEvent:        e.cfg.OnEvent,
	}

	var fifo []*TaskWrapper
	core.pushFn = func(w *TaskWrapper) { fifo = append(fifo, w) }

	wrappers := buildWrappers(graph, core, e.cfg.CollectTiming)
	start := time.Now()
	seedReady(graph, wrappers, core)

	for len(fifo) > 0 {
		w := fifo[0]
		fifo = fifo[1:]
		w.run()
	}

	return buildResult(wrappers, core.stopRequested(), time.Since(start), e.cfg.CollectTiming), nil
}

// WorkerPoolExecutor bounds concurrent step execution with a weighted
// semaphore and tracks the in-flight goroutines with an errgroup, grounded
// on ahrav-go-gavel's Layer.Execute.
type WorkerPoolExecutor struct {
	cfg      ExecutorConfig
	stopFlag atomic.Bool
}

func (e *WorkerPoolExecutor) RequestStop()        { e.stopFlag.Store(true) }
func (e *WorkerPoolExecutor) StopRequested() bool { return e.stopFlag.Load() }

func (e *WorkerPoolExecutor) Execute(graph *ExecutableGraph) (*ExecutionResult, error) {
	threadCount := e.cfg.ThreadCount
	if threadCount <= 0 {
		threadCount = runtime.GOMAXPROCS(0)
	}

	n := graph.StepCount()
	core := &executorCore{
		abortOnFailure: e.cfg.AbortOnFailure,
		stopFlag:       &e.stopFlag,
		total:          int32(n),
		doneCh:         make(chan struct{}),
		onEvent:        e.cfg.OnEvent,
	}

	sem := semaphore.NewWeighted(int64(threadCount))
	g, gctx := errgroup.WithContext(context.Background())

	core.pushFn = func(w *TaskWrapper) {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			w.run()
			return nil
		})
	}

	wrappers := buildWrappers(graph, core, e.cfg.CollectTiming)
	start := time.Now()
	seedReady(graph, wrappers, core)

	if n > 0 {
		<-core.doneCh
	}
	_ = g.Wait()

	return buildResult(wrappers, core.stopRequested(), time.Since(start), e.cfg.CollectTiming), nil
}
