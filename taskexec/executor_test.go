package taskexec_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crddagt/taskgraph/crdgraph"
	"github.com/crddagt/taskgraph/taskexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStep struct {
	name string
	fn   func() error
}

func (s *fakeStep) Execute() error       { return s.fn() }
func (s *fakeStep) State() string        { return "" }
func (s *fakeStep) ClassName() string    { return "fakeStep" }
func (s *fakeStep) FriendlyName() string { return s.name }
func (s *fakeStep) UniqueName() string   { return s.name }

func noop() error { return nil }

// linearGraph builds A -> B -> C with b's Execute supplied by the caller.
func linearGraph(bFn func() error) (*taskexec.ExecutableGraph, *fakeStep, *fakeStep, *fakeStep) {
	a := &fakeStep{name: "A", fn: noop}
	b := &fakeStep{name: "B", fn: bFn}
	c := &fakeStep{name: "C", fn: noop}

	steps := []taskexec.Step{a, b, c}
	predecessorCounts := []int32{0, 1, 1}
	successors := [][]crdgraph.StepIndex{{1}, {2}, nil}

	graph := taskexec.NewExecutableGraph(
		steps,
		nil,
		predecessorCounts,
		successors,
		nil,
		0,
		make([][]taskexec.AccessRight, 3),
		nil,
	)
	return graph, a, b, c
}

func TestSequentialExecutor_HappyPath(t *testing.T) {
	graph, _, _, _ := linearGraph(noop)
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 1})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Stopped)
	assert.ElementsMatch(t, []crdgraph.StepIndex{0, 1, 2}, res.CompletedSteps)
	assert.Empty(t, res.FailedSteps)
	assert.Empty(t, res.CancelledSteps)
}

func TestSequentialExecutor_MiddleStepFailsAbortsAndCancelsSuccessor(t *testing.T) {
	boom := errors.New("boom")
	graph, _, _, _ := linearGraph(func() error { return boom })
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 1, AbortOnFailure: true})

	res, err := exec.Execute(graph)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Stopped)
	assert.Equal(t, []crdgraph.StepIndex{0}, res.CompletedSteps)
	assert.Equal(t, []crdgraph.StepIndex{1}, res.FailedSteps)
	require.Len(t, res.ErrorMessages, 1)
	assert.Equal(t, "boom", res.ErrorMessages[0])
	assert.Equal(t, []crdgraph.StepIndex{2}, res.CancelledSteps)
}

func TestWorkerPoolExecutor_HappyPath(t *testing.T) {
	graph, _, _, _ := linearGraph(noop)
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 4})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.ElementsMatch(t, []crdgraph.StepIndex{0, 1, 2}, res.CompletedSteps)
}

func TestWorkerPoolExecutor_AbortOnFailure(t *testing.T) {
	boom := errors.New("boom")
	graph, _, _, _ := linearGraph(func() error { return boom })
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 4, AbortOnFailure: true})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Stopped)
	assert.Equal(t, []crdgraph.StepIndex{1}, res.FailedSteps)
	assert.Equal(t, []crdgraph.StepIndex{2}, res.CancelledSteps)
}

func TestCollectTiming_PopulatesStepDurations(t *testing.T) {
	graph, _, _, _ := linearGraph(noop)
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 1, CollectTiming: true})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	require.NotNil(t, res.StepDurations)
	assert.Len(t, res.StepDurations, 3)
}

func TestOnEvent_ReportsStateTransitions(t *testing.T) {
	graph, _, _, _ := linearGraph(noop)

	var events []taskexec.Event
	var mu sync.Mutex
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{
		ThreadCount: 1,
		OnEvent: func(e taskexec.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	assert.True(t, res.Success)

	var succeeded int
	for _, e := range events {
		if e.State == taskexec.Succeeded {
			succeeded++
		}
	}
	assert.Equal(t, 3, succeeded)
}

// TestWorkerPoolExecutor_FanOutFanIn checks A fanning out to four parallel
// steps and back in to C: every Bi starts after A starts, and C starts
// after every Bi starts.
func TestWorkerPoolExecutor_FanOutFanIn(t *testing.T) {
	var startedAt sync.Map // step name -> time.Time
	track := func(name string) func() error {
		return func() error {
			startedAt.Store(name, time.Now())
			time.Sleep(5 * time.Millisecond)
			return nil
		}
	}

	a := &fakeStep{name: "A", fn: track("A")}
	b1 := &fakeStep{name: "B1", fn: track("B1")}
	b2 := &fakeStep{name: "B2", fn: track("B2")}
	b3 := &fakeStep{name: "B3", fn: track("B3")}
	b4 := &fakeStep{name: "B4", fn: track("B4")}
	c := &fakeStep{name: "C", fn: track("C")}

	steps := []taskexec.Step{a, b1, b2, b3, b4, c}
	predecessorCounts := []int32{0, 1, 1, 1, 1, 4}
	successors := [][]crdgraph.StepIndex{
		{1, 2, 3, 4}, // A -> B1..B4
		{5}, {5}, {5}, {5}, // each Bi -> C
		nil,
	}

	graph := taskexec.NewExecutableGraph(
		steps, nil, predecessorCounts, successors, nil, 0,
		make([][]taskexec.AccessRight, 6), nil,
	)

	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 4})
	res, err := exec.Execute(graph)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.ElementsMatch(t, []crdgraph.StepIndex{0, 1, 2, 3, 4, 5}, res.CompletedSteps)

	aTime, _ := startedAt.Load("A")
	cTime, _ := startedAt.Load("C")
	for _, name := range []string{"B1", "B2", "B3", "B4"} {
		bTime, ok := startedAt.Load(name)
		require.True(t, ok)
		assert.True(t, bTime.(time.Time).After(aTime.(time.Time)))
		assert.True(t, cTime.(time.Time).After(bTime.(time.Time)))
	}
}

func TestPanicInStep_CapturedAsFailure(t *testing.T) {
	graph, _, _, _ := linearGraph(func() error { panic("kaboom") })
	exec := taskexec.NewExecutor(taskexec.ExecutorConfig{ThreadCount: 1})

	res, err := exec.Execute(graph)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.FailedSteps, 1)
	assert.Equal(t, crdgraph.StepIndex(1), res.FailedSteps[0])
	require.Len(t, res.ErrorMessages, 1)
	assert.Contains(t, res.ErrorMessages[0], "kaboom")
}
