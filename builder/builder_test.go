package builder_test

import (
	"errors"
	"testing"

	"github.com/crddagt/taskgraph/builder"
	"github.com/crddagt/taskgraph/crdgraph"
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

func TestBuild_LinearCreateReadDestroy(t *testing.T) {
	b := builder.New()

	a := &fakeStep{name: "A", fn: noop}
	r := &fakeStep{name: "R", fn: noop}
	d := &fakeStep{name: "D", fn: noop}

	_, err := b.AddStep(a)
	require.NoError(t, err)
	_, err = b.AddStep(r)
	require.NoError(t, err)
	_, err = b.AddStep(d)
	require.NoError(t, err)

	fCreate, ferr := b.AddField(a, crdgraph.TypeTagOf[int](), crdgraph.Create, "fieldA")
	require.NoError(t, ferr)
	fRead, ferr := b.AddField(r, crdgraph.TypeTagOf[int](), crdgraph.Read, "fieldR")
	require.NoError(t, ferr)
	fDestroy, ferr := b.AddField(d, crdgraph.TypeTagOf[int](), crdgraph.Destroy, "fieldD")
	require.NoError(t, ferr)
	_ = fCreate
	_ = fRead
	_ = fDestroy

	_, err = b.LinkFields("fieldA", "fieldR", crdgraph.Low)
	require.NoError(t, err)
	_, err = b.LinkFields("fieldR", "fieldD", crdgraph.Low)
	require.NoError(t, err)

	graph, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Equal(t, 3, graph.StepCount())
	assert.Equal(t, 1, graph.DataCount())
	assert.Equal(t, []crdgraph.StepIndex{0}, graph.GetInitialReadySteps())
}

func TestBuild_FailsOnCycleWithValidationError(t *testing.T) {
	b := builder.New()

	a := &fakeStep{name: "A", fn: noop}
	c := &fakeStep{name: "C", fn: noop}
	_, err := b.AddStep(a)
	require.NoError(t, err)
	_, err = b.AddStep(c)
	require.NoError(t, err)

	_, err = b.LinkSteps(a, c, crdgraph.Low)
	require.NoError(t, err)
	_, err = b.LinkSteps(c, a, crdgraph.Low)
	require.NoError(t, err, "non-eager mode allows the closing link; it surfaces at Build")

	_, err = b.Build()
	require.Error(t, err)

	var verr *builder.GraphValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Diagnostics.HasErrors())
}

func TestAddField_UnknownStepObject(t *testing.T) {
	b := builder.New()
	stranger := &fakeStep{name: "stranger", fn: noop}

	_, err := b.AddField(stranger, crdgraph.TypeTagOf[int](), crdgraph.Create, "field")
	assert.ErrorIs(t, err, builder.ErrUnknownStepObject)
}

func TestLinkFields_UnknownFieldObject(t *testing.T) {
	b := builder.New()
	a := &fakeStep{name: "A", fn: noop}
	_, err := b.AddStep(a)
	require.NoError(t, err)
	_, err = b.AddField(a, crdgraph.TypeTagOf[int](), crdgraph.Create, "known")
	require.NoError(t, err)

	_, err = b.LinkFields("known", "unknown", crdgraph.Low)
	assert.ErrorIs(t, err, builder.ErrUnknownFieldObject)
}
