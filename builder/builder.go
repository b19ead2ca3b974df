// Package builder bridges user-owned Step/field objects to crdgraph's
// dense indices and, on Build, assembles a taskexec.ExecutableGraph.
//
// Grounded on the teacher's core.Graph label-to-index maps (core/types.go),
// generalized from string vertex labels to arbitrary comparable object
// identity (step and field objects are expected to be pointers, same as
// the teacher's own Vertex/Edge objects are heap-allocated and compared by
// identity where the library needs a map key).
package builder

import (
	"github.com/crddagt/taskgraph/crdgraph"
	"github.com/crddagt/taskgraph/dataobj"
	"github.com/crddagt/taskgraph/taskexec"
)

// GraphBuilder maintains parallel ordered sequences of step and field
// objects alongside the index-only GraphCore, resolving object identity to
// index on every call so user code never has to track indices itself.
type GraphBuilder struct {
	core *crdgraph.GraphCore

	steps     []taskexec.Step
	stepIndex map[taskexec.Step]crdgraph.StepIndex

	fieldObjects []any
	fieldIndex   map[any]crdgraph.FieldIndex
}

// New creates an empty GraphBuilder. opts configure the underlying
// GraphCore (e.g. crdgraph.WithEagerValidation()).
func New(opts ...crdgraph.GraphCoreOption) *GraphBuilder {
	return &GraphBuilder{
		core:       crdgraph.NewGraphCore(opts...),
		stepIndex:  make(map[taskexec.Step]crdgraph.StepIndex),
		fieldIndex: make(map[any]crdgraph.FieldIndex),
	}
}

// AddStep registers a new step object and returns its freshly assigned
// index. Fails with ErrDuplicateStepObject if step was already registered.
func (b *GraphBuilder) AddStep(step taskexec.Step) (crdgraph.StepIndex, error) {
	if _, exists := b.stepIndex[step]; exists {
		return 0, ErrDuplicateStepObject
	}

	idx := crdgraph.StepIndex(len(b.steps))
	if err := b.core.AddStep(idx); err != nil {
		return 0, err
	}

	b.steps = append(b.steps, step)
	b.stepIndex[step] = idx
	return idx, nil
}

// AddField registers a new field object owned by owningStep.
func (b *GraphBuilder) AddField(owningStep taskexec.Step, typeTag crdgraph.TypeTag, usage crdgraph.Usage, fieldObject any) (crdgraph.FieldIndex, error) {
	ownerIdx, ok := b.stepIndex[owningStep]
	if !ok {
		return 0, ErrUnknownStepObject
	}
	if _, exists := b.fieldIndex[fieldObject]; exists {
		return 0, ErrDuplicateFieldObject
	}

	idx := crdgraph.FieldIndex(len(b.fieldObjects))
	if err := b.core.AddField(ownerIdx, idx, typeTag, usage); err != nil {
		return 0, err
	}

	b.fieldObjects = append(b.fieldObjects, fieldObject)
	b.fieldIndex[fieldObject] = idx
	return idx, nil
}

// LinkSteps resolves stepA/stepB to indices and delegates to GraphCore.
func (b *GraphBuilder) LinkSteps(stepA, stepB taskexec.Step, trust crdgraph.Trust) (crdgraph.StepLinkIndex, error) {
	a, ok := b.stepIndex[stepA]
	if !ok {
		return 0, ErrUnknownStepObject
	}
	bb, ok := b.stepIndex[stepB]
	if !ok {
		return 0, ErrUnknownStepObject
	}
	return b.core.LinkSteps(a, bb, trust)
}

// LinkFields resolves fieldA/fieldB to indices and delegates to GraphCore.
func (b *GraphBuilder) LinkFields(fieldA, fieldB any, trust crdgraph.Trust) (crdgraph.FieldLinkIndex, error) {
	a, ok := b.fieldIndex[fieldA]
	if !ok {
		return 0, ErrUnknownFieldObject
	}
	bb, ok := b.fieldIndex[fieldB]
	if !ok {
		return 0, ErrUnknownFieldObject
	}
	return b.core.LinkFields(a, bb, trust)
}

// Build validates the graph as sealed, and on success assembles a
// taskexec.ExecutableGraph: one dataobj.Data per field-equivalence class
// with its access-rights table, a fresh authorization token per step plus
// a reserved graph-level token, and per-step predecessor counts and
// successor lists derived from the combined explicit+implicit edge set.
func (b *GraphBuilder) Build() (*taskexec.ExecutableGraph, error) {
	exported, diag, err := b.core.ExportGraph()
	if err != nil {
		return nil, &GraphValidationError{Diagnostics: diag}
	}

	stepTokens := make([]dataobj.Token, len(b.steps))
	for s := range b.steps {
		stepTokens[s] = dataobj.Token(s + 1) // 0 is never a valid issued token
	}
	graphToken := dataobj.Token(len(b.steps) + 1)

	dataObjects := make([]*dataobj.Data, len(exported.DataObjects))
	for d, info := range exported.DataObjects {
		rights := make(map[dataobj.Token]crdgraph.Usage, len(info.Fields))
		for _, f := range info.Fields {
			owner, _ := b.core.FieldOwner(f)
			usage, _ := b.core.FieldUsage(f)
			rights[stepTokens[owner]] = usage
		}
		dataObjects[d] = dataobj.New(info.Type, rights)
	}

	stepAccessRights := make([][]taskexec.AccessRight, len(b.steps))
	for f, d := range exported.FieldToData {
		owner, _ := b.core.FieldOwner(crdgraph.FieldIndex(f))
		usage, _ := b.core.FieldUsage(crdgraph.FieldIndex(f))
		stepAccessRights[owner] = append(stepAccessRights[owner], taskexec.AccessRight{Data: d, Usage: usage})
	}

	predecessorCounts := make([]int32, len(b.steps))
	successors := make([][]crdgraph.StepIndex, len(b.steps))
	for _, link := range exported.StepLinks {
		predecessorCounts[link.After]++
		successors[link.Before] = append(successors[link.Before], link.After)
	}

	return taskexec.NewExecutableGraph(
		append([]taskexec.Step(nil), b.steps...),
		dataObjects,
		predecessorCounts,
		successors,
		stepTokens,
		graphToken,
		stepAccessRights,
		exported.DataObjects,
	), nil
}
