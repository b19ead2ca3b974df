package taskexec

import (
	"github.com/crddagt/taskgraph/crdgraph"
	"github.com/crddagt/taskgraph/dataobj"
)

// AccessRight is one entry of a step's access-rights list: the data object
// it may touch and the usage it is authorized for.
type AccessRight struct {
	Data  crdgraph.DataIndex
	Usage crdgraph.Usage
}

// ExecutableGraph is the immutable execution plan produced by
// builder.GraphBuilder.Build. Every field is fixed at construction; all
// reads during execution are safe without synchronization.
type ExecutableGraph struct {
	steps             []Step
	dataObjects       []*dataobj.Data
	predecessorCounts []int32
	successors        [][]crdgraph.StepIndex
	stepTokens        []dataobj.Token
	graphToken        dataobj.Token
	stepAccessRights  [][]AccessRight
	dataInfos         []crdgraph.DataInfo
}

// NewExecutableGraph assembles an ExecutableGraph from its constituent
// parts. Called only by builder.GraphBuilder.Build once ExportGraph has
// succeeded; every slice is assumed StepIndex/DataIndex-aligned already.
func NewExecutableGraph(
	steps []Step,
	dataObjects []*dataobj.Data,
	predecessorCounts []int32,
	successors [][]crdgraph.StepIndex,
	stepTokens []dataobj.Token,
	graphToken dataobj.Token,
	stepAccessRights [][]AccessRight,
	dataInfos []crdgraph.DataInfo,
) *ExecutableGraph {
	return &ExecutableGraph{
		steps:             steps,
		dataObjects:       dataObjects,
		predecessorCounts: predecessorCounts,
		successors:        successors,
		stepTokens:        stepTokens,
		graphToken:        graphToken,
		stepAccessRights:  stepAccessRights,
		dataInfos:         dataInfos,
	}
}

// StepCount returns the number of steps in the plan.
func (g *ExecutableGraph) StepCount() int { return len(g.steps) }

// DataCount returns the number of data objects in the plan.
func (g *ExecutableGraph) DataCount() int { return len(g.dataObjects) }

// GetInitialReadySteps returns every step index whose predecessor count is
// zero — the executor's initial ready-queue seed.
func (g *ExecutableGraph) GetInitialReadySteps() []crdgraph.StepIndex {
	var ready []crdgraph.StepIndex
	for i, c := range g.predecessorCounts {
		if c == 0 {
			ready = append(ready, crdgraph.StepIndex(i))
		}
	}
	return ready
}

// Step returns the user step object at index s.
func (g *ExecutableGraph) Step(s crdgraph.StepIndex) Step { return g.steps[s] }

// DataObject returns the data object at index d.
func (g *ExecutableGraph) DataObject(d crdgraph.DataIndex) *dataobj.Data { return g.dataObjects[d] }

// Successors returns the successor step indices of s.
func (g *ExecutableGraph) Successors(s crdgraph.StepIndex) []crdgraph.StepIndex { return g.successors[s] }

// StepToken returns the authorization token minted for step s.
func (g *ExecutableGraph) StepToken(s crdgraph.StepIndex) dataobj.Token { return g.stepTokens[s] }

// GraphToken returns the reserved graph-level token.
func (g *ExecutableGraph) GraphToken() dataobj.Token { return g.graphToken }

// StepAccessRights returns the (data_index, usage) pairs step s is
// authorized for.
func (g *ExecutableGraph) StepAccessRights(s crdgraph.StepIndex) []AccessRight {
	return g.stepAccessRights[s]
}

// DataInfo returns the type/membership metadata for data object d.
func (g *ExecutableGraph) DataInfo(d crdgraph.DataIndex) crdgraph.DataInfo { return g.dataInfos[d] }
