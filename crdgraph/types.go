// Package crdgraph implements GraphCore, the append-only index-based DAG
// builder, its Diagnostics pipeline (Kahn detection, iterative Tarjan
// precise reporting, trust-ordered blame), and ExportedGraph, the immutable
// snapshot GraphBuilder turns into an ExecutableGraph.
//
// Grounded on the teacher's core.Graph: two purpose-scoped mutexes, sentinel
// errors, and a methods-split-across-files layout, generalized from mutable
// string-keyed vertices/edges to an append-only, densely-indexed step/field
// graph (core.Graph supports RemoveVertex/RemoveEdge; GraphCore never does —
// steps and fields are appended, never removed or renumbered).
package crdgraph

import "reflect"

// StepIndex identifies a step in [0, N). Indices are assigned densely from
// 0 and never reordered.
type StepIndex int

// FieldIndex identifies a field in [0, M).
type FieldIndex int

// DataIndex identifies a data object (field equivalence class) in [0, K),
// assigned only at export time.
type DataIndex int

// Usage is a field's declared access discriminant. Ordinal order
// Create < Read < Destroy drives implicit edge derivation (§4.4).
type Usage int

const (
	Create Usage = iota
	Read
	Destroy
)

// String renders a Usage for diagnostics messages and test failures.
func (u Usage) String() string {
	switch u {
	case Create:
		return "Create"
	case Read:
		return "Read"
	case Destroy:
		return "Destroy"
	default:
		return "Usage(?)"
	}
}

// Trust is a step- or field-link's trust level. It carries no execution
// semantics; it only orders blame (Low is blamed before Middle before High).
type Trust int

const (
	Low Trust = iota
	Middle
	High
)

func (t Trust) String() string {
	switch t {
	case Low:
		return "Low"
	case Middle:
		return "Middle"
	case High:
		return "High"
	default:
		return "Trust(?)"
	}
}

// TypeTag is the opaque, equality-comparable type identity fields declare.
// Backed by reflect.Type, the same mechanism vardata uses to tag its
// payload, so a field's TypeTag and the VarData it eventually guards agree
// on identity for free.
type TypeTag = reflect.Type

// TypeTagOf returns the TypeTag for T.
func TypeTagOf[T any]() TypeTag {
	var zero T
	return reflect.TypeOf(zero)
}

// StepLinkIndex identifies an explicit step link in the order it was added.
type StepLinkIndex int

// FieldLinkIndex identifies a field link in the order it was added.
type FieldLinkIndex int

// StepLink is an explicit ordering constraint (before, after) with a trust
// level, added by LinkSteps. before == after is rejected at creation time.
type StepLink struct {
	Before StepIndex
	After  StepIndex
	Trust  Trust
}

// FieldLink pairs two fields of matching TypeTag with a trust level, added
// by LinkFields. It drives field-equivalence-class union and, transitively,
// implicit step edges.
type FieldLink struct {
	A, B  FieldIndex
	Trust Trust
}

// ImplicitEdge is a step edge derived from two fields sharing a data object
// and having an ordered usage pair (Create→Read, Create→Destroy,
// Read→Destroy). Each record carries the one field link that caused it
// (CausingLinks) and that link's trust level, for blame reporting; when a
// later link induces the same (Before, After) pair, it gets its own record.
type ImplicitEdge struct {
	Before, After StepIndex
	FieldBefore   FieldIndex
	FieldAfter    FieldIndex
	Trust         Trust
	CausingLinks  []FieldLinkIndex
}
