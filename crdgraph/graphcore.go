package crdgraph

import (
	"fmt"

	"github.com/crddagt/taskgraph/unionfind"
)

// edgeKind tags which table an edgeRef points into.
type edgeKind int

const (
	edgeExplicit edgeKind = iota
	edgeImplicit
)

// edgeRef is a lightweight pointer into either StepLinks or ImplicitEdges,
// used by the successor adjacency list so reachability/Kahn/Tarjan can walk
// the combined explicit ∪ implicit graph without copying edge data.
type edgeRef struct {
	kind edgeKind
	idx  int
}

// GraphCoreOption configures a GraphCore at construction, mirroring the
// teacher's GraphOption functional-option pattern (core.WithDirected, ...).
type GraphCoreOption func(*GraphCore)

// WithEagerValidation enables checks 1-3 of LinkFields (MultipleCreate,
// MultipleDestroy, UnsafeSelfAliasing) and the DFS reachability check of
// LinkSteps/LinkFields to run at mutation time instead of being deferred to
// GetDiagnostics.
func WithEagerValidation() GraphCoreOption {
	return func(g *GraphCore) { g.eager = true }
}

// GraphCore is the append-only, index-based DAG builder. It owns only
// indices and integer tables — the teacher's core.Graph owns the actual
// Vertex/Edge objects, but GraphCore's objects live one layer up, in
// builder.GraphBuilder, exactly as spec.md §3 "Ownership" describes.
//
// GraphCore holds no mutex of its own (unlike core.Graph's two locks): it is
// externally synchronized, so callers that mutate it from multiple
// goroutines must serialize those calls themselves.
type GraphCore struct {
	eager bool

	fieldOwner []StepIndex
	fieldType  []TypeTag
	fieldUsage []Usage

	uf *unionfind.IterableUnionFind[FieldIndex]

	stepLinks  []StepLink
	fieldLinks []FieldLink

	implicitEdges []ImplicitEdge

	// succSteps/succEdges are parallel: succSteps[s][i] is the step that
	// succEdges[s][i] points to, kept in lockstep to avoid re-deriving the
	// step endpoint from an edgeRef on every reachability query.
	succSteps [][]StepIndex
	succEdges [][]edgeRef

	stepTouched []bool // true once a step owns a field or an explicit link
	stepCount   int
}

// NewGraphCore creates an empty GraphCore.
func NewGraphCore(opts ...GraphCoreOption) *GraphCore {
	g := &GraphCore{uf: unionfind.New[FieldIndex]()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// StepCount returns the number of steps added so far.
func (g *GraphCore) StepCount() int { return g.stepCount }

// FieldCount returns the number of fields added so far.
func (g *GraphCore) FieldCount() int { return len(g.fieldOwner) }

// AddStep appends a new step. expectedIndex must equal the current step
// count: indices are assigned densely and are never reused or reordered.
func (g *GraphCore) AddStep(expectedIndex StepIndex) error {
	switch {
	case int(expectedIndex) < g.stepCount:
		return newErr(ErrDuplicateStepIndex, "step %d already exists (have %d steps)", expectedIndex, g.stepCount)
	case int(expectedIndex) > g.stepCount:
		return newErr(ErrInvalidStepIndex, "step %d is not the next index (expected %d)", expectedIndex, g.stepCount)
	}

	g.stepCount++
	g.succSteps = append(g.succSteps, nil)
	g.succEdges = append(g.succEdges, nil)
	g.stepTouched = append(g.stepTouched, false)

	return nil
}

// AddField appends a new field owned by owningStep. expectedIndex must
// equal the current field count.
func (g *GraphCore) AddField(owningStep StepIndex, expectedIndex FieldIndex, typeTag TypeTag, usage Usage) error {
	if int(owningStep) < 0 || int(owningStep) >= g.stepCount {
		return newErr(ErrUnknownStep, "field owner step %d does not exist", owningStep)
	}

	n := FieldIndex(len(g.fieldOwner))
	switch {
	case expectedIndex < n:
		return newErr(ErrDuplicateFieldIndex, "field %d already exists (have %d fields)", expectedIndex, n)
	case expectedIndex > n:
		return newErr(ErrInvalidFieldIndex, "field %d is not the next index (expected %d)", expectedIndex, n)
	}

	g.fieldOwner = append(g.fieldOwner, owningStep)
	g.fieldType = append(g.fieldType, typeTag)
	g.fieldUsage = append(g.fieldUsage, usage)
	if _, err := g.uf.MakeSet(); err != nil {
		return newErr(ErrInvalidFieldIndex, "field index space exhausted: %v", err)
	}
	g.stepTouched[owningStep] = true

	return nil
}

// LinkSteps appends an explicit ordering constraint before -> after.
// before == after is always rejected (self-loop). In eager mode, a DFS
// reachability check aborts the call with ErrCycleDetected if after can
// already reach before.
func (g *GraphCore) LinkSteps(before, after StepIndex, trust Trust) (StepLinkIndex, error) {
	if int(before) < 0 || int(before) >= g.stepCount {
		return 0, newErr(ErrUnknownStep, "step %d does not exist", before)
	}
	if int(after) < 0 || int(after) >= g.stepCount {
		return 0, newErr(ErrUnknownStep, "step %d does not exist", after)
	}
	if before == after {
		return 0, newErr(ErrCycleDetected, "self-loop: step %d linked to itself", before)
	}

	if g.eager && g.reachable(after, before, nil) {
		return 0, newErr(ErrCycleDetected, "link_steps(%d -> %d, trust=%s) would close a cycle", before, after, trust)
	}

	idx := StepLinkIndex(len(g.stepLinks))
	g.stepLinks = append(g.stepLinks, StepLink{Before: before, After: after, Trust: trust})
	g.addSuccessor(before, after, edgeRef{kind: edgeExplicit, idx: int(idx)})
	g.stepTouched[before] = true
	g.stepTouched[after] = true

	return idx, nil
}

// LinkFields links two fields of matching TypeTag, potentially merging
// their field-equivalence classes and deriving new implicit step edges.
// Type mismatches always fail, regardless of eager mode. If a and b are
// already in the same class, no classes merge and no implicit edges are
// derived; the link is still recorded and returned with a new index.
func (g *GraphCore) LinkFields(a, b FieldIndex, trust Trust) (FieldLinkIndex, error) {
	if int(a) < 0 || int(a) >= len(g.fieldOwner) {
		return 0, newErr(ErrUnknownField, "field %d does not exist", a)
	}
	if int(b) < 0 || int(b) >= len(g.fieldOwner) {
		return 0, newErr(ErrUnknownField, "field %d does not exist", b)
	}
	if g.fieldType[a] != g.fieldType[b] {
		return 0, newErr(ErrTypeMismatch, "field %d has type %v, field %d has type %v", a, g.fieldType[a], b, g.fieldType[b])
	}

	ra, err := g.uf.Find(a)
	if err != nil {
		return 0, newErr(ErrUnknownField, "internal union-find error: %v", err)
	}
	rb, err := g.uf.Find(b)
	if err != nil {
		return 0, newErr(ErrUnknownField, "internal union-find error: %v", err)
	}

	linkIdx := FieldLinkIndex(len(g.fieldLinks))

	if ra == rb {
		// Already linked: idempotent no-op, but the link itself is still
		// appended to the history so nothing already recorded is ever lost.
		g.fieldLinks = append(g.fieldLinks, FieldLink{A: a, B: b, Trust: trust})
		return linkIdx, nil
	}

	membersA, _ := g.uf.GetClassMembers(ra, nil)
	membersB, _ := g.uf.GetClassMembers(rb, nil)

	if g.eager {
		if err := g.checkUnionConstraints(membersA, membersB); err != nil {
			return 0, err
		}
	}

	candidates := g.induceCandidateEdges(membersA, membersB)

	if g.eager {
		extra := make(map[StepIndex][]StepIndex, len(candidates))
		for _, c := range candidates {
			if g.reachable(c.after, c.before, extra) {
				return 0, newErr(ErrCycleDetected,
					"field_link(%d, %d, trust=%s) would induce step edge %d -> %d, closing a cycle",
					a, b, trust, c.before, c.after)
			}
			extra[c.before] = append(extra[c.before], c.after)
		}
	}

	if _, err := g.uf.Unite(a, b); err != nil {
		return 0, newErr(ErrUnknownField, "internal union-find error: %v", err)
	}
	g.fieldLinks = append(g.fieldLinks, FieldLink{A: a, B: b, Trust: trust})

	for _, c := range candidates {
		edgeIdx := len(g.implicitEdges)
		g.implicitEdges = append(g.implicitEdges, ImplicitEdge{
			Before:       c.before,
			After:        c.after,
			FieldBefore:  c.fieldBefore,
			FieldAfter:   c.fieldAfter,
			Trust:        trust,
			CausingLinks: []FieldLinkIndex{linkIdx},
		})
		g.addSuccessor(c.before, c.after, edgeRef{kind: edgeImplicit, idx: edgeIdx})
	}

	return linkIdx, nil
}

type candidateEdge struct {
	before, after           StepIndex
	fieldBefore, fieldAfter FieldIndex
}

// induceCandidateEdges applies the usage-ordering table (§4.4) to every
// cross-class field pair: Create<Read<Destroy induces before->after;
// Create-Create, Destroy-Destroy, and Read-Read induce nothing (the first
// two are separately flagged as constraint violations, not edges).
func (g *GraphCore) induceCandidateEdges(membersA, membersB []FieldIndex) []candidateEdge {
	var out []candidateEdge
	for _, fa := range membersA {
		ua := g.fieldUsage[fa]
		sa := g.fieldOwner[fa]
		for _, fb := range membersB {
			ub := g.fieldUsage[fb]
			sb := g.fieldOwner[fb]
			switch {
			case ua < ub:
				out = append(out, candidateEdge{before: sa, after: sb, fieldBefore: fa, fieldAfter: fb})
			case ub < ua:
				out = append(out, candidateEdge{before: sb, after: sa, fieldBefore: fb, fieldAfter: fa})
			}
		}
	}
	return out
}

// checkUnionConstraints simulates merging membersA and membersB without
// mutating state, checking that the hypothetical union would hold at most
// one Create field, at most one Destroy field, and no step owning two
// aliased fields with incompatible usages.
func (g *GraphCore) checkUnionConstraints(membersA, membersB []FieldIndex) error {
	all := make([]FieldIndex, 0, len(membersA)+len(membersB))
	all = append(all, membersA...)
	all = append(all, membersB...)

	creates, destroys := 0, 0
	byStep := make(map[StepIndex][]Usage, len(all))
	for _, f := range all {
		switch g.fieldUsage[f] {
		case Create:
			creates++
		case Destroy:
			destroys++
		}
		byStep[g.fieldOwner[f]] = append(byStep[g.fieldOwner[f]], g.fieldUsage[f])
	}
	if creates > 1 {
		return newErr(ErrMultipleCreate, "field union would contain %d Create fields", creates)
	}
	if destroys > 1 {
		return newErr(ErrMultipleDestroy, "field union would contain %d Destroy fields", destroys)
	}

	for step, usages := range byStep {
		if unsafeSelfAlias(usages) {
			return newErr(ErrUnsafeSelfAliasing, "step %d would own incompatible aliased fields %v", step, usages)
		}
	}

	return nil
}

// unsafeSelfAlias reports whether a step's usages on one field-equivalence
// class contain any pair from {Create,Read}, {Create,Destroy},
// {Read,Destroy}. Two Reads are explicitly permitted.
func unsafeSelfAlias(usages []Usage) bool {
	if len(usages) < 2 {
		return false
	}
	seenCreate, seenRead, seenDestroy := false, false, false
	for _, u := range usages {
		switch u {
		case Create:
			seenCreate = true
		case Read:
			seenRead = true
		case Destroy:
			seenDestroy = true
		}
	}
	combos := 0
	if seenCreate {
		combos++
	}
	if seenRead {
		combos++
	}
	if seenDestroy {
		combos++
	}
	return combos >= 2
}

// addSuccessor records a directed step edge in the adjacency list.
func (g *GraphCore) addSuccessor(before, after StepIndex, ref edgeRef) {
	g.succSteps[before] = append(g.succSteps[before], after)
	g.succEdges[before] = append(g.succEdges[before], ref)
}

// reachable reports whether to is reachable from from via the current
// adjacency, optionally also considering an in-flight batch of
// not-yet-committed candidate edges (extra), so LinkFields can detect
// cycles introduced purely within a single batch of induced edges.
func (g *GraphCore) reachable(from, to StepIndex, extra map[StepIndex][]StepIndex) bool {
	if from == to {
		return true
	}
	visited := make([]bool, g.stepCount)
	stack := []StepIndex{from}
	visited[from] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, nbr := range g.succSteps[cur] {
			if !visited[nbr] {
				visited[nbr] = true
				stack = append(stack, nbr)
			}
		}
		for _, nbr := range extra[cur] {
			if !visited[nbr] {
				visited[nbr] = true
				stack = append(stack, nbr)
			}
		}
	}
	return false
}

// StepLinks returns the explicit step links added so far, in order.
func (g *GraphCore) StepLinks() []StepLink {
	out := make([]StepLink, len(g.stepLinks))
	copy(out, g.stepLinks)
	return out
}

// FieldLinks returns the field links added so far, in order.
func (g *GraphCore) FieldLinks() []FieldLink {
	out := make([]FieldLink, len(g.fieldLinks))
	copy(out, g.fieldLinks)
	return out
}

// ImplicitEdges returns the derived implicit step edges in the order they
// were created.
func (g *GraphCore) ImplicitEdges() []ImplicitEdge {
	out := make([]ImplicitEdge, len(g.implicitEdges))
	copy(out, g.implicitEdges)
	return out
}

// FieldUsage returns the usage of field f, failing with ErrUnknownField if
// it does not exist.
func (g *GraphCore) FieldUsage(f FieldIndex) (Usage, error) {
	if int(f) < 0 || int(f) >= len(g.fieldUsage) {
		return 0, newErr(ErrUnknownField, "field %d does not exist", f)
	}
	return g.fieldUsage[f], nil
}

// FieldOwner returns the owning step of field f.
func (g *GraphCore) FieldOwner(f FieldIndex) (StepIndex, error) {
	if int(f) < 0 || int(f) >= len(g.fieldOwner) {
		return 0, newErr(ErrUnknownField, "field %d does not exist", f)
	}
	return g.fieldOwner[f], nil
}

// FieldType returns the TypeTag of field f.
func (g *GraphCore) FieldType(f FieldIndex) (TypeTag, error) {
	if int(f) < 0 || int(f) >= len(g.fieldType) {
		return nil, newErr(ErrUnknownField, "field %d does not exist", f)
	}
	return g.fieldType[f], nil
}

// FieldClassRoot returns the representative field index of f's
// equivalence class (without path compression side effects observable to
// callers, since GraphCore is the only holder of the union-find).
func (g *GraphCore) FieldClassRoot(f FieldIndex) (FieldIndex, error) {
	r, err := g.uf.Find(f)
	if err != nil {
		return 0, fmt.Errorf("crdgraph: %w", err)
	}
	return r, nil
}

// FieldClassMembers returns every field in f's equivalence class.
func (g *GraphCore) FieldClassMembers(f FieldIndex) ([]FieldIndex, error) {
	root, err := g.FieldClassRoot(f)
	if err != nil {
		return nil, err
	}
	return g.uf.GetClassMembers(root, nil)
}

// FieldClassRepresentatives returns one field index per distinct
// equivalence class, in ascending order.
func (g *GraphCore) FieldClassRepresentatives() []FieldIndex {
	return g.uf.GetClassRepresentatives()
}
