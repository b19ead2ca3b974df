package crdgraph

import "sort"

// cycleDiagnostics runs Kahn's algorithm over the combined explicit ∪
// implicit step graph to detect whether a cycle exists at all, and — only
// if one does — runs an iterative Tarjan SCC over the residual subgraph to
// report precisely which steps and links participate, grounded on the
// teacher's dfs.TopologicalSort (Kahn shape) plus AleutianLocal's
// tarjan_scc.go converted from recursive to an explicit-stack iterative
// form so GetDiagnostics never recurses proportionally to step count.
func (g *GraphCore) cycleDiagnostics(d *Diagnostics) {
	indegree := make([]int, g.stepCount)
	for s := 0; s < g.stepCount; s++ {
		for _, nbr := range g.succSteps[s] {
			indegree[nbr]++
		}
	}

	queue := make([]StepIndex, 0, g.stepCount)
	for s := 0; s < g.stepCount; s++ {
		if indegree[s] == 0 {
			queue = append(queue, StepIndex(s))
		}
	}

	residual := append([]int(nil), indegree...)
	removed := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		removed++
		for _, nbr := range g.succSteps[cur] {
			residual[nbr]--
			if residual[nbr] == 0 {
				queue = append(queue, nbr)
			}
		}
	}

	if removed == g.stepCount {
		return // acyclic: Kahn consumed every step.
	}

	// Residual subgraph: steps Kahn never removed (indegree never reached
	// zero), restricted to edges between two such steps.
	inResidual := make([]bool, g.stepCount)
	for s := 0; s < g.stepCount; s++ {
		if residual[s] > 0 {
			inResidual[s] = true
		}
	}

	sccs := tarjanSCC(g.stepCount, g.succSteps, inResidual)
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue // a residual singleton with no self-loop isn't a cycle.
		}
		d.items = append(d.items, g.buildCycleDiagnostic(scc))
	}
}

// tarjanSCC computes strongly connected components restricted to vertices
// with include[v] true, using an explicit-stack iterative Tarjan so depth
// never grows with the call stack. Returns SCCs in the order discovered.
func tarjanSCC(n int, adj [][]StepIndex, include []bool) [][]StepIndex {
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []StepIndex
	var sccs [][]StepIndex
	counter := 0

	type frame struct {
		v  StepIndex
		pc int // next child offset into adj[v] to process
	}

	for start := 0; start < n; start++ {
		if !include[start] || index[start] != -1 {
			continue
		}

		var work []frame
		work = append(work, frame{v: StepIndex(start)})
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, StepIndex(start))
		onStack[start] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			v := top.v

			advanced := false
			for top.pc < len(adj[v]) {
				w := adj[v][top.pc]
				top.pc++
				if !include[w] {
					continue
				}
				if index[w] == -1 {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{v: w})
					advanced = true
					break
				} else if onStack[w] {
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
			}
			if advanced {
				continue
			}

			// All of v's neighbors processed: pop v, propagate lowlink to
			// parent, and if v is a root, pop its SCC off stack.
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[v] < lowlink[parent.v] {
					lowlink[parent.v] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var scc []StepIndex
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}

	return sccs
}

// buildCycleDiagnostic constructs the Cycle DiagnosticItem for one SCC,
// with blame lists restricted to links whose both endpoints fall inside the
// SCC, trust-ordered ascending so the least trusted contributor is blamed
// first.
func (g *GraphCore) buildCycleDiagnostic(scc []StepIndex) DiagnosticItem {
	inSCC := make(map[StepIndex]struct{}, len(scc))
	for _, s := range scc {
		inSCC[s] = struct{}{}
	}

	sorted := append([]StepIndex(nil), scc...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	type stepLinkScored struct {
		idx   StepLinkIndex
		trust Trust
	}
	var stepHits []stepLinkScored
	for i, sl := range g.stepLinks {
		_, a := inSCC[sl.Before]
		_, b := inSCC[sl.After]
		if a && b {
			stepHits = append(stepHits, stepLinkScored{idx: StepLinkIndex(i), trust: sl.Trust})
		}
	}
	sort.SliceStable(stepHits, func(i, j int) bool { return stepHits[i].trust < stepHits[j].trust })
	blamedSteps := make([]StepLinkIndex, len(stepHits))
	for i, h := range stepHits {
		blamedSteps[i] = h.idx
	}

	fieldLinkSet := make(map[FieldLinkIndex]Trust)
	for _, ie := range g.implicitEdges {
		_, a := inSCC[ie.Before]
		_, b := inSCC[ie.After]
		if !a || !b {
			continue
		}
		for _, causing := range ie.CausingLinks {
			if t, ok := fieldLinkSet[causing]; !ok || ie.Trust < t {
				fieldLinkSet[causing] = ie.Trust
			}
		}
	}
	type fieldLinkScored struct {
		idx   FieldLinkIndex
		trust Trust
	}
	fieldHits := make([]fieldLinkScored, 0, len(fieldLinkSet))
	for idx, trust := range fieldLinkSet {
		fieldHits = append(fieldHits, fieldLinkScored{idx: idx, trust: trust})
	}
	sort.SliceStable(fieldHits, func(i, j int) bool { return fieldHits[i].trust < fieldHits[j].trust })
	blamedFields := make([]FieldLinkIndex, len(fieldHits))
	for i, h := range fieldHits {
		blamedFields[i] = h.idx
	}

	return DiagnosticItem{
		Category:         CategoryCycle,
		Severity:         SeverityError,
		Message:          "steps form a cycle",
		InvolvedSteps:    sorted,
		BlamedStepLinks:  blamedSteps,
		BlamedFieldLinks: blamedFields,
	}
}
