// Package taskexec is the execution runtime: ExecutableGraph (the immutable
// plan GraphBuilder produces), TaskWrapper (the atomic per-step state
// machine), and Executor (sequential and worker-pool implementations).
//
// Grounded primarily on ahrav-go-gavel's internal/application/dag.go —
// Layer.Execute's goroutine-per-node-with-semaphore pattern and errgroup-
// gated fan-out — corroborated by rohanthewiz-rcode's planner ready-queue
// worker pool and opentofu's execgraph precomputed successor/predecessor
// bookkeeping.
package taskexec

// Step is the contract user code implements for one unit of work. Go has
// no exceptions, so "execute() may raise" becomes an error return; the
// wrapper still treats any panic from inside Execute as a captured failure
// (see TaskWrapper.run), matching the spec's "never propagate across
// threads" requirement without requiring every step author to recover
// their own panics.
type Step interface {
	Execute() error
	State() string
	ClassName() string
	FriendlyName() string
	UniqueName() string
}
