// Package taskgraph is a CRD-DAG task graph runtime: build a graph of
// steps and the fields they Create, Read, or Destroy, validate it for
// cycles and usage conflicts, export it to an immutable execution plan,
// and run that plan with a sequential or worker-pool executor.
//
// unionfind and vardata are small, independent primitives the rest of the
// module builds on. crdgraph is the append-only graph builder and its
// deferred-diagnostics pipeline. dataobj is the token-checked runtime guard
// around one data object. builder bridges user step/field objects to
// crdgraph indices and assembles an execution plan. taskexec runs that
// plan.
package taskgraph
