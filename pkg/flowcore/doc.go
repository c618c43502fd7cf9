// Package flowcore provides the public facade for building and running
// dataflow graphs without importing internal packages. An Env owns the
// shared node factory, the module manager, and the worker pool; graphs
// created through it schedule their computes on that pool. The core graph
// types are re-exported for convenience.
package flowcore
