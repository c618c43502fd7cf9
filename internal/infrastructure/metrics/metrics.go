package metrics

import (
	"expvar"
)

// Node metrics (counters) using expvar maps keyed by node class.
var (
	nodeComputes      = expvar.NewMap("flowcore_node_computes_total")
	nodeComputeErrors = expvar.NewMap("flowcore_node_compute_errors_total")
)

// Graph / Scheduler metrics.
var (
	propagationsTotal    = new(expvar.Int)
	valuesSetTotal       = new(expvar.Int)
	connectionsTotal     = new(expvar.Int)
	schedulerWorkers     = new(expvar.Int)
	schedulerQueuedTotal = new(expvar.Int)
)

func init() {
	expvar.Publish("flowcore_propagations_total", propagationsTotal)
	expvar.Publish("flowcore_values_set_total", valuesSetTotal)
	expvar.Publish("flowcore_connections_total", connectionsTotal)
	expvar.Publish("flowcore_scheduler_workers", schedulerWorkers)
	expvar.Publish("flowcore_scheduler_queued_total", schedulerQueuedTotal)
}

// Node helpers
func IncNodeComputes(class string)      { nodeComputes.Add(class, 1) }
func IncNodeComputeErrors(class string) { nodeComputeErrors.Add(class, 1) }

// Graph helpers
func IncPropagations()       { propagationsTotal.Add(1) }
func IncValuesSet()          { valuesSetTotal.Add(1) }
func AddConnections(n int64) { connectionsTotal.Add(n) }

// Scheduler helpers
func SetSchedulerWorkers(n int) { schedulerWorkers.Set(int64(n)) }
func AddSchedulerQueued(n int)  { schedulerQueuedTotal.Add(int64(n)) }
