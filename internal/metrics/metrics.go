// Package metrics exposes the Prometheus gauges and counters used to
// observe runtime behavior: how many node pipelines are active at once,
// how many trees and nodes have completed, and search call/retry
// volume.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the core's metrics behind one struct so the stream
// server can register them once and hand the same instance to the
// scheduler, pipeline, and search client.
type Registry struct {
	ActivePipelines prometheus.Gauge
	TreesBuilt      prometheus.Counter
	NodesProcessed  *prometheus.CounterVec
	SearchCalls     prometheus.Counter
	SearchRetries   prometheus.Counter
}

// NewRegistry creates and registers the core's metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ActivePipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "psychohistory",
			Name:      "active_node_pipelines",
			Help:      "Number of node pipelines currently executing inside the current batch.",
		}),
		TreesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "psychohistory",
			Name:      "trees_built_total",
			Help:      "Number of trees successfully built to completion.",
		}),
		NodesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psychohistory",
			Name:      "nodes_processed_total",
			Help:      "Number of node pipelines completed, by outcome (completed, failed).",
		}, []string{"outcome"}),
		SearchCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "psychohistory",
			Name:      "search_calls_total",
			Help:      "Number of search provider calls issued.",
		}),
		SearchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "psychohistory",
			Name:      "search_retries_total",
			Help:      "Number of search calls retried after a transient failure.",
		}),
	}

	reg.MustRegister(r.ActivePipelines, r.TreesBuilt, r.NodesProcessed, r.SearchCalls, r.SearchRetries)
	return r
}
