// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "tokenaware":
//
//	collector := vm.New()
//	planner, _ := tokenaware.NewPlanner(store, fallback,
//	    tokenaware.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_plans_total{ordering="natural"}
//   - myapp_plans_delegated_total{reason="no_routing_key"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Planning:
//   - {prefix}_plans_total{ordering} - Counter of plans built
//   - {prefix}_plans_delegated_total{reason} - Counter of plans handed to the fallback planner
//   - {prefix}_replica_set_size - Histogram of replica set sizes
//
// Plan consumption:
//   - {prefix}_nodes_yielded_total{phase} - Counter of nodes yielded (phase=replica|fallback)
//   - {prefix}_buffered_dropped_total - Counter of Neutral candidates dropped
//
// Topology:
//   - {prefix}_topology_updates_total - Counter of installed snapshots
//   - {prefix}_topology_nodes{state} - Gauge of known nodes (state=up|down)
//
// # Performance Notes
//
// This implementation pre-creates all metrics at initialization time
// using the NewXXX pattern (instead of GetOrCreateXXX) for optimal
// performance in hot paths, as recommended by the VictoriaMetrics documentation.
package vm
