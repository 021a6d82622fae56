// Package metrics provides Prometheus-compatible counters and histograms for
// audit loggers.
//
// It implements the Prometheus text exposition format (text/plain;
// version=0.0.4) on the standard library. All metrics are safe for
// concurrent use.
//
// # Audit Metrics
//
// NewAudit registers the metrics every audit logger reports:
//
//   - reqaudit_entries_total: entries by logger and outcome (logged,
//     suppressed, failed)
//   - reqaudit_entry_bytes: size of encoded entries by logger
//
// # Usage
//
//	registry := metrics.NewRegistry()
//	m := metrics.NewAudit(registry)
//	logger, _ := server.NewLogger("http.audit", maskCfg, nil, s,
//	    audit.WithMetrics[*server.Response](m))
//	mux.Handle("/metrics", registry.Handler())
package metrics
