// Package tracing reads W3C Trace Context from incoming HTTP headers so audit
// entries can be correlated with distributed traces.
//
// Only propagation is implemented; spans are created and exported by
// whatever tracer the host application already runs.
//
// Traceparent format: {version}-{trace-id}-{parent-id}-{flags}
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
package tracing
