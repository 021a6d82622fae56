// Package audit builds one canonical log entry per HTTP request/response pair
// and hands it to a sink.
//
// A Logger is generic over the response type R it is given. An Adapter knows
// how to find the request behind a response and how to turn both into entry
// fields; the client and server packages provide the two adapters.
//
// # Building an entry
//
// For each call the logger:
//
//  1. resolves the request through the adapter,
//  2. stops silently if the request filter excludes it,
//  3. overlays the adapter's request and response fields onto an empty
//     entry template,
//  4. merges the meta values of every registered enricher, later ones
//     winning on key conflicts.
//
// Any error aborts the call before the sink is reached, so a sink never
// sees a partial entry.
//
// # Usage
//
//	logger, err := audit.New("billing", adapter, sink.NewSlog("billing", slogger),
//		audit.WithRequestFilter[*http.Response](healthChecks),
//	)
//	if err != nil {
//		return err
//	}
//	logged, err := logger.Log(ctx, resp)
//
// # Thread Safety
//
// A Logger is safe for concurrent use. Enrichers may be registered at any
// time; a call in flight uses the set registered when it started.
package audit
