// Package policy decides what an audit logger leaves out.
//
// There are two independent decisions:
//
//   - A RequestFilter suppresses a whole entry based on the request, for
//     example health checks. A suppressed request produces no log call.
//   - BodyRules suppress only the response body, based on the response
//     status and the request method. The server logger uses
//     DefaultBodyRules, which skips bodies of every 2xx response.
//
// Rule sets are validated when they are built; a malformed rule returns a
// *RuleError and is never silently ignored.
package policy
