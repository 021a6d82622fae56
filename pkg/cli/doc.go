// Package cli implements the reqaudit command line.
//
// Commands register themselves on the root command from their init
// functions; cmd/reqaudit only calls Execute. Every command honours the
// persistent --json flag: in JSON mode only the JSON result is written to
// stdout.
package cli
