// Package client logs outgoing HTTP calls.
//
// The Adapter reads the request back from http.Response.Request and turns
// the pair into an audit entry. Transport wraps any http.RoundTripper so
// every call made through an http.Client is logged once its response
// headers arrive:
//
//	logger, err := client.NewLogger("payments", maskCfg, sink.NewSlog("payments", slogger))
//	if err != nil {
//		return err
//	}
//	httpClient := client.Wrap(http.DefaultClient, logger, nil)
//
// Logging never fails the call itself: errors are reported to the
// transport's OnError hook.
package client
