// Package server logs HTTP exchanges handled by an http.Handler.
//
// A server-side response has no pointer back to its request, so the request
// is carried in a per-request Scope stored on the request context. The
// Middleware opens the scope, captures what the handler writes and logs the
// exchange when the handler returns:
//
//	logger, err := server.NewLogger("api", maskCfg, nil, sink.NewSlog("api", slogger))
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":8080", server.Middleware(logger)(mux))
//
// By default response bodies of 2xx responses are not logged; pass a rule
// list to NewLogger to change that.
package server
