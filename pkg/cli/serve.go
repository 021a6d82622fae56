package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/audit"
	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
	"github.com/getmockd/reqaudit/pkg/metrics"
	"github.com/getmockd/reqaudit/pkg/server"
)

var (
	serveAddr        string
	serveMaxBody     int64
	serveGenerateIDs bool
	serveMetricsPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an echo server that audit-logs every exchange",
	Long: `Run an HTTP echo server wrapped in the audit middleware.

Every request is answered with a JSON description of itself. GET
/status/{code} answers with the given status instead, which is useful for
trying out noResponseBody rules.`,
	Example: `  reqaudit serve --addr :8080 --config reqaudit.yaml
  reqaudit serve --entries audit.jsonl`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().Int64Var(&serveMaxBody, "max-body", httputil.DefaultMaxBodySize, "Largest request body that is logged, in bytes")
	serveCmd.Flags().BoolVar(&serveGenerateIDs, "request-ids", false, "Generate a request id when the client sends none")
	serveCmd.Flags().StringVar(&serveMetricsPath, "metrics-path", "/metrics", "Path serving Prometheus metrics, not audited (empty disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	registry := metrics.NewRegistry()
	auditMetrics, err := metrics.NewAudit(registry)
	if err != nil {
		return err
	}
	logger, err := rt.cfg.ServerLogger(rt.sink, rt.log, audit.WithMetrics[*server.Response](auditMetrics))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serveAddr, err)
	}

	srv := &http.Server{
		Handler:           newServeMux(logger, registry, rt.cfg.Meta.RequestIDHeader, rt.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	rt.log.Info("audit server listening", "addr", ln.Addr().String(), "logger", logger.Name())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	rt.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServeMux routes the metrics path to registry and everything else to the
// audited echo handler.
func newServeMux(logger *audit.Logger[*server.Response], registry *metrics.Registry, requestIDHeader string, log *slog.Logger) http.Handler {
	audited := newAuditedHandler(logger, requestIDHeader, log)
	if serveMetricsPath == "" {
		return audited
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+serveMetricsPath, registry.Handler())
	mux.Handle("/", audited)
	return mux
}

// newAuditedHandler wraps the echo handler in the audit middleware.
func newAuditedHandler(logger *audit.Logger[*server.Response], requestIDHeader string, log *slog.Logger) http.Handler {
	opts := []server.MiddlewareOption{
		server.WithLog(log),
		server.WithMaxBodySize(serveMaxBody),
	}
	if serveGenerateIDs || requestIDHeader != "" {
		if requestIDHeader == "" {
			requestIDHeader = "X-Request-Id"
		}
		opts = append(opts, server.WithRequestID(requestIDHeader))
	}
	return server.Middleware(logger, opts...)(newEchoHandler())
}

type echoResponse struct {
	Method  string        `json:"method"`
	Path    string        `json:"path"`
	Query   string        `json:"query,omitempty"`
	Headers entry.Headers `json:"headers"`
	Body    string        `json:"body,omitempty"`
}

func newEchoHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_status", "status must be a number between 100 and 599")
			return
		}
		httputil.WriteJSON(w, code, map[string]any{"status": httputil.StatusLine(code)})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, echoResponse{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Headers: entry.HeadersFrom(r.Header),
			Body:    string(body),
		})
	})
	return mux
}
