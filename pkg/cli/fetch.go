package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/cli/internal/parse"
	"github.com/getmockd/reqaudit/pkg/client"
	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/httputil"
)

var (
	fetchMethod      string
	fetchData        string
	fetchHeaders     []string
	fetchContentType string
	fetchTimeout     time.Duration
)

type fetchResult struct {
	Status  string        `json:"status"`
	Headers entry.Headers `json:"headers"`
	Body    string        `json:"body"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Make one HTTP call through the audit transport",
	Long: `Make one HTTP call through the audit transport and print the response body.

The exchange is written to the audit sink like any other client call, so
this is a quick way to see what an entry looks like for a real endpoint.`,
	Example: `  reqaudit fetch https://httpbin.org/get
  reqaudit fetch -X POST -d '{"password":"x"}' -H 'Content-Type: application/json' http://localhost:8080/login`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", "", "HTTP method (default GET, or POST with --data)")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "Request body")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	fetchCmd.Flags().StringVar(&fetchContentType, "content-type", "", "Content-Type of --data (default application/json)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Request timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	headers, err := parse.Headers(fetchHeaders)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	logger, err := rt.cfg.ClientLogger(rt.sink, rt.log)
	if err != nil {
		return err
	}

	method := strings.ToUpper(fetchMethod)
	if method == "" {
		method = http.MethodGet
		if fetchData != "" {
			method = http.MethodPost
		}
	}

	var body io.Reader
	if fetchData != "" {
		body = strings.NewReader(fetchData)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, args[0], body)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	req.Header = headers
	if fetchData != "" && req.Header.Get("Content-Type") == "" {
		ct := fetchContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}

	c := client.Wrap(&http.Client{Timeout: fetchTimeout}, logger, rt.log)
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	result := fetchResult{
		Status:  httputil.ResponseStatus(resp),
		Headers: entry.HeadersFrom(resp.Header),
		Body:    string(respBody),
	}
	return printResult(cmd, result, func() {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Status)
		_, _ = cmd.OutOrStdout().Write(respBody)
		if len(respBody) > 0 && respBody[len(respBody)-1] != '\n' {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	})
}
