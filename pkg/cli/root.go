package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/cli/internal/output"
	"github.com/getmockd/reqaudit/pkg/config"
	"github.com/getmockd/reqaudit/pkg/logging"
	"github.com/getmockd/reqaudit/pkg/sink"
)

var (
	// Persistent flags available to all subcommands
	configPath  string
	jsonOutput  bool
	entriesPath string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reqaudit",
	Short: "reqaudit writes audit log entries for HTTP exchanges",
	Long: `reqaudit records HTTP request/response pairs as structured audit entries,
with sensitive fields masked and noisy bodies left out.

Configuration can be provided via a YAML or JSON file (--config or
REQAUDIT_CONFIG) and REQAUDIT_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvConfig), "Config file path (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	rootCmd.PersistentFlags().StringVar(&entriesPath, "entries", "", "Also append audit entries as JSON lines to this file (- for stdout)")
}

// loadConfig reads --config when set, falls back to defaults otherwise, and
// applies REQAUDIT_* overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyEnv(cfg)
	if result := cfg.Validate(); !result.IsValid() {
		return nil, fmt.Errorf("%w:\n%s", config.ErrInvalidConfig, result.Error())
	}
	return cfg, nil
}

// runtime holds what serve and fetch share: the diagnostics logger and the
// audit sink, plus the function releasing both.
type runtime struct {
	cfg   *config.Config
	log   *slog.Logger
	sink  sink.Sink
	close func() error
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	log, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	sinks := sink.NewMulti(cfg.Sink(log))
	switch entriesPath {
	case "":
	case "-":
		sinks.Add(sink.NewJSONLines(cmd.OutOrStdout()))
	default:
		f, err := sink.NewFile(entriesPath)
		if err != nil {
			_ = closeLog()
			return nil, err
		}
		sinks.Add(f)
	}

	return &runtime{
		cfg:  cfg,
		log:  log,
		sink: sinks,
		close: func() error {
			return errors.Join(sinks.Close(), closeLog())
		},
	}, nil
}

// printResult outputs a single operation result.
//
// Contract: when --json is active, ONLY the JSON encoding of data is written
// to stdout. Human-readable prose must go to stderr or be omitted entirely.
// textFn is called only in text mode.
func printResult(cmd *cobra.Command, data any, textFn func()) error {
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), data)
	}
	textFn()
	return nil
}
