package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/cli/internal/output"
	"github.com/getmockd/reqaudit/pkg/config"
)

type validateResult struct {
	Valid    bool              `json:"valid"`
	Path     string            `json:"path"`
	Error    string            `json:"error,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a config file",
	Long: `Validate a reqaudit configuration file.

This command checks:
  - YAML or JSON syntax
  - Schema validation (known keys, value types)
  - Body rules, path patterns, filter expressions and JSONPath queries
  - The OpenAPI document, when one is referenced

REQAUDIT_* environment variables are applied first, with a warning for
each, so the settings shown are the ones serve and fetch would use.`,
	Example: `  reqaudit validate reqaudit.yaml
  reqaudit validate --config reqaudit.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no config file given: pass a path or --config")
	}

	result := validateResult{Path: path}
	cfg, err := config.Load(path)
	if err == nil {
		for _, name := range config.ApplyEnv(cfg) {
			output.Warn(cmd.ErrOrStderr(), "%s overrides %s", name, path)
		}
		if result := cfg.Validate(); !result.IsValid() {
			err = fmt.Errorf("%w:\n%s", config.ErrInvalidConfig, result.Error())
		}
	}
	if err == nil {
		// MaskConfig also loads the OpenAPI document.
		_, err = cfg.MaskConfig()
	}
	if err != nil {
		result.Error = err.Error()
		if jsonOutput {
			_ = output.JSON(cmd.OutOrStdout(), result)
		}
		return err
	}

	result.Valid = true
	result.Settings = make(map[string]string)
	desc := cfg.Describe()
	for _, row := range desc {
		result.Settings[row[0]] = row[1]
	}

	return printResult(cmd, result, func() {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s is valid\n\n", path)
		output.Heading(w, "effective settings")
		_ = output.Pairs(w, desc)
	})
}
