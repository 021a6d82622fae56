package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/cli/internal/parse"
	"github.com/getmockd/reqaudit/pkg/config"
	"github.com/getmockd/reqaudit/pkg/mask"
)

var (
	initOutput string
	initLogger string
	initFields string
	initMask   string
	initDrop   bool
	initTiming bool
	initTrace  bool
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Create a starter reqaudit config file.

Without flags, init asks for the settings interactively.`,
	Example: `  reqaudit init
  reqaudit init --logger payments.audit --fields password,card -o reqaudit.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "reqaudit.yaml", "Output file (.yaml, .yml or .json)")
	initCmd.Flags().StringVar(&initLogger, "logger", config.DefaultLoggerName, "Audit logger name")
	initCmd.Flags().StringVar(&initFields, "fields", "password", "Comma-separated sensitive field names")
	initCmd.Flags().StringVar(&initMask, "mask", mask.DefaultToken, "Mask token")
	initCmd.Flags().BoolVar(&initDrop, "drop", false, "Drop sensitive fields instead of masking them")
	initCmd.Flags().BoolVar(&initTiming, "timing", true, "Record request duration in meta")
	initCmd.Flags().BoolVar(&initTrace, "trace", false, "Record W3C trace context in meta")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}

func runInit(cmd *cobra.Command, _ []string) error {
	if !anyChanged(cmd, "output", "logger", "fields", "mask", "drop", "timing", "trace") {
		if err := runInitForm(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(initOutput); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
	}

	cfg := config.Default()
	cfg.Logger = initLogger
	cfg.SensitiveFields = parse.List(initFields)
	cfg.Mask = mask.Token(initMask)
	if initDrop {
		cfg.Mask = nil
	}
	cfg.Meta.Timing = initTiming
	cfg.Meta.Trace = initTrace

	if result := cfg.Validate(); !result.IsValid() {
		return fmt.Errorf("%w:\n%s", config.ErrInvalidConfig, result.Error())
	}
	if err := config.Save(cfg, initOutput); err != nil {
		return err
	}

	return printResult(cmd, map[string]any{"path": initOutput, "config": cfg}, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", initOutput)
	})
}

func runInitForm() error {
	mode := "mask"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What should the audit logger be called?").
				Value(&initLogger).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("logger name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Which fields are sensitive? (comma-separated)").
				Placeholder("password,token,card").
				Value(&initFields),
			huh.NewSelect[string]().
				Title("How should sensitive values be hidden?").
				Options(
					huh.NewOption("Replace with a mask", "mask"),
					huh.NewOption("Drop the field", "drop"),
				).
				Value(&mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Mask token").
				Value(&initMask).
				Validate(func(s string) error {
					if mode == "mask" && s == "" {
						return errors.New("mask token must not be empty")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Record request duration?").
				Value(&initTiming),
			huh.NewConfirm().
				Title("Record trace context?").
				Value(&initTrace),
			huh.NewInput().
				Title("Output file").
				Value(&initOutput),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	initDrop = mode == "drop"
	return nil
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
