package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqaudit/pkg/cli/internal/parse"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/payload"
)

var (
	maskFields string
	maskToken  string
	maskDrop   bool
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Mask sensitive fields in a JSON document read from stdin",
	Long: `Mask sensitive fields in a JSON document read from stdin.

Fields come from --fields, or from the config file when --fields is not
given. Key order is preserved and numbers are written exactly as read.`,
	Example: `  echo '{"user":"ann","password":"hunter2"}' | reqaudit mask --fields password
  reqaudit mask --config reqaudit.yaml --drop < body.json`,
	Args: cobra.NoArgs,
	RunE: runMask,
}

func init() {
	rootCmd.AddCommand(maskCmd)
	maskCmd.Flags().StringVar(&maskFields, "fields", "", "Comma-separated sensitive field names")
	maskCmd.Flags().StringVar(&maskToken, "token", "", "Mask token (default from config, or X)")
	maskCmd.Flags().BoolVar(&maskDrop, "drop", false, "Drop sensitive fields instead of masking them")
}

func runMask(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("fields") {
		cfg.SensitiveFields = parse.List(maskFields)
	}
	if cmd.Flags().Changed("token") {
		cfg.Mask = mask.Token(maskToken)
	}
	if maskDrop {
		cfg.Mask = nil
	}

	maskCfg, err := cfg.MaskConfig()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	doc, err := payload.DecodeJSON(data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if jsonOutput {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(mask.Mask(doc, maskCfg))
}
