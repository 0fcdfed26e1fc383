package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apiscribe/apiscribe/internal/observability"
)

// newFormatsCmd creates and configures the `formats` command.
func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Lists the registered format handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			for _, format := range components.Registry.Formats() {
				direction := "import"
				if components.Registry.CanExport(format) {
					direction = "import, export"
				}
				cmd.Printf("%-10s %s\n", format, direction)
			}
			return nil
		},
	}
}

// newValidateCmd creates and configures the `validate` command.
func newValidateCmd() *cobra.Command {
	var format string

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validates an API definition against its format's structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			content, err := readFileString(args[0])
			if err != nil {
				return err
			}

			result := components.Registry.Validate(content, format)
			if result.Valid {
				cmd.Printf("%s: valid (%s)\n", args[0], result.Format)
				return nil
			}
			for _, issue := range result.Errors {
				cmd.Printf("%s: %s: %s\n", args[0], issue.Code, issue.Message)
			}
			return fmt.Errorf("%s is not valid", args[0])
		},
	}

	validateCmd.Flags().StringVarP(&format, "format", "f", "", "pin the format instead of auto-detecting")
	return validateCmd
}

func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
