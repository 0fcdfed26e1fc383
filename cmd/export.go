package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/internal/observability"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// newExportCmd creates and configures the `export` command.
func newExportCmd() *cobra.Command {
	var (
		fromFormat string
		toFormat   string
		output     string
		asYAML     bool
		pretty     bool
	)

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Converts an API definition into another format",
		Long: `Reads an API definition, converts it to the canonical model, and
renders it in the target format. Conversion is lossy where the formats
disagree; fields the target cannot express are dropped.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			imported := components.Registry.Import(ctx, string(data), registry.ImportOptions{
				Format:  fromFormat,
				Preview: true,
			})
			if !imported.Success {
				return fmt.Errorf("failed to parse %s: %v", args[0], imported.Errors)
			}

			result := components.Registry.Export(ctx, registry.ExportInput{
				Collections: imported.Collections,
			}, toFormat, registry.SerializeOptions{
				Pretty: pretty,
				AsYAML: asYAML,
			})
			if !result.Success {
				return fmt.Errorf("export to %s failed: %v", toFormat, result.Errors)
			}

			if output == "" {
				cmd.Print(result.Data)
				return nil
			}
			if err := os.WriteFile(output, []byte(result.Data), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			logger.Info("Exported.",
				zap.String("source", args[0]),
				zap.String("from", imported.Format),
				zap.String("to", toFormat),
				zap.String("output", output))
			return nil
		},
	}

	exportCmd.Flags().StringVar(&fromFormat, "from", "", "pin the source format instead of auto-detecting")
	exportCmd.Flags().StringVarP(&toFormat, "to", "t", "openapi", "target format")
	exportCmd.Flags().StringVarP(&output, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&asYAML, "yaml", false, "render YAML where the target format supports it")
	exportCmd.Flags().BoolVar(&pretty, "pretty", true, "indent the output")

	return exportCmd
}
