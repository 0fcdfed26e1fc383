package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apiscribe/apiscribe/internal/assembler"
	"github.com/apiscribe/apiscribe/internal/capture"
	"github.com/apiscribe/apiscribe/internal/observability"
)

// newInferCmd creates and configures the `infer` command.
func newInferCmd() *cobra.Command {
	var (
		title           string
		specVersion     string
		description     string
		output          string
		asYAML          bool
		includeExamples bool
		includeAuth     bool
		groupByTags     bool
	)

	inferCmd := &cobra.Command{
		Use:   "infer <capture-log>",
		Short: "Infers an OpenAPI specification from captured traffic",
		Long: `Analyzes a capture log produced by the recording proxy (or imported
from a HAR file) and emits an OpenAPI 3 specification: normalized path
templates, parameter and body schemas widened across observations, and
detected authentication schemes.`,
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

			reader := capture.NewReader(logger)
			entries, err := reader.LoadLog(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("capture log %s holds no entries", args[0])
			}

			result := components.Engine.Analyze(entries)
			for _, diag := range result.Diagnostics {
				logger.Warn("Inference diagnostic.",
					zap.String("code", diag.Code),
					zap.String("field", diag.Field),
					zap.String("message", diag.Message))
			}

			spec := assembler.Assemble(result, assembler.Options{
				Title:           title,
				Version:         specVersion,
				Description:     description,
				IncludeExamples: includeExamples,
				IncludeAuth:     includeAuth,
				GroupByTags:     groupByTags,
			})

			var rendered []byte
			if asYAML {
				rendered, err = yaml.Marshal(spec)
			} else {
				rendered, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("render specification: %w", err)
			}

			if output == "" {
				cmd.Println(string(rendered))
				return nil
			}
			if err := os.WriteFile(output, rendered, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			logger.Info("Specification inferred.",
				zap.String("output", output),
				zap.Int("endpoints", result.Metadata.UniqueEndpoints),
				zap.Int("requests", result.Metadata.TotalRequests))
			return nil
		},
	}

	inferCmd.Flags().StringVar(&title, "title", "", "specification title")
	inferCmd.Flags().StringVar(&specVersion, "spec-version", "", "specification version")
	inferCmd.Flags().StringVar(&description, "description", "", "specification description")
	inferCmd.Flags().StringVarP(&output, "out", "o", "", "output file (default stdout)")
	inferCmd.Flags().BoolVar(&asYAML, "yaml", false, "render YAML instead of JSON")
	inferCmd.Flags().BoolVar(&includeExamples, "examples", true, "attach observed example values")
	inferCmd.Flags().BoolVar(&includeAuth, "auth", true, "attach detected security schemes")
	inferCmd.Flags().BoolVar(&groupByTags, "tags", true, "group endpoints by first path segment tags")

	return inferCmd
}
