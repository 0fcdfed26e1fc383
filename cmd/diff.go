package cmd

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/differ"
	"github.com/apiscribe/apiscribe/internal/observability"
)

// newDiffCmd creates and configures the `diff` command.
func newDiffCmd() *cobra.Command {
	var (
		asJSON       bool
		breakingOnly bool
		output       string
	)

	diffCmd := &cobra.Command{
		Use:   "diff <old-spec> <new-spec>",
		Short: "Compares two specifications and classifies breaking changes",
		Long: `Compares two OpenAPI specification files and produces a changelog.
Removed endpoints, newly required parameters, removed success responses,
and removed security schemes are flagged as breaking.`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			oldSpec, err := loadSpecFile(args[0])
			if err != nil {
				return err
			}
			newSpec, err := loadSpecFile(args[1])
			if err != nil {
				return err
			}

			d := differ.New(logger)
			changelog := d.Diff(oldSpec, newSpec)
			if breakingOnly {
				changelog.Changes = differ.GetBreakingChanges(changelog)
			}

			var rendered string
			if asJSON {
				data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(changelog, "", "  ")
				if err != nil {
					return fmt.Errorf("render changelog: %w", err)
				}
				rendered = string(data)
			} else {
				rendered = differ.FormatAsMarkdown(changelog)
			}

			if output == "" {
				cmd.Println(rendered)
				return nil
			}
			if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}

	diffCmd.Flags().BoolVar(&asJSON, "json", false, "render the changelog as JSON instead of Markdown")
	diffCmd.Flags().BoolVar(&breakingOnly, "breaking-only", false, "only report breaking changes")
	diffCmd.Flags().StringVarP(&output, "out", "o", "", "output file (default stdout)")

	return diffCmd
}

// loadSpecFile reads an OpenAPI document in JSON or YAML.
func loadSpecFile(path string) (*schemas.Specification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var spec schemas.Specification
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return &spec, nil
}
