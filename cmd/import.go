package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/importer"
	"github.com/apiscribe/apiscribe/internal/observability"
	"github.com/apiscribe/apiscribe/internal/registry"
	"github.com/apiscribe/apiscribe/internal/service"
)

// newImportCmd creates and configures the `import` command.
func newImportCmd() *cobra.Command {
	var (
		format      string
		preview     bool
		urls        []string
		gitURL      string
		gitRef      string
		selectedIDs []string
	)

	importCmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Imports API definitions into the canonical collection model",
		Long: `Imports one or more API definition documents (Postman, OpenAPI, HAR,
curl, Insomnia, RAML, WADL, WSDL, AsyncAPI, GraphQL SDL) from local files,
remote URLs, or a git repository. The format is auto-detected unless pinned
with --format.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if len(args) == 0 && len(urls) == 0 && gitURL == "" {
				return fmt.Errorf("nothing to import: provide files, --url, or --git")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			sources, err := gatherSources(ctx, components, args, urls, gitURL, gitRef)
			if err != nil {
				return err
			}

			opts := registry.ImportOptions{
				Format:                format,
				Preview:               preview,
				SelectiveImport:       len(selectedIDs) > 0,
				SelectedCollectionIDs: selectedIDs,
			}

			failures := 0
			for _, src := range sources {
				result := components.Registry.Import(ctx, src.Content, opts)
				if !result.Success {
					failures++
					logger.Error("Import failed.",
						zap.String("source", src.Name),
						zap.Any("errors", result.Errors))
					continue
				}
				logger.Info("Imported.",
					zap.String("source", src.Name),
					zap.String("format", result.Format),
					zap.Int("collections", len(result.Collections)),
					zap.Int("requests", len(result.Requests)))
				if preview {
					printPreview(cmd, src.Name, result)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d sources failed to import", failures, len(sources))
			}
			return nil
		},
	}

	importCmd.Flags().StringVarP(&format, "format", "f", "", "pin the source format instead of auto-detecting")
	importCmd.Flags().BoolVar(&preview, "preview", false, "parse and report without persisting")
	importCmd.Flags().StringArrayVar(&urls, "url", nil, "import from a URL (repeatable)")
	importCmd.Flags().StringVar(&gitURL, "git", "", "import specification files found in a git repository")
	importCmd.Flags().StringVar(&gitRef, "git-ref", "", "branch to clone with --git (default remote HEAD)")
	importCmd.Flags().StringSliceVar(&selectedIDs, "collections", nil, "only import the named collections")

	return importCmd
}

// gatherSources collects document contents from files, URLs, and git, in
// that order.
func gatherSources(ctx context.Context, components *service.Components, files, urls []string, gitURL, gitRef string) ([]importer.Source, error) {
	var sources []importer.Source

	if len(files) > 0 {
		fromFiles, err := importer.ReadFiles(ctx, files)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromFiles...)
	}
	if len(urls) > 0 {
		fromURLs, err := components.Fetcher.FetchAll(ctx, urls)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromURLs...)
	}
	if gitURL != "" {
		fromGit, err := components.Git.Clone(ctx, gitURL, gitRef)
		if err != nil {
			return nil, err
		}
		if len(fromGit) == 0 {
			return nil, fmt.Errorf("no specification files found in %s", gitURL)
		}
		sources = append(sources, fromGit...)
	}
	return sources, nil
}

func printPreview(cmd *cobra.Command, source string, result registry.ImportResult) {
	cmd.Printf("%s (%s):\n", source, result.Format)
	for i := range result.Collections {
		col := &result.Collections[i]
		total := 0
		col.WalkRequests(func(*schemas.Request) { total++ })
		cmd.Printf("  collection %q: %d requests\n", col.Name, total)
	}
	for _, env := range result.Environments {
		cmd.Printf("  environment %q: %d variables\n", env.Name, len(env.Variables))
	}
}
