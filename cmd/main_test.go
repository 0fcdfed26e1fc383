package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apiscribe/apiscribe/internal/config"
	"github.com/apiscribe/apiscribe/internal/observability"
	"github.com/apiscribe/apiscribe/internal/service"
)

// resetForTest provides the single source of truth for resetting command
// state between tests. Cobra and viper both keep package-level state, so
// every test starts from a pristine root command.
func resetForTest(t *testing.T) {
	t.Helper()

	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")
	t.Setenv("APISCRIBE_LOGGER_LEVEL", "error")

	cfgFile = ""
	factory = service.NewComponentFactory()

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	rootCmd = newPristineRootCmd()
}

// newPristineRootCmd rebuilds the root command exactly as root.go does, so
// flag and subcommand state cannot leak between tests.
func newPristineRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apiscribe",
		Short:   "apiscribe converts, infers, and diffs API specifications.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			observability.InitializeLogger(cfg.Logger())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newInferCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newFormatsCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

// executeCommand runs the pristine root command with the given arguments and
// returns everything it wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	if args == nil {
		// SetArgs(nil) would make cobra fall back to os.Args, which holds
		// test binary flags here.
		args = []string{}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
