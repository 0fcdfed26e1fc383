package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/internal/capture"
	"github.com/apiscribe/apiscribe/internal/observability"
)

// newCaptureCmd creates and configures the `capture` command.
func newCaptureCmd() *cobra.Command {
	var (
		listenAddr     string
		logFile        string
		preserveBodies bool
	)

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Runs the recording proxy that feeds the inference engine",
		Long: `Starts a forward HTTP proxy that records every exchange into an
append-only capture log. Point a client or test suite at the proxy, exercise
the API, then run "apiscribe infer" on the log.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("capture.listen_addr", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			if err := viper.BindPFlag("capture.log_file", cmd.Flags().Lookup("log-file")); err != nil {
				return err
			}
			return viper.BindPFlag("capture.preserve_bodies", cmd.Flags().Lookup("bodies"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			recorder := capture.NewRecorder(cfg.Capture(), logger)
			logger.Info("Recording traffic. Interrupt to stop.",
				zap.String("listen", cfg.Capture().ListenAddr),
				zap.String("log", cfg.Capture().LogFile))

			if err := recorder.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Capture stopped.")
			return nil
		},
	}

	captureCmd.Flags().StringVar(&listenAddr, "listen", "", "proxy listen address (overrides config)")
	captureCmd.Flags().StringVar(&logFile, "log-file", "", "capture log path (overrides config)")
	captureCmd.Flags().BoolVar(&preserveBodies, "bodies", true, "preserve request and response bodies")

	return captureCmd
}
