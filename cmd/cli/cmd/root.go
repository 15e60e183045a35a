package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ucp-transcoder/pkg/config"
	"github.com/ucp-transcoder/pkg/telemetry"
	"github.com/ucp-transcoder/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger utils.Logger
	cfg    *config.Config

	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "ucp-transcoder",
	Short: "Converts a PP/TP/DP-sharded training checkpoint into a universal checkpoint",
	Long: `ucp-transcoder inverts a training checkpoint sharded across pipeline,
tensor, and data parallelism into a universal checkpoint: every parameter is
reconstructed as one contiguous tensor bundled with its optimizer moments,
reloadable under any other (PP, TP, DP) configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		shutdown, err := telemetry.Init(context.Background())
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing: %v", err)
			shutdown = func(context.Context) error { return nil }
		}
		telemetryShutdown = shutdown

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			return telemetryShutdown(context.Background())
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults searched: ./config.yaml, ./configs/config.yaml, /etc/ucp-transcoder/config.yaml)")

	binName := BinName()
	rootCmd.Example = `  # Convert a sharded checkpoint into a universal checkpoint
  ` + binName + ` convert --input_folder ./ckpt --output_folder ./ckpt_universal

  # Same, with more extraction parallelism and the intermediate tree kept
  ` + binName + ` convert -i ./ckpt -o ./ckpt_universal --num_extract_workers 8 --keep_temp_folder

  # List recent conversion runs recorded in the local run ledger
  ` + binName + ` runs list`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
