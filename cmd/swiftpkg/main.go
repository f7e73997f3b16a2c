// swiftpkg pins the swift-lang RPM package's sources: it resolves every
// repository of a release scheme to a concrete commit and generates the
// include fragments the spec file consumes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swiftpkg/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "swiftpkg",
	Short: "Source pinning and CI helpers for the swift-lang RPM package",
	Long: `swiftpkg keeps the swift-lang RPM package's multi-repository sources in sync.

Given a release scheme it resolves every constituent repository's tracking
branch to a commit hash and generates version.inc, source.inc and rename.inc,
which the RPM spec file uses to download exact source snapshots and derive
the package version.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "swiftpkg.yaml", "Path to the tool config file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fedoraCmd)
	rootCmd.AddCommand(notifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
