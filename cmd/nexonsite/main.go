package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexonsite/internal/config"
	"nexonsite/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nexonsite",
	Short: "Nexon Inc company site backend",
	Long: `nexonsite serves the portfolio, blog posts, media uploads and the visitor
chat assistant, and pushes live content changes to browsers.

Configuration comes from --config (YAML) overlaid by NEXONSITE_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if logger != nil {
			return nil
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("NEXONSITE_CONFIG"), "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(mediaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
