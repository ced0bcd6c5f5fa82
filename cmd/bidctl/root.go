package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bidflow/internal/config"
	_ "bidflow/internal/provider/claude"
	_ "bidflow/internal/provider/gemini"
	_ "bidflow/internal/provider/openai"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bidctl",
	Short: "Run plan analysis, invoice extraction and JSON repair from the command line",
	Long: "bidctl drives the same model roster, consensus engine and invoice extractor as the API server " +
		"without a database. Results are printed as JSON.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
