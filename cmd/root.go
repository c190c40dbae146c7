package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "oracle-cli",
	Short: "Pay-per-query fact verification oracle",
	Long:  "Answers natural-language questions about sports results and Reddit content with a confidence score, guarded by per-domain circuit breakers, daily quotas and payment verification.",
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
