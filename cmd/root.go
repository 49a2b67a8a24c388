package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dokanalyse",
	Short: "DOK dataset analysis service",
	Long:  "Analyzes an area of interest against the public map data (DOK) datasets: spatial hits, distances, guidance texts and data quality per dataset.",
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
