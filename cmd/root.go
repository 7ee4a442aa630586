package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/config"
)

var (
	cfg          *config.Config
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "gridconv",
	Short: "Convert between Landsat WRS-2 path/rows and Sentinel-2 MGRS tiles",
	Long: `Converts tile identifiers between the Landsat WRS-2 path/row grid and the MGRS
100 km grid used by Sentinel-2, resolves tile footprints, intersects footprints with
either grid, and exports tile coverage as shapefile or GeoJSON.

Reference grid shapefiles are read from grid.data_root; use 'gridconv grid fetch' to
install them from a mirror.`,
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

		return checkFormat(outputFormat)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "output format: text, json, yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
