package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"clustertimeline/internal/collage"
	"clustertimeline/internal/config"
	"clustertimeline/internal/logger"
)

var version = "1.0.0"

var (
	configFile string
	debugMode  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.New(debugMode).Error("%v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clustertimeline",
	Short: "Cluster timeline collage generator",
	Long: `clustertimeline lays out clustered, timestamped photographs as a timeline.

Rows of the input CSV are grouped by cluster id, binned by cluster size and
quality, and stacked bottom-up in one column per day or ISO week. The result is
written as PNG/JPEG collages or as an SVG document with embedded thumbnails.

If no config file is specified, default settings will be used. Environment
variables (and a .env file in the working directory) override the config file.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clustertimeline version %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(svgCmd)
	rootCmd.AddCommand(halvesCmd)
	rootCmd.AddCommand(versionCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file (optional)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode for verbose output")

	rootCmd.SetVersionTemplate(`{{printf "%s version %s" .Name .Version}}
`)
}

// newJob loads the configuration, applies the flags the user set on cmd and
// validates the result.
func newJob(cmd *cobra.Command, imagesDir string) (*collage.Job, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	overrideConfig(cmd, &cfg)
	if imagesDir != "" {
		cfg.Input.ImagesDir = imagesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(debugMode)
	log.Debugf("Configuration loaded. Granularity: %s, cell size: %d, min cluster: %d, images dir: %q",
		cfg.Timeline.Granularity, cfg.Timeline.CellSize, cfg.Timeline.MinCluster, cfg.Input.ImagesDir)

	return &collage.Job{Config: cfg, Log: log}, nil
}
