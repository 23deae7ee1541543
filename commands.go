package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clustertimeline/internal/config"
	"clustertimeline/internal/render"
)

var (
	granularity string
	cellSize    int
	minCluster  int
	perCluster  bool
	deduplicate bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline SOURCE OUTPUT_DIR [IMAGES_DIR]",
	Short: "Render the cluster timeline as PNG collages",
	Long: `Render the cluster timeline as raster collages.

One transparent canvas is written per placed cluster (unless --per-cluster=false),
followed by the canvas holding every cluster. Relative image paths in SOURCE are
resolved against IMAGES_DIR when given.`,
	Example: `  # Daily columns of 16 pixel thumbnails
  clustertimeline timeline clusters.csv ./collages /data/photos

  # Weekly columns, only the full canvas
  clustertimeline timeline clusters.csv ./collages --granularity week --per-cluster=false

  # Drop exact duplicate photographs first
  clustertimeline timeline clusters.csv ./collages --dedup --config config.yaml`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runTimeline,
}

var svgCmd = &cobra.Command{
	Use:   "svg SOURCE OUTPUT.svg [IMAGES_DIR]",
	Short: "Render the cluster timeline as an SVG document",
	Long: `Render the cluster timeline as an SVG document with every thumbnail embedded
as a base64 PNG. Each cluster is a <g id="cluster-N"> group; clusters listed in
the zoom table of the config file get a highlight rectangle.`,
	Example: `  clustertimeline svg clusters.csv timeline.svg /data/photos --config config.yaml`,
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runSVG,
}

var halvesCmd = &cobra.Command{
	Use:   "halves SOURCE FACTOR [OUTPUT]",
	Short: "Render the weekly half-photograph timeline",
	Long: `Render the left or right half of sliced photographs in one column per ISO
week, keeping about one photograph in FACTOR per week. If no output file is
specified, images_divided_by_<FACTOR>.jpg is written.`,
	Example: `  clustertimeline halves slices.csv 10
  clustertimeline halves slices.csv 4 weekly.jpg --config config.yaml`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runHalves,
}

func init() {
	defaults := config.Default()
	for _, cmd := range []*cobra.Command{timelineCmd, svgCmd} {
		cmd.Flags().StringVarP(&granularity, "granularity", "g", defaults.Timeline.Granularity, "Date bucket of the columns: day or week")
		cmd.Flags().IntVarP(&cellSize, "cell-size", "s", defaults.Timeline.CellSize, "Side of one thumbnail in pixels")
		cmd.Flags().IntVarP(&minCluster, "min-cluster", "m", defaults.Timeline.MinCluster, "Clusters must have more images than this")
		cmd.Flags().BoolVar(&deduplicate, "dedup", defaults.Timeline.Deduplicate, "Skip photographs whose difference hash was already seen")
	}
	timelineCmd.Flags().BoolVar(&perCluster, "per-cluster", defaults.Timeline.PerCluster, "Also write one canvas per cluster")
}

// overrideConfig copies the flags explicitly set on cmd into cfg.
func overrideConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("granularity") {
		cfg.Timeline.Granularity = granularity
	}
	if flags.Changed("cell-size") {
		cfg.Timeline.CellSize = cellSize
	}
	if flags.Changed("min-cluster") {
		cfg.Timeline.MinCluster = minCluster
	}
	if flags.Changed("per-cluster") {
		cfg.Timeline.PerCluster = perCluster
	}
	if flags.Changed("dedup") {
		cfg.Timeline.Deduplicate = deduplicate
	}
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func runTimeline(cmd *cobra.Command, args []string) error {
	job, err := newJob(cmd, optionalArg(args, 2))
	if err != nil {
		return err
	}
	_, err = job.Timeline(args[0], args[1])
	return err
}

func runSVG(cmd *cobra.Command, args []string) error {
	job, err := newJob(cmd, optionalArg(args, 2))
	if err != nil {
		return err
	}
	return job.SVG(args[0], args[1])
}

func runHalves(cmd *cobra.Command, args []string) error {
	factor, err := strconv.Atoi(args[1])
	if err != nil || factor < 1 {
		return fmt.Errorf("invalid factor %q: must be a positive integer", args[1])
	}
	outputPath := getOutputFilename(optionalArg(args, 2), factor)

	job, err := newJob(cmd, "")
	if err != nil {
		return err
	}
	return job.Halves(args[0], factor, outputPath)
}

// getOutputFilename determines the output filename of the half-photograph
// timeline. If outputFile is provided and not empty, it returns that
// filename; otherwise the name is derived from the factor.
func getOutputFilename(outputFile string, factor int) string {
	if outputFile != "" {
		return outputFile
	}
	return render.HalvesFileName(factor)
}
