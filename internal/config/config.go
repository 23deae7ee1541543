// Package config holds the settings of a collage run. Defaults can be
// overridden by a YAML file and then by environment variables (a .env file is
// honoured when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"clustertimeline/internal/binning"
	"clustertimeline/internal/datekey"
	"clustertimeline/internal/records"
)

// Zoom is a highlight rectangle drawn over a cluster in SVG output, in
// canvas pixels.
type Zoom struct {
	X      int    `yaml:"x"`      // Left edge in pixels
	Y      int    `yaml:"y"`      // Top edge in pixels
	Width  int    `yaml:"width"`  // Rectangle width in pixels
	Height int    `yaml:"height"` // Rectangle height in pixels
	Color  string `yaml:"color"`  // Stroke colour (hex color code, defaults to clusters.zoom_color)
}

// Input describes the table being read.
type Input struct {
	DateLayout string          `yaml:"date_layout"` // Go time layout of the timestamp column
	Columns    records.Columns `yaml:"columns"`     // Header names, matched case-insensitively
	ImagesDir  string          `yaml:"images_dir"`  // Prefix joined to relative image paths
}

// Timeline controls binning and the bitmap/SVG layout.
type Timeline struct {
	Granularity string `yaml:"granularity"`  // "day" or "week"
	CellSize    int    `yaml:"cell_size"`    // Side of one thumbnail in pixels
	MinCluster  int    `yaml:"min_cluster"`  // Smallest size threshold; clusters must be strictly bigger
	PerCluster  bool   `yaml:"per_cluster"`  // Also write one canvas per cluster
	Deduplicate bool   `yaml:"deduplicate"`  // Drop images whose difference hash was already seen
	JPEGQuality int    `yaml:"jpeg_quality"` // Quality used when an output ends in .jpg
}

// Clusters holds the static cluster tables.
type Clusters struct {
	Remap        map[int]int  `yaml:"remap"`         // Cluster id -> id it is merged into
	RemapQuality float64      `yaml:"remap_quality"` // Quality forced on merge targets
	Zooms        map[int]Zoom `yaml:"zooms"`         // Cluster id -> highlight rectangle
	ZoomColor    string       `yaml:"zoom_color"`    // Default highlight stroke colour
	ZoomWidth    int          `yaml:"zoom_width"`    // Highlight stroke width in pixels
}

// Halves controls the weekly half-photograph timeline.
type Halves struct {
	DateLayout  string `yaml:"date_layout"`  // Layout of the formatted_date column
	FixedWidth  int    `yaml:"fixed_width"`  // Photographs narrower than this are skipped; crops are half as wide
	FixedHeight int    `yaml:"fixed_height"` // Crop height
	Gap         int    `yaml:"gap"`          // Horizontal space between week columns
	Before      string `yaml:"before"`       // Only rows dated before this day (YYYY-MM-DD); empty keeps all
	JPEGQuality int    `yaml:"jpeg_quality"` // Quality of the JPEG output
	DateColumn  string `yaml:"date_column"`  // Header of the date column
}

// Output controls rendering.
type Output struct {
	Background string `yaml:"background"` // Canvas background (hex color code, empty = transparent)
}

// Config is the complete configuration.
type Config struct {
	Input    Input    `yaml:"input"`
	Timeline Timeline `yaml:"timeline"`
	Clusters Clusters `yaml:"clusters"`
	Halves   Halves   `yaml:"halves"`
	Output   Output   `yaml:"output"`
}

// Default returns the settings of the artwork runs, without
// the dataset specific cluster tables.
func Default() Config {
	return Config{
		Input: Input{
			DateLayout: datekey.DefaultLayout,
			Columns:    records.DefaultColumns(),
		},
		Timeline: Timeline{
			Granularity: string(datekey.Day),
			CellSize:    16,
			MinCluster:  5,
			PerCluster:  true,
			JPEGQuality: 90,
		},
		Clusters: Clusters{
			Remap:        map[int]int{},
			RemapQuality: binning.DefaultRemapQuality,
			Zooms:        map[int]Zoom{},
			ZoomColor:    "#ff0000",
			ZoomWidth:    4,
		},
		Halves: Halves{
			DateLayout:  "2006-01-02",
			FixedWidth:  1024,
			FixedHeight: 1000,
			Gap:         100,
			Before:      "2020-12-31",
			JPEGQuality: 1,
			DateColumn:  "formatted_date",
		},
	}
}

// Load reads configPath over the defaults, or returns the defaults when
// configPath is empty, then applies environment overrides.
func Load(configPath string) (Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error reading .env: %w", err)
	}
	config.applyEnv()

	return config, nil
}

func (c *Config) applyEnv() {
	c.Input.ImagesDir = getEnv("TIMELINE_IMAGES_DIR", c.Input.ImagesDir)
	c.Timeline.Granularity = getEnv("TIMELINE_GRANULARITY", c.Timeline.Granularity)
	c.Timeline.CellSize = getEnvAsInt("TIMELINE_CELL_SIZE", c.Timeline.CellSize)
	c.Timeline.MinCluster = getEnvAsInt("TIMELINE_MIN_CLUSTER", c.Timeline.MinCluster)
}

// Validate checks values that would otherwise fail late in a run.
func (c Config) Validate() error {
	if _, err := datekey.ParseGranularity(c.Timeline.Granularity); err != nil {
		return err
	}
	if c.Timeline.CellSize <= 0 {
		return fmt.Errorf("timeline.cell_size must be positive, got %d", c.Timeline.CellSize)
	}
	if c.Timeline.MinCluster < 0 {
		return fmt.Errorf("timeline.min_cluster must not be negative, got %d", c.Timeline.MinCluster)
	}
	if c.Halves.FixedWidth <= 0 || c.Halves.FixedHeight <= 0 {
		return fmt.Errorf("halves.fixed_width and halves.fixed_height must be positive")
	}
	if _, err := c.Halves.Cutoff(); err != nil {
		return err
	}
	for id, z := range c.Clusters.Zooms {
		if z.Width <= 0 || z.Height <= 0 {
			return fmt.Errorf("zoom for cluster %d has an empty rectangle", id)
		}
	}
	return nil
}

// Granularity returns the parsed timeline granularity.
func (c Config) Granularity() (datekey.Granularity, error) {
	return datekey.ParseGranularity(c.Timeline.Granularity)
}

// Cutoff parses Before; the zero time means no cutoff.
func (h Halves) Cutoff() (time.Time, error) {
	if h.Before == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", h.Before)
	if err != nil {
		return time.Time{}, fmt.Errorf("halves.before: %w", err)
	}
	return t, nil
}

// HalvesColumns returns the columns read by the half-photograph timeline.
func (c Config) HalvesColumns() records.Columns {
	return records.Columns{
		Timestamp: c.Halves.DateColumn,
		Path:      c.Input.Columns.Path,
		Slice:     c.Input.Columns.Slice,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
