// Package collage runs the table -> bins -> layout -> output pipeline.
package collage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"clustertimeline/internal/binning"
	"clustertimeline/internal/config"
	"clustertimeline/internal/datekey"
	"clustertimeline/internal/dedup"
	"clustertimeline/internal/layout"
	"clustertimeline/internal/logger"
	"clustertimeline/internal/records"
	"clustertimeline/internal/render"
)

// ErrNothingPlaced is returned when no image survives binning and layout.
var ErrNothingPlaced = errors.New("no image was placed on the timeline")

// Job runs one collage generation with a fixed configuration.
type Job struct {
	Config config.Config
	Log    *logger.Logger
	// Loader decodes images. Nil means render.FileLoader.
	Loader render.Loader
	// Exists reports whether an image file is present. Nil means layout.FileExists.
	Exists func(path string) bool
}

// Stats summarises a Collect run.
type Stats struct {
	Rows       int
	Duplicates int
	Clusters   int
}

// Collect reads the table at source and bins its clusters.
func (j *Job) Collect(source string) (*binning.Result, Stats, error) {
	var stats Stats

	g, err := j.Config.Granularity()
	if err != nil {
		return nil, stats, err
	}
	n, err := datekey.New(j.Config.Input.DateLayout, g)
	if err != nil {
		return nil, stats, err
	}

	total, err := records.Count(source)
	if err != nil {
		return nil, stats, err
	}
	j.Log.Debugf("%s has %d rows", source, total)

	file, err := os.Open(source)
	if err != nil {
		return nil, stats, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer file.Close()

	rd, err := records.NewReader(file, j.Config.Input.Columns, j.Config.Input.ImagesDir)
	if err != nil {
		return nil, stats, err
	}

	var filter *dedup.Filter
	if j.Config.Timeline.Deduplicate {
		filter = dedup.NewFilter()
	}
	collector := binning.NewCollector(j.Config.Clusters.Remap, j.Config.Clusters.RemapQuality)
	progress := j.Log.Progress("Reading rows", total, 0)

	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, err
		}
		progress.Add(1)
		row := progress.Done()

		key, err := n.Key(rec.Timestamp)
		if err != nil {
			return nil, stats, fmt.Errorf("row %d: %w", row, err)
		}

		if filter != nil {
			dup, err := j.isDuplicate(filter, rec.Path)
			if err != nil {
				return nil, stats, fmt.Errorf("row %d: %w", row, err)
			}
			if dup {
				j.Log.Debugf("Skipping duplicate %s", rec.Path)
				stats.Duplicates++
				continue
			}
		}

		collector.Add(rec, key)
	}

	stats.Rows = progress.Done()
	stats.Clusters = collector.Len()
	res := binning.Bin(collector.Clusters(), j.Config.Timeline.MinCluster)

	j.Log.Info("Read %d rows into %d clusters, %d placed, %d dropped", stats.Rows, stats.Clusters, len(res.Placed()), len(res.Dropped))
	if filter != nil {
		j.Log.Info("Skipped %d duplicate images", stats.Duplicates)
	}
	return res, stats, nil
}

// isDuplicate hashes the image at path. Missing files are never duplicates;
// the layout skips them later.
func (j *Job) isDuplicate(filter *dedup.Filter, path string) (bool, error) {
	img, err := j.loader().Load(path)
	if err != nil {
		if errors.Is(err, render.ErrMissingFile) {
			return false, nil
		}
		return false, err
	}
	return filter.CheckAndRegister(img), nil
}

// Layout places the binned clusters on the timeline canvas.
func (j *Job) Layout(res *binning.Result) (*layout.Layout, error) {
	engine := layout.Engine{CellSize: j.Config.Timeline.CellSize, Exists: j.Exists}
	l := engine.Layout(res)

	for _, path := range l.Missing {
		j.Log.Warning("Image not found: %s", path)
	}
	if len(l.Placements) == 0 {
		return nil, ErrNothingPlaced
	}

	j.Log.Info("Image size will be %d x %d (width x height)", l.Width, l.Height)
	j.Log.Debugf("%d dates, %d placements, %d missing", len(l.Dates), len(l.Placements), len(l.Missing))
	return l, nil
}

// Timeline writes the raster collages into outDir: one canvas per cluster
// when enabled, then the canvas holding every cluster. It returns the paths
// written.
func (j *Job) Timeline(source, outDir string) ([]string, error) {
	res, _, err := j.Collect(source)
	if err != nil {
		return nil, err
	}
	l, err := j.Layout(res)
	if err != nil {
		return nil, err
	}

	bg, err := render.ParseColor(j.Config.Output.Background)
	if err != nil {
		return nil, fmt.Errorf("output.background: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	t := j.Config.Timeline
	var written []string
	var each render.ClusterFunc
	if t.PerCluster {
		each = func(id int, canvas *image.NRGBA) error {
			path := filepath.Join(outDir, render.ClusterFileName(id, t.MinCluster, t.Granularity, t.CellSize))
			if err := render.Save(path, canvas, t.JPEGQuality); err != nil {
				return err
			}
			j.Log.Debugf("Wrote %s", path)
			written = append(written, path)
			return nil
		}
	}

	bitmap := render.Bitmap{Loader: j.Loader, Background: bg, OnSkip: j.skipped}
	canvas, err := bitmap.Render(l, each)
	if err != nil {
		return written, err
	}

	path := filepath.Join(outDir, render.AllFileName(t.MinCluster, t.Granularity, t.CellSize))
	if err := render.Save(path, canvas, t.JPEGQuality); err != nil {
		return written, err
	}
	written = append(written, path)

	j.Log.Info("Wrote %d collages to %s", len(written), outDir)
	return written, nil
}

// SVG writes the vector timeline to outFile.
func (j *Job) SVG(source, outFile string) error {
	res, _, err := j.Collect(source)
	if err != nil {
		return err
	}
	l, err := j.Layout(res)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}

	vector := render.Vector{
		Loader:     j.Loader,
		Zooms:      j.zooms(),
		Background: j.Config.Output.Background,
		OnSkip:     j.skipped,
	}
	if err := vector.Write(f, l); err != nil {
		f.Close()
		return fmt.Errorf("error writing SVG: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing SVG: %w", err)
	}

	j.Log.Info("SVG timeline generated successfully: %s", outFile)
	return nil
}

func (j *Job) zooms() map[int]render.Zoom {
	c := j.Config.Clusters
	out := make(map[int]render.Zoom, len(c.Zooms))
	for id, z := range c.Zooms {
		color := z.Color
		if color == "" {
			color = c.ZoomColor
		}
		out[id] = render.Zoom{
			Rect:  image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height),
			Color: color,
			Width: c.ZoomWidth,
		}
	}
	return out
}

// Halves writes the weekly half-photograph timeline to outFile, keeping about
// one image in factor per week.
func (j *Job) Halves(source string, factor int, outFile string) error {
	h := j.Config.Halves
	cutoff, err := h.Cutoff()
	if err != nil {
		return err
	}
	n, err := datekey.New(h.DateLayout, datekey.Week)
	if err != nil {
		return err
	}

	recs, err := records.Read(source, j.Config.HalvesColumns(), j.Config.Input.ImagesDir)
	if err != nil {
		return err
	}
	j.Log.Info("Read %d rows", len(recs))

	engine := layout.HalfEngine{
		Factor:      factor,
		FixedWidth:  h.FixedWidth,
		FixedHeight: h.FixedHeight,
		Gap:         h.Gap,
		Before:      cutoff,
	}
	hl, err := engine.Layout(recs, n)
	if err != nil {
		return err
	}
	for _, path := range hl.Missing {
		j.Log.Warning("Image not found: %s", path)
	}
	j.Log.Debugf("%d photographs narrower than %d pixels skipped", len(hl.Skipped), h.FixedWidth)
	if len(hl.Placements) == 0 {
		return ErrNothingPlaced
	}
	j.Log.Info("Image size will be %d x %d (width x height)", hl.Width, hl.Height)

	bg, err := render.ParseColor(j.Config.Output.Background)
	if err != nil {
		return fmt.Errorf("output.background: %w", err)
	}
	bitmap := render.Bitmap{Loader: j.Loader, Background: bg, OnSkip: j.skipped}
	canvas, err := bitmap.RenderHalves(hl)
	if err != nil {
		return err
	}
	if err := render.Save(outFile, canvas, h.JPEGQuality); err != nil {
		return err
	}

	j.Log.Info("Wrote %s", outFile)
	return nil
}

func (j *Job) skipped(path string, err error) {
	j.Log.Warning("Skipping %s: %v", path, err)
}

func (j *Job) loader() render.Loader {
	if j.Loader == nil {
		return render.FileLoader{}
	}
	return j.Loader
}
