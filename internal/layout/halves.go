package layout

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"time"

	// decoders for image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"

	"clustertimeline/internal/datekey"
	"clustertimeline/internal/records"
)

// Sizer returns the pixel dimensions of an image file.
type Sizer interface {
	Size(path string) (image.Point, error)
}

// FileSizer reads dimensions from the image header. Width and height are
// those of the photograph once its EXIF orientation is applied, matching
// what the renderer decodes.
type FileSizer struct{}

// Size decodes only the header of the file at path.
func (FileSizer) Size(path string) (image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Point{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	size := image.Pt(cfg.Width, cfg.Height)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return image.Point{}, fmt.Errorf("rewind %s: %w", path, err)
	}
	if transposed(f) {
		size.X, size.Y = size.Y, size.X
	}
	return size, nil
}

// transposed reports whether the EXIF orientation of r swaps width and
// height (orientations 5 to 8). Files without EXIF data are not transposed.
func transposed(r io.Reader) bool {
	x, err := exif.Decode(r)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return false
	}
	o, err := tag.Int(0)
	if err != nil {
		return false
	}
	return o >= 5 && o <= 8
}

// HalfPlacement is one cropped half photograph on the weekly canvas.
type HalfPlacement struct {
	Path string
	Week string
	// Crop is the source rectangle within the source photograph.
	Crop image.Rectangle
	X, Y int
}

// HalfLayout is a weekly timeline of half-photograph crops.
type HalfLayout struct {
	Width, Height int
	Weeks         []string
	Placements    []HalfPlacement
	Missing       []string
	// Skipped lists photographs narrower than the crop width.
	Skipped []string
}

// HalfEngine lays out the left or right half of sliced photographs, one
// column per ISO week, keeping about one image in Factor.
type HalfEngine struct {
	Factor      int
	FixedWidth  int
	FixedHeight int
	Gap         int
	// Before excludes records dated on or after it. Zero keeps everything.
	Before time.Time
	Sizer  Sizer
}

// Crop returns the source rectangle for one half of a w x h photograph:
// FixedWidth/2 pixels wide centred on the first or third quarter, and
// FixedHeight pixels high centred vertically (the full height when the
// photograph is shorter).
func (e HalfEngine) Crop(slice records.Slice, w, h int) image.Rectangle {
	quarter := e.FixedWidth / 4

	centre := w / 4
	if slice == records.SliceRight {
		centre = (w / 4) * 3
	}

	upper, lower := 0, h
	if h >= e.FixedHeight {
		upper = h/2 - e.FixedHeight/2
		lower = h/2 + e.FixedHeight/2
	}
	return image.Rect(centre-quarter, upper, centre+quarter, lower)
}

type halfCandidate struct {
	rec  records.Record
	week string
}

// Layout selects and places crops. Timestamps are parsed with n; weeks are
// counted over every record, including those that are not laid out.
func (e HalfEngine) Layout(recs []records.Record, n datekey.Normalizer) (*HalfLayout, error) {
	if e.Factor < 1 {
		return nil, fmt.Errorf("reduction factor must be positive, got %d", e.Factor)
	}
	sizer := e.Sizer
	if sizer == nil {
		sizer = FileSizer{}
	}
	weekly := datekey.Normalizer{Layout: n.Layout, Granularity: datekey.Week}

	counts := make(map[string]int)
	var candidates []halfCandidate
	for _, rec := range recs {
		t, err := weekly.Parse(rec.Timestamp)
		if err != nil {
			return nil, err
		}
		week, err := weekly.Format(t)
		if err != nil {
			return nil, err
		}
		counts[week]++

		if !e.Before.IsZero() && !t.Before(e.Before) {
			continue
		}
		if rec.Slice != records.SliceLeft && rec.Slice != records.SliceRight {
			continue
		}
		candidates = append(candidates, halfCandidate{rec: rec, week: week})
	}

	l := &HalfLayout{}
	selected := make(map[string][]HalfPlacement)
	for _, c := range candidates {
		limit := (counts[c.week] + e.Factor - 1) / e.Factor
		if len(selected[c.week]) >= limit {
			continue
		}

		size, err := sizer.Size(c.rec.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.Missing = append(l.Missing, c.rec.Path)
				continue
			}
			return nil, err
		}
		if size.X < e.FixedWidth {
			l.Skipped = append(l.Skipped, c.rec.Path)
			continue
		}
		selected[c.week] = append(selected[c.week], HalfPlacement{
			Path: c.rec.Path,
			Week: c.week,
			Crop: e.Crop(c.rec.Slice, size.X, size.Y),
		})
	}

	for w := range selected {
		l.Weeks = append(l.Weeks, w)
	}
	sort.Strings(l.Weeks)

	for _, w := range l.Weeks {
		total := 0
		for _, p := range selected[w] {
			total += p.Crop.Dy()
		}
		if total > l.Height {
			l.Height = total
		}
	}
	if len(l.Weeks) > 0 {
		l.Width = len(l.Weeks)*(e.FixedWidth/2+e.Gap) - e.Gap
	}

	x := 0
	for _, w := range l.Weeks {
		y := l.Height
		for _, p := range selected[w] {
			y -= p.Crop.Dy()
			p.X, p.Y = x, y
			l.Placements = append(l.Placements, p)
		}
		x += e.FixedWidth/2 + e.Gap
	}
	return l, nil
}
