package render

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"clustertimeline/internal/layout"
)

// Bitmap composites thumbnails into raster canvases.
type Bitmap struct {
	Loader Loader
	// Background fills the full canvas; nil leaves it transparent.
	Background color.Color
	// OnSkip is called for every image that could not be found.
	OnSkip func(path string, err error)
}

// ClusterFunc receives the canvas of one cluster once all its images are drawn.
type ClusterFunc func(clusterID int, canvas *image.NRGBA) error

// Render pastes every placement on a full canvas. When each is not nil it
// is also called with a transparent canvas of the same size per cluster,
// holding only that cluster's images.
func (b Bitmap) Render(l *layout.Layout, each ClusterFunc) (*image.NRGBA, error) {
	bounds := image.Rect(0, 0, l.Width, l.Height)
	total := newCanvas(bounds, b.Background)

	for _, id := range l.Clusters() {
		var current *image.NRGBA
		if each != nil {
			current = image.NewNRGBA(bounds)
		}

		for _, p := range l.ByCluster(id) {
			img, err := b.load(p.Path)
			if err != nil {
				if errors.Is(err, ErrMissingFile) {
					continue
				}
				return nil, err
			}

			thumb := Square(img, p.Size)
			r := image.Rect(p.X, p.Y, p.X+p.Size, p.Y+p.Size)
			draw.Draw(total, r, thumb, thumb.Bounds().Min, draw.Src)
			if current != nil {
				draw.Draw(current, r, thumb, thumb.Bounds().Min, draw.Src)
			}
		}

		if each != nil {
			if err := each(id, current); err != nil {
				return nil, err
			}
		}
	}
	return total, nil
}

// RenderHalves pastes the crop of every placement of a weekly half-photo
// layout on an opaque canvas (black unless Background is set).
func (b Bitmap) RenderHalves(l *layout.HalfLayout) (*image.NRGBA, error) {
	bg := b.Background
	if bg == nil {
		bg = color.Black
	}
	canvas := newCanvas(image.Rect(0, 0, l.Width, l.Height), bg)

	for _, p := range l.Placements {
		img, err := b.load(p.Path)
		if err != nil {
			if errors.Is(err, ErrMissingFile) {
				continue
			}
			return nil, err
		}

		cropped := imaging.Crop(img, p.Crop.Add(img.Bounds().Min))
		size := cropped.Bounds().Size()
		r := image.Rect(p.X, p.Y, p.X+size.X, p.Y+size.Y)
		draw.Draw(canvas, r, cropped, cropped.Bounds().Min, draw.Src)
	}
	return canvas, nil
}

func (b Bitmap) load(path string) (image.Image, error) {
	loader := b.Loader
	if loader == nil {
		loader = FileLoader{}
	}
	img, err := loader.Load(path)
	if err != nil && errors.Is(err, ErrMissingFile) && b.OnSkip != nil {
		b.OnSkip(path, err)
	}
	return img, err
}

func newCanvas(bounds image.Rectangle, bg color.Color) *image.NRGBA {
	canvas := image.NewNRGBA(bounds)
	if bg != nil {
		draw.Draw(canvas, bounds, image.NewUniform(bg), image.Point{}, draw.Src)
	}
	return canvas
}
