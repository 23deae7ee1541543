// Package render draws timeline layouts as raster collages or SVG documents.
package render

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// ErrMissingFile is returned by loaders for image files that do not exist.
var ErrMissingFile = errors.New("image file missing")

// Loader decodes image files.
type Loader interface {
	Load(path string) (image.Image, error)
}

// FileLoader decodes files from disk with EXIF orientation applied.
type FileLoader struct{}

// Load opens and decodes path.
func (FileLoader) Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Square resizes img to a size x size thumbnail, ignoring the aspect ratio.
func Square(img image.Image, size int) image.Image {
	return resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
}

// Save encodes img to path, choosing PNG or JPEG from the extension.
// jpegQuality is only used for JPEG output.
func Save(path string, img image.Image, jpegQuality int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if jpegQuality < 1 {
		jpegQuality = 1
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
