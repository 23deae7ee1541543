package render

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"clustertimeline/internal/layout"
)

// Zoom outlines a region of the canvas over one cluster.
type Zoom struct {
	Rect  image.Rectangle
	Color string
	Width int
}

// Lines returns the four segments of the outline as x1, y1, x2, y2.
func (z Zoom) Lines() [4][4]int {
	r := z.Rect
	return [4][4]int{
		{r.Min.X, r.Min.Y, r.Max.X, r.Min.Y}, // top
		{r.Max.X, r.Min.Y, r.Max.X, r.Max.Y}, // right
		{r.Max.X, r.Max.Y, r.Min.X, r.Max.Y}, // bottom
		{r.Min.X, r.Max.Y, r.Min.X, r.Min.Y}, // left
	}
}

// Vector writes layouts as SVG with every thumbnail embedded as a base64 PNG.
type Vector struct {
	Loader     Loader
	Zooms      map[int]Zoom
	Background string
	OnSkip     func(path string, err error)
}

// Write emits the SVG document for l. Each cluster is a group with id
// cluster-<id>; zoomed clusters get their outline after their images.
func (v Vector) Write(w io.Writer, l *layout.Layout) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">
`, l.Width, l.Height, l.Width, l.Height)
	if v.Background != "" {
		fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", escapeXML(v.Background))
	}

	for _, id := range l.Clusters() {
		fmt.Fprintf(bw, `<g id="cluster-%d" data-cluster="%d">`+"\n", id, id)

		for _, p := range l.ByCluster(id) {
			data, err := v.thumbnail(p.Path, p.Size)
			if err != nil {
				if errors.Is(err, ErrMissingFile) {
					if v.OnSkip != nil {
						v.OnSkip(p.Path, err)
					}
					continue
				}
				return err
			}
			fmt.Fprintf(bw, `<image x="%d" y="%d" width="%d" height="%d" data-date="%s" xlink:href="data:image/png;base64,%s"/>`+"\n",
				p.X, p.Y, p.Size, p.Size, escapeXML(p.Date), data)
		}

		if z, ok := v.Zooms[id]; ok {
			writeZoom(bw, z)
		}
		bw.WriteString("</g>\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func (v Vector) thumbnail(path string, size int) (string, error) {
	loader := v.Loader
	if loader == nil {
		loader = FileLoader{}
	}
	img, err := loader.Load(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Square(img, size), imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail of %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeZoom(w io.Writer, z Zoom) {
	color := z.Color
	if color == "" {
		color = "#ff0000"
	}
	width := z.Width
	if width <= 0 {
		width = 1
	}
	for _, s := range z.Lines() {
		fmt.Fprintf(w, `<line class="zoom" x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="%d"/>`+"\n",
			s[0], s[1], s[2], s[3], escapeXML(color), width)
	}
}

// escapeXML escapes special XML characters in a string to ensure valid SVG output.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
