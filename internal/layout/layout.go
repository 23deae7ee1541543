// Package layout places binned photographs on a timeline canvas: one column
// per date bucket, images stacked bottom-up.
package layout

import (
	"os"

	"clustertimeline/internal/binning"
	"clustertimeline/internal/records"
)

// Placement is the position of one photograph on the canvas.
type Placement struct {
	ClusterID int
	Path      string
	Date      string
	Slice     records.Slice
	Column    int
	X, Y      int
	Size      int
}

// Layout is the result of placing a binning result.
type Layout struct {
	Width, Height int
	CellSize      int
	Dates         []string
	Placements    []Placement
	// Missing lists image paths that were skipped because the file is absent.
	Missing []string
}

// Clusters returns cluster ids in placement order, each once.
func (l *Layout) Clusters() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, p := range l.Placements {
		if !seen[p.ClusterID] {
			seen[p.ClusterID] = true
			ids = append(ids, p.ClusterID)
		}
	}
	return ids
}

// ByCluster returns the placements of one cluster.
func (l *Layout) ByCluster(id int) []Placement {
	var out []Placement
	for _, p := range l.Placements {
		if p.ClusterID == id {
			out = append(out, p)
		}
	}
	return out
}

// Engine computes layouts.
type Engine struct {
	CellSize int
	// Exists reports whether an image file is present. Nil means FileExists.
	Exists func(path string) bool
}

// FileExists reports whether path can be stat'ed.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Layout walks buckets, clusters and images in order and stacks each image
// on top of its date column. Missing images do not take a cell.
func (e Engine) Layout(res *binning.Result) *Layout {
	exists := e.Exists
	if exists == nil {
		exists = FileExists
	}

	dates := res.Dates()
	columns := make(map[string]int, len(dates))
	for i, d := range dates {
		columns[d] = i
	}

	l := &Layout{
		Width:    len(dates) * e.CellSize,
		Height:   res.MaxDateCount() * e.CellSize,
		CellSize: e.CellSize,
		Dates:    dates,
	}

	offsets := make(map[string]int, len(dates))
	for _, d := range dates {
		offsets[d] = l.Height
	}

	for _, cl := range res.Placed() {
		for _, img := range cl.Images {
			if !exists(img.Path) {
				l.Missing = append(l.Missing, img.Path)
				continue
			}
			y := offsets[img.Date] - e.CellSize
			l.Placements = append(l.Placements, Placement{
				ClusterID: cl.ID,
				Path:      img.Path,
				Date:      img.Date,
				Slice:     img.Slice,
				Column:    columns[img.Date],
				X:         columns[img.Date] * e.CellSize,
				Y:         y,
				Size:      e.CellSize,
			})
			offsets[img.Date] = y
		}
	}
	return l
}
