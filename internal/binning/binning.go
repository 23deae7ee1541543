// Package binning groups photographs by cluster and sorts clusters into
// size/quality cells. Big clusters with high quality come first; clusters
// that exceed no quality threshold are dropped.
package binning

import (
	"sort"

	"clustertimeline/internal/records"
)

// DefaultRemapQuality is the quality given to clusters that other clusters
// were merged into. It passes the top quality threshold.
const DefaultRemapQuality = 4.5

// QualityThresholds are scanned in this order.
var QualityThresholds = []float64{4, 3, 2, 1}

// SizeThresholds returns {200, 100, 50, 25} followed by min, which is only
// appended when it is not already in the list.
func SizeThresholds(min int) []int {
	sizes := make([]int, 0, 5)
	for i := 3; i >= 0; i-- {
		sizes = append(sizes, 25*(1<<uint(i)))
	}
	for _, s := range sizes {
		if s == min {
			return sizes
		}
	}
	return append(sizes, min)
}

// Image is one member photograph of a cluster.
type Image struct {
	Path  string
	Date  string
	Slice records.Slice
}

// Cluster accumulates the photographs sharing a (remapped) cluster id.
type Cluster struct {
	ID      int
	Quality float64
	Count   int
	Images  []Image
}

func (c *Cluster) add(img Image) {
	c.Images = append(c.Images, img)
	c.Count++
}

// Collector builds clusters while the table is scanned.
type Collector struct {
	remap        map[int]int
	remapQuality float64

	clusters map[int]*Cluster
	order    []int
}

// NewCollector returns a Collector merging cluster ids through remap. Clusters
// that are a remap target get remapQuality when finalised.
func NewCollector(remap map[int]int, remapQuality float64) *Collector {
	return &Collector{
		remap:        remap,
		remapQuality: remapQuality,
		clusters:     make(map[int]*Cluster),
	}
}

// Add appends rec to its cluster under the given date key. The first record
// of a cluster fixes its quality.
func (c *Collector) Add(rec records.Record, date string) {
	id := rec.ClusterID
	if to, ok := c.remap[id]; ok {
		id = to
	}

	cl, ok := c.clusters[id]
	if !ok {
		cl = &Cluster{ID: id, Quality: rec.Quality * 100}
		c.clusters[id] = cl
		c.order = append(c.order, id)
	}
	cl.add(Image{Path: rec.Path, Date: date, Slice: rec.Slice})
}

// Len returns the number of clusters seen so far.
func (c *Collector) Len() int {
	return len(c.order)
}

// Clusters finalises the collection and returns clusters in order of first
// appearance.
func (c *Collector) Clusters() []*Cluster {
	for _, to := range c.remap {
		if cl, ok := c.clusters[to]; ok {
			cl.Quality = c.remapQuality
		}
	}

	out := make([]*Cluster, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.clusters[id])
	}
	return out
}

// Cell is a (size threshold, quality threshold) pair.
type Cell struct {
	Size    int
	Quality float64
}

// Assign returns the cell of a cluster with the given count and quality: the
// first size threshold count exceeds, then the first quality threshold quality
// exceeds at that size. ok is false when no cell matches.
func Assign(count int, quality float64, sizes []int, qualities []float64) (Cell, bool) {
	for _, s := range sizes {
		if count <= s {
			continue
		}
		for _, q := range qualities {
			if quality > q {
				return Cell{Size: s, Quality: q}, true
			}
		}
		return Cell{}, false
	}
	return Cell{}, false
}

// Bucket holds the clusters assigned to one cell.
type Bucket struct {
	Cell     Cell
	Clusters []*Cluster
}

// Result is the outcome of binning.
type Result struct {
	// Buckets in traversal order, one per cell, including empty ones.
	Buckets []Bucket
	// DateCounts counts placed images per date key.
	DateCounts map[string]int
	// Dropped lists ids of clusters that matched no cell.
	Dropped []int
}

// Bin assigns each cluster to at most one cell and counts the images of
// placed clusters per date. Clusters inside a bucket are sorted by
// descending count, ties kept in input order.
func Bin(clusters []*Cluster, minSize int) *Result {
	sizes := SizeThresholds(minSize)

	res := &Result{DateCounts: make(map[string]int)}
	index := make(map[Cell]int)
	for _, s := range sizes {
		for _, q := range QualityThresholds {
			index[Cell{s, q}] = len(res.Buckets)
			res.Buckets = append(res.Buckets, Bucket{Cell: Cell{s, q}})
		}
	}

	for _, cl := range clusters {
		cell, ok := Assign(cl.Count, cl.Quality, sizes, QualityThresholds)
		if !ok {
			res.Dropped = append(res.Dropped, cl.ID)
			continue
		}
		b := &res.Buckets[index[cell]]
		b.Clusters = append(b.Clusters, cl)
		for _, img := range cl.Images {
			res.DateCounts[img.Date]++
		}
	}

	for i := range res.Buckets {
		cs := res.Buckets[i].Clusters
		sort.SliceStable(cs, func(a, b int) bool { return cs[a].Count > cs[b].Count })
	}
	return res
}

// Dates returns the date keys in ascending order.
func (r *Result) Dates() []string {
	dates := make([]string, 0, len(r.DateCounts))
	for d := range r.DateCounts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// MaxDateCount returns the largest per-date image count.
func (r *Result) MaxDateCount() int {
	max := 0
	for _, n := range r.DateCounts {
		if n > max {
			max = n
		}
	}
	return max
}

// Placed returns the placed clusters in traversal order.
func (r *Result) Placed() []*Cluster {
	var out []*Cluster
	for _, b := range r.Buckets {
		out = append(out, b.Clusters...)
	}
	return out
}
