// Package dedup rejects photographs whose normalised difference hash has
// already been seen during the run.
package dedup

import (
	"image"
	"sort"

	"github.com/disintegration/gift"
)

// HashSize is the side of the grayscale thumbnail the hash is computed on.
const HashSize = 8

// Filter is a growing set of hashes. It is not safe for concurrent use.
type Filter struct {
	seen map[uint64]struct{}
}

// NewFilter returns an empty Filter.
func NewFilter() *Filter {
	return &Filter{seen: make(map[uint64]struct{})}
}

// CheckAndRegister reports whether img is a duplicate of an image seen
// before. New hashes are added to the set; duplicates are not.
func (f *Filter) CheckAndRegister(img image.Image) bool {
	return f.CheckHash(Hash(img))
}

// CheckHash is CheckAndRegister for a precomputed hash.
func (f *Filter) CheckHash(h uint64) bool {
	if _, ok := f.seen[h]; ok {
		return true
	}
	f.seen[h] = struct{}{}
	return false
}

// Len returns the number of distinct hashes registered.
func (f *Filter) Len() int {
	return len(f.seen)
}

// Hash computes the difference hash of the contrast-equalised 8x8 grayscale
// thumbnail of img. Bit i*8+x is set when pixel (x, i) is brighter than its
// right neighbour, the last column comparing against the first. An empty
// image hashes to 0.
func Hash(img image.Image) uint64 {
	if img.Bounds().Empty() {
		return 0
	}
	values := Equalize(thumbnail(img))
	if len(values) != HashSize*HashSize {
		return 0
	}

	var h uint64
	for y := 0; y < HashSize; y++ {
		for x := 0; x < HashSize; x++ {
			left := values[y*HashSize+x]
			right := values[y*HashSize+(x+1)%HashSize]
			if left > right {
				h |= 1 << uint(y*HashSize+x)
			}
		}
	}
	return h
}

func thumbnail(img image.Image) []uint8 {
	g := gift.New(
		gift.Grayscale(),
		gift.Resize(HashSize, HashSize, gift.LanczosResampling),
	)
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)

	values := make([]uint8, 0, HashSize*HashSize)
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			values = append(values, dst.GrayAt(x, y).Y)
		}
	}
	return values
}

// Equalize replaces every value by its percentile rank within values,
// rescaled to [0,255]. A uniform input maps to all zeroes.
func Equalize(values []uint8) []uint8 {
	n := len(values)
	out := make([]uint8, n)
	if n == 0 {
		return out
	}

	sorted := make([]int, n)
	for i, v := range values {
		sorted[i] = int(v)
	}
	sort.Ints(sorted)

	// rank(v) = number of values strictly below v
	top := sort.SearchInts(sorted, sorted[n-1])
	if top == 0 {
		return out
	}
	for i, v := range values {
		below := sort.SearchInts(sorted, int(v))
		out[i] = uint8((below*255 + top/2) / top)
	}
	return out
}
