package dedup

import (
	"image"
	"image/color"
	"testing"
)

func gradient(w, h int, f func(x int) uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := f(x)
			img.Set(x, y, color.RGBA{v, v, v, 0xFF})
		}
	}
	return img
}

func TestFilter_CheckAndRegister(t *testing.T) {
	f := NewFilter()

	rising := gradient(64, 64, func(x int) uint8 { return uint8(x * 2) })
	falling := gradient(64, 64, func(x int) uint8 { return uint8(255 - x*2) })

	if f.CheckAndRegister(rising) {
		t.Error("first image reported as duplicate")
	}
	if !f.CheckAndRegister(rising) {
		t.Error("identical image not reported as duplicate")
	}
	if f.CheckAndRegister(falling) {
		t.Error("different image reported as duplicate")
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, expected 2", f.Len())
	}
}

func TestFilter_DuplicateNotAdded(t *testing.T) {
	f := NewFilter()
	f.CheckHash(42)
	f.CheckHash(42)
	f.CheckHash(42)
	if f.Len() != 1 {
		t.Errorf("Len() = %d, expected 1", f.Len())
	}
}

func TestHash_ContrastInvariant(t *testing.T) {
	dark := gradient(64, 32, func(x int) uint8 { return uint8(x * 2) })
	bright := gradient(64, 32, func(x int) uint8 { return uint8(x*2 + 100) })

	if Hash(dark) != Hash(bright) {
		t.Errorf("brightness shift changed hash: %016x != %016x", Hash(dark), Hash(bright))
	}
}

func TestHash_DifferentOrientation(t *testing.T) {
	rising := gradient(64, 64, func(x int) uint8 { return uint8(x * 3) })
	falling := gradient(64, 64, func(x int) uint8 { return uint8(255 - x*3) })

	if Hash(rising) == Hash(falling) {
		t.Error("mirrored gradients produced the same hash")
	}
}

func TestEqualize(t *testing.T) {
	tests := []struct {
		input    []uint8
		expected []uint8
	}{
		{[]uint8{10, 20, 20, 30}, []uint8{0, 85, 85, 255}},
		{[]uint8{7, 7, 7}, []uint8{0, 0, 0}},
		{[]uint8{200, 100}, []uint8{255, 0}},
		{nil, []uint8{}},
	}

	for _, tt := range tests {
		got := Equalize(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("Equalize(%v) = %v, expected %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("Equalize(%v) = %v, expected %v", tt.input, got, tt.expected)
				break
			}
		}
	}
}

func TestHash_EmptyImage(t *testing.T) {
	for _, img := range []image.Image{
		image.NewGray(image.Rect(0, 0, 0, 0)),
		image.NewRGBA(image.Rect(5, 5, 5, 40)),
	} {
		if h := Hash(img); h != 0 {
			t.Errorf("Hash of %v image = %016x, expected 0", img.Bounds(), h)
		}
	}

	f := NewFilter()
	if f.CheckAndRegister(image.NewGray(image.Rect(0, 0, 0, 0))) {
		t.Error("first empty image reported as duplicate")
	}
}
