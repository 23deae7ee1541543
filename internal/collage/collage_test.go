package collage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clustertimeline/internal/config"
	"clustertimeline/internal/datekey"
	"clustertimeline/internal/logger"
)

func writeNoise(t *testing.T, path string, w, h int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.NRGBA{v, v, v, 0xFF})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func decodeSize(t *testing.T, path string) image.Point {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return image.Pt(cfg.Width, cfg.Height)
}

// fixture writes six photographs of cluster 1 over two days plus one
// photograph of cluster 2, and returns the table path.
func fixture(t *testing.T, dir string, extra ...string) string {
	t.Helper()
	var rows []string
	rows = append(rows, "utc_time,cluster_id,quality,absolute_path,image_slice")
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("img%d.png", i)
		writeNoise(t, filepath.Join(dir, name), 32, 32, int64(i+1))
		day := 1 + i%2
		rows = append(rows, fmt.Sprintf("2020-01-0%dT10:00:00,1,0.5,%s,none", day, name))
	}
	writeNoise(t, filepath.Join(dir, "lonely.png"), 32, 32, 99)
	rows = append(rows, "2020-01-01T12:00:00,2,0.9,lonely.png,none")
	rows = append(rows, extra...)

	source := filepath.Join(dir, "clusters.csv")
	writeFile(t, source, strings.Join(rows, "\n")+"\n")
	return source
}

func newJob(dir string, warnings io.Writer) *Job {
	cfg := config.Default()
	cfg.Input.ImagesDir = dir
	cfg.Timeline.CellSize = 4
	cfg.Timeline.MinCluster = 5
	return &Job{Config: cfg, Log: logger.NewWithWriters(io.Discard, warnings, false)}
}

func TestJob_Collect(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir)

	res, stats, err := newJob(dir, io.Discard).Collect(source)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.Rows != 7 || stats.Clusters != 2 || stats.Duplicates != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	placed := res.Placed()
	if len(placed) != 1 || placed[0].ID != 1 || placed[0].Count != 6 {
		t.Fatalf("expected only cluster 1 with 6 images to be placed, got %+v", placed)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != 2 {
		t.Errorf("expected cluster 2 to be dropped, got %v", res.Dropped)
	}
	if res.DateCounts["2020-01-01"] != 3 || res.DateCounts["2020-01-02"] != 3 {
		t.Errorf("unexpected date counts %v", res.DateCounts)
	}
	if got := placed[0].Images[0].Path; got != filepath.Join(dir, "img0.png") {
		t.Errorf("relative path not joined to images dir: %s", got)
	}
}

func TestJob_CollectWeekly(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir)

	job := newJob(dir, io.Discard)
	job.Config.Timeline.Granularity = string(datekey.Week)
	res, _, err := job.Collect(source)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(res.DateCounts) != 1 || res.DateCounts["2020-01"] != 6 {
		t.Errorf("expected all images in week 2020-01, got %v", res.DateCounts)
	}
}

func TestJob_CollectDeduplicate(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir, "2020-01-02T11:00:00,1,0.5,copy.png,none")
	data, err := os.ReadFile(filepath.Join(dir, "img0.png"))
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "copy.png"), string(data))

	job := newJob(dir, io.Discard)
	res, _, err := job.Collect(source)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := res.Placed()[0].Count; got != 7 {
		t.Errorf("without deduplication expected 7 images, got %d", got)
	}

	job.Config.Timeline.Deduplicate = true
	res, stats, err := job.Collect(source)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if got := res.Placed()[0].Count; got != 6 {
		t.Errorf("with deduplication expected 6 images, got %d", got)
	}
}

func TestJob_CollectBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bad.csv")
	writeFile(t, source, "utc_time,cluster_id,quality,absolute_path\n"+
		"2020-01-01T10:00:00,1,0.5,a.png\n"+
		"yesterday,1,0.5,b.png\n")

	_, _, err := newJob(dir, io.Discard).Collect(source)
	if err == nil {
		t.Fatal("expected an error for an unparsable timestamp")
	}
	var perr *datekey.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected a ParseError, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should name the row: %v", err)
	}
}

func TestJob_Timeline(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir, "2020-01-02T10:30:00,1,0.5,gone.png,none")
	out := filepath.Join(dir, "out")

	var warnings bytes.Buffer
	written, err := newJob(dir, &warnings).Timeline(source, out)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}

	expected := []string{
		filepath.Join(out, "1_moreThan5_dayColumns_4Pixels.png"),
		filepath.Join(out, "all_moreThan5_dayColumns_4Pixels.png"),
	}
	if len(written) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, written)
	}
	for i := range expected {
		if written[i] != expected[i] {
			t.Errorf("written[%d] = %s, expected %s", i, written[i], expected[i])
		}
		// The missing file is counted for its day but takes no cell.
		if size := decodeSize(t, expected[i]); size != image.Pt(8, 16) {
			t.Errorf("%s is %v", expected[i], size)
		}
	}
	if !strings.Contains(warnings.String(), "gone.png") {
		t.Errorf("missing image not reported: %q", warnings.String())
	}
}

func TestJob_TimelineWithoutPerCluster(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir)
	out := filepath.Join(dir, "out")

	job := newJob(dir, io.Discard)
	job.Config.Timeline.PerCluster = false
	written, err := job.Timeline(source, out)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "all_moreThan5_dayColumns_4Pixels.png" {
		t.Errorf("expected only the full canvas, got %v", written)
	}
	if size := decodeSize(t, written[0]); size != image.Pt(8, 12) {
		t.Errorf("canvas is %v, expected 8x12", size)
	}
}

func TestJob_NothingPlaced(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir)

	job := newJob(dir, io.Discard)
	job.Config.Timeline.MinCluster = 10
	_, err := job.Timeline(source, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrNothingPlaced) {
		t.Errorf("expected ErrNothingPlaced, got %v", err)
	}
}

func TestJob_SVG(t *testing.T) {
	dir := t.TempDir()
	source := fixture(t, dir)
	out := filepath.Join(dir, "svg", "timeline.svg")

	job := newJob(dir, io.Discard)
	job.Config.Clusters.Zooms[1] = config.Zoom{X: 0, Y: 4, Width: 8, Height: 8}
	if err := job.SVG(source, out); err != nil {
		t.Fatalf("SVG failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	if !strings.Contains(svg, `width="8" height="12"`) {
		t.Errorf("unexpected canvas size in %s", svg[:120])
	}
	if !strings.Contains(svg, `<g id="cluster-1"`) {
		t.Error("cluster group missing")
	}
	if n := strings.Count(svg, "<image "); n != 6 {
		t.Errorf("expected 6 images, got %d", n)
	}
	if n := strings.Count(svg, `class="zoom"`); n != 4 {
		t.Errorf("expected 4 zoom lines, got %d", n)
	}
	if !strings.Contains(svg, `stroke="#ff0000" stroke-width="4"`) {
		t.Error("zoom lines should use the default colour and width")
	}
}

func TestJob_Halves(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.png", "b.png", "c.png", "narrow.png"} {
		w := 40
		if name == "narrow.png" {
			w = 30
		}
		writeNoise(t, filepath.Join(dir, name), w, 20, int64(i))
	}
	source := filepath.Join(dir, "halves.csv")
	writeFile(t, source, strings.Join([]string{
		"formatted_date,absolute_path,image_slice",
		"2020-01-06,a.png,left",
		"2020-01-07,b.png,right",
		"2020-01-08,narrow.png,left",
		"2020-01-13,c.png,left",
		"2020-01-14,a.png,none",
	}, "\n")+"\n")

	job := newJob(dir, io.Discard)
	job.Config.Halves.FixedWidth = 40
	job.Config.Halves.FixedHeight = 10
	job.Config.Halves.Gap = 5
	job.Config.Halves.Before = ""

	out := filepath.Join(dir, "halves.jpg")
	if err := job.Halves(source, 1, out); err != nil {
		t.Fatalf("Halves failed: %v", err)
	}
	// Two weeks of 20 pixel wide crops, the first week stacking two crops.
	if size := decodeSize(t, out); size != image.Pt(45, 20) {
		t.Errorf("halves canvas is %v, expected 45x20", size)
	}

	if err := job.Halves(source, 0, out); err == nil {
		t.Error("expected an error for a zero factor")
	}
}

// orientedJPEG encodes a white w x h JPEG carrying an EXIF orientation tag.
func orientedJPEG(t *testing.T, path string, w, h int, orientation byte) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}

	// Big-endian TIFF header and one IFD entry: Orientation, SHORT, 1 value.
	tiff := []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	n := len(payload) + 2
	segment := append([]byte{0xFF, 0xE1, byte(n >> 8), byte(n)}, payload...)

	data := buf.Bytes()
	out := append(append(append([]byte{}, data[:2]...), segment...), data[2:]...)
	if err := os.WriteFile(path, out, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestJob_HalvesOrientation(t *testing.T) {
	dir := t.TempDir()
	// Stored 20x40, displayed 40x20 once rotated.
	orientedJPEG(t, filepath.Join(dir, "rotated.jpg"), 20, 40, 6)
	source := filepath.Join(dir, "halves.csv")
	writeFile(t, source, "formatted_date,absolute_path,image_slice\n2020-01-06,rotated.jpg,right\n")

	job := newJob(dir, io.Discard)
	job.Config.Halves.FixedWidth = 40
	job.Config.Halves.FixedHeight = 10
	job.Config.Halves.Gap = 0
	job.Config.Halves.Before = ""
	job.Config.Halves.JPEGQuality = 95

	out := filepath.Join(dir, "halves.jpg")
	if err := job.Halves(source, 1, out); err != nil {
		t.Fatalf("Halves failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	canvas, err := jpeg.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := canvas.Bounds().Size(); got != image.Pt(20, 10) {
		t.Fatalf("canvas is %v, expected 20x10", got)
	}
	for _, pt := range []image.Point{{2, 2}, {10, 5}, {17, 8}} {
		r, g, b, _ := canvas.At(pt.X, pt.Y).RGBA()
		if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
			t.Errorf("pixel %v = (%d, %d, %d), expected the white photograph", pt, r>>8, g>>8, b>>8)
		}
	}
}
