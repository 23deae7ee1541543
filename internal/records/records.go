// Package records reads the delimited table of clustered photographs.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Slice tells which half of a photograph a row refers to.
type Slice string

const (
	SliceNone  Slice = "none"
	SliceLeft  Slice = "left"
	SliceRight Slice = "right"
)

// ParseSlice accepts left, right, none or an empty cell (none).
func ParseSlice(s string) (Slice, error) {
	switch v := Slice(strings.ToLower(strings.TrimSpace(s))); v {
	case "", SliceNone:
		return SliceNone, nil
	case SliceLeft, SliceRight:
		return v, nil
	}
	return "", fmt.Errorf("invalid image slice %q", s)
}

// Record is one row of the input table.
type Record struct {
	Timestamp string
	ClusterID int
	Quality   float64
	Path      string
	Slice     Slice
}

// Columns names the header columns a table is read with. Empty names are
// optional columns that are not read.
type Columns struct {
	Timestamp string `yaml:"timestamp"`
	ClusterID string `yaml:"cluster_id"`
	Quality   string `yaml:"quality"`
	Path      string `yaml:"path"`
	Slice     string `yaml:"slice"`
}

// DefaultColumns matches the clustering export.
func DefaultColumns() Columns {
	return Columns{
		Timestamp: "utc_time",
		ClusterID: "cluster_id",
		Quality:   "quality",
		Path:      "absolute_path",
		Slice:     "image_slice",
	}
}

// ErrMissingColumn is returned when a configured column is absent from the header.
var ErrMissingColumn = errors.New("column not found")

// Reader reads records one row at a time.
type Reader struct {
	csv    *csv.Reader
	prefix string
	row    int

	timestamp, cluster, quality, path, slice int
}

// NewReader reads the header from r and resolves column positions. Cluster
// and quality columns are only required when named in cols. Relative image
// paths are joined to prefix.
func NewReader(r io.Reader, cols Columns, prefix string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	// Create case-insensitive column mapping
	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}

	lookup := func(name string, required bool) (int, error) {
		if name == "" {
			if required {
				return -1, fmt.Errorf("%w: no column configured", ErrMissingColumn)
			}
			return -1, nil
		}
		idx, ok := columnMap[strings.ToLower(name)]
		if !ok {
			if required {
				return -1, fmt.Errorf("%w: '%s' not in CSV. Available columns: %v", ErrMissingColumn, name, header)
			}
			return -1, nil
		}
		return idx, nil
	}

	rd := &Reader{csv: cr, prefix: prefix}
	if rd.timestamp, err = lookup(cols.Timestamp, true); err != nil {
		return nil, err
	}
	if rd.path, err = lookup(cols.Path, true); err != nil {
		return nil, err
	}
	if rd.cluster, err = lookup(cols.ClusterID, cols.ClusterID != ""); err != nil {
		return nil, err
	}
	if rd.quality, err = lookup(cols.Quality, cols.Quality != ""); err != nil {
		return nil, err
	}
	if rd.slice, err = lookup(cols.Slice, false); err != nil {
		return nil, err
	}
	return rd, nil
}

// Next returns the next record, or io.EOF after the last row.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("error reading CSV: %w", err)
	}
	r.row++

	rec, err := r.parse(fields)
	if err != nil {
		return Record{}, fmt.Errorf("row %d: %w", r.row, err)
	}
	return rec, nil
}

func (r *Reader) parse(fields []string) (Record, error) {
	get := func(idx int) (string, error) {
		if idx < 0 {
			return "", nil
		}
		if idx >= len(fields) {
			return "", fmt.Errorf("column index %d out of range", idx)
		}
		return strings.TrimSpace(fields[idx]), nil
	}

	var rec Record
	var err error

	if rec.Timestamp, err = get(r.timestamp); err != nil {
		return Record{}, err
	}
	if rec.Path, err = get(r.path); err != nil {
		return Record{}, err
	}
	if rec.Path != "" && r.prefix != "" && !filepath.IsAbs(rec.Path) {
		rec.Path = filepath.Join(r.prefix, rec.Path)
	}

	if s, err := get(r.cluster); err != nil {
		return Record{}, err
	} else if r.cluster >= 0 {
		if rec.ClusterID, err = strconv.Atoi(s); err != nil {
			return Record{}, fmt.Errorf("invalid cluster id %q: %w", s, err)
		}
	}

	if s, err := get(r.quality); err != nil {
		return Record{}, err
	} else if r.quality >= 0 {
		if rec.Quality, err = strconv.ParseFloat(s, 64); err != nil {
			return Record{}, fmt.Errorf("invalid quality %q: %w", s, err)
		}
	}

	s, err := get(r.slice)
	if err != nil {
		return Record{}, err
	}
	if rec.Slice, err = ParseSlice(s); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Read loads every record of the table at path.
func Read(path string, cols Columns, prefix string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer file.Close()

	rd, err := NewReader(file, cols, prefix)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Count returns the number of data rows of the table at path.
func Count(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	n := -1 // header
	for {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("error reading CSV: %w", err)
		}
		n++
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
