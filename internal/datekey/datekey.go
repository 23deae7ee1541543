// Package datekey turns input timestamps into the coarse bucket keys used as
// timeline columns.
package datekey

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLayout is the timestamp layout of the utc_time column.
const DefaultLayout = "2006-01-02T15:04:05"

// Granularity selects the width of a timeline column.
type Granularity string

const (
	Day  Granularity = "day"
	Week Granularity = "week"
)

// ErrUnsupportedGranularity is returned for anything other than day or week.
var ErrUnsupportedGranularity = errors.New("unsupported granularity")

// ParseGranularity validates a granularity name (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrUnsupportedGranularity, s, Day, Week)
}

// ParseError reports a timestamp that does not match the input layout.
type ParseError struct {
	Value  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse timestamp '%s' with layout %s: %v", e.Value, e.Layout, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Normalizer maps timestamps to bucket keys.
type Normalizer struct {
	Layout      string
	Granularity Granularity
}

// New returns a Normalizer, falling back to DefaultLayout for an empty layout.
func New(layout string, g Granularity) (Normalizer, error) {
	if g != Day && g != Week {
		return Normalizer{}, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, g)
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return Normalizer{Layout: layout, Granularity: g}, nil
}

// Key parses value and formats it as YYYY-MM-DD (day) or YYYY-WW (ISO week).
func (n Normalizer) Key(value string) (string, error) {
	t, err := n.Parse(value)
	if err != nil {
		return "", err
	}
	return n.Format(t)
}

// Parse parses value with the normalizer layout.
func (n Normalizer) Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(n.Layout, value)
	if err != nil {
		return time.Time{}, &ParseError{Value: value, Layout: n.Layout, Err: err}
	}
	return t, nil
}

// Format renders t as a bucket key.
func (n Normalizer) Format(t time.Time) (string, error) {
	switch n.Granularity {
	case Day:
		return t.Format("2006-01-02"), nil
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-%02d", year, week), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGranularity, n.Granularity)
}
