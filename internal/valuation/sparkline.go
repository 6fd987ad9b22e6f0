package valuation

import (
	"errors"
	"slices"
)

// ErrTooFewPoints is returned when a series cannot be drawn as a line.
var ErrTooFewPoints = errors.New("sparkline needs at least 2 points")

// Trend is the coarse direction of a series, decided by its first and last sample only.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Point is a sparkline vertex in drawing coordinates (y grows downward).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sparkline is a normalized line ready for rendering.
type Sparkline struct {
	Points []Point `json:"points"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Trend  Trend   `json:"trend"`
}

// NewSparkline scales series into a width x height box. The observed [min, max]
// maps to [height, 0]; a constant series is drawn flat along the bottom edge.
func NewSparkline(series []float64, width, height float64) (Sparkline, error) {
	if len(series) < 2 {
		return Sparkline{}, ErrTooFewPoints
	}

	low, high := slices.Min(series), slices.Max(series)
	span := high - low
	if span == 0 {
		span = 1
	}

	last := float64(len(series) - 1)
	points := make([]Point, len(series))
	for i, v := range series {
		points[i] = Point{
			X: float64(i) / last * width,
			Y: height - (v-low)/span*height,
		}
	}

	return Sparkline{
		Points: points,
		Min:    low,
		Max:    high,
		Trend:  TrendOf(series),
	}, nil
}

// TrendOf compares the last sample with the first. Non-decreasing is up.
func TrendOf(series []float64) Trend {
	if len(series) == 0 || series[len(series)-1] >= series[0] {
		return TrendUp
	}
	return TrendDown
}

// Tail returns the last n samples of series, or all of it when shorter.
func Tail(series []float64, n int) []float64 {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}
