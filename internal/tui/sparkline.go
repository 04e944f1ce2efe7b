package tui

import (
	"strings"

	"marketdeck/internal/domain"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the close series as a fixed-width block-character strip.
// Series longer than width are downsampled, shorter ones render as-is.
func sparkline(points []domain.PricePoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	if len(closes) > width {
		closes = downsample(closes, width)
	}

	min, max := closes[0], closes[0]
	for _, c := range closes {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}

	var b strings.Builder
	span := max - min
	for _, c := range closes {
		idx := 0
		if span > 0 {
			idx = int((c - min) / span * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// downsample picks evenly spaced samples so the strip covers the whole series.
func downsample(values []float64, n int) []float64 {
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = values[int(float64(i)*step+0.5)]
	}
	return out
}
