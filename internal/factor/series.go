package factor

import (
	"math"
	"time"

	"golang-backtest/internal/dto"
)

// windowEndingAt returns the prefix of bars with timestamp <= at. Bars are
// assumed ascending; this is the structural no-lookahead guard.
func windowEndingAt(bars []dto.PriceBar, at time.Time) []dto.PriceBar {
	n := len(bars)
	for n > 0 && bars[n-1].Timestamp.After(at) {
		n--
	}
	return bars[:n]
}

func closes(bars []dto.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// smaSeries returns the simple moving average aligned to the input, with NaN
// during warmup.
func smaSeries(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
		}
		out[i] = sum / float64(p)
	}
	return out
}

// emaSeries returns the exponential moving average (smoothing 2/(p+1)) seeded
// with the SMA of the first p points, NaN during warmup.
func emaSeries(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	if len(x) < p {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / float64(p+1)
	var seed float64
	for i := 0; i < p; i++ {
		seed += x[i]
		if i < p-1 {
			out[i] = math.NaN()
		}
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
