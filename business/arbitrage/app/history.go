package app

import (
	"math"
	"sync"
)

// DefaultHistorySize is how many spread samples are kept per symbol.
const DefaultHistorySize = 20

// SpreadHistory keeps the most recent spread-percent samples per symbol.
type SpreadHistory struct {
	mu      sync.RWMutex
	size    int
	samples map[string][]float64
}

// NewSpreadHistory creates a history keeping size samples per symbol.
func NewSpreadHistory(size int) *SpreadHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &SpreadHistory{size: size, samples: make(map[string][]float64)}
}

// Record appends a sample, evicting the oldest beyond the window.
func (h *SpreadHistory) Record(symbol string, spreadPercent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[symbol], spreadPercent)
	if len(s) > h.size {
		s = s[len(s)-h.size:]
	}
	h.samples[symbol] = s
}

// Len returns the number of samples held for symbol.
func (h *SpreadHistory) Len(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples[symbol])
}

// Stability maps the coefficient of variation of the samples to a
// confidence multiplier. Fewer than two samples count as stable.
func (h *SpreadHistory) Stability(symbol string) float64 {
	h.mu.RLock()
	s := h.samples[symbol]
	h.mu.RUnlock()

	if len(s) < 2 {
		return 1.0
	}

	cv := coefficientOfVariation(s)
	switch {
	case cv < 0.1:
		return 1.0
	case cv < 0.3:
		return 0.9
	case cv < 0.5:
		return 0.7
	default:
		return 0.5
	}
}

func coefficientOfVariation(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v
	}
	mean := sum / float64(len(s))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, v := range s {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq/float64(len(s))) / math.Abs(mean)
}
