// Package meter turns raw render blocks into coarse band-energy levels for
// display. It works in the time domain: each block is split into bands
// positionally and reduced to RMS energy, which is cheap enough to run on the
// render context.
package meter

import "math"

// Meter computes per-band RMS energies from sample blocks. The energies
// slice handed to the callback is reused between calls; consumers that keep
// it must copy.
type Meter struct {
	bands    int
	fn       func(energies []float64)
	energies []float64
}

// New creates a meter with the given number of bands. fn receives one
// non-negative energy per band for every processed block.
func New(bands int, fn func(energies []float64)) *Meter {
	if bands < 1 {
		bands = 1
	}
	return &Meter{
		bands:    bands,
		fn:       fn,
		energies: make([]float64, bands),
	}
}

// Process splits the block into bands and reports their RMS energies.
// Empty blocks are ignored.
func (m *Meter) Process(block [][2]float64) {
	if len(block) == 0 || m.fn == nil {
		return
	}

	size := len(block) / m.bands
	if size == 0 {
		size = len(block)
	}

	for b := 0; b < m.bands; b++ {
		lo := b * size
		if lo >= len(block) {
			m.energies[b] = 0
			continue
		}
		hi := lo + size
		if b == m.bands-1 || hi > len(block) {
			hi = len(block)
		}

		var sum float64
		for _, frame := range block[lo:hi] {
			mono := (frame[0] + frame[1]) / 2
			sum += mono * mono
		}
		m.energies[b] = math.Sqrt(sum / float64(hi-lo))
	}

	m.fn(m.energies)
}
