package synth

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/mkivist/backbeat"
)

// Meter tracks the peak and RMS levels of the most recent block.
type Meter struct {
	Peak, RMS float32

	scratch []float32
}

func (m *Meter) update(buffer backbeat.AudioBuffer) {
	n := len(buffer) * 2
	if n == 0 {
		m.Peak, m.RMS = 0, 0
		return
	}
	if cap(m.scratch) < n {
		m.scratch = make([]float32, n)
	}
	flat := m.scratch[:n]
	for i, frame := range buffer {
		flat[2*i] = frame[0]
		flat[2*i+1] = frame[1]
	}
	vek32.Abs_Inplace(flat)
	m.Peak = vek32.Max(flat)
	vek32.Mul_Inplace(flat, flat)
	m.RMS = math32.Sqrt(vek32.Mean(flat))
}
