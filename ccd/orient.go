package ccd

import "gonum.org/v1/gonum/mat"

// ReverseCols returns a copy of m with its column order reversed.  It is
// the orientation transform applied at component boundaries: amplifiers
// whose serial register sits at the high-column edge are reversed on the
// way into the trap model and reversed again on the way out.
func ReverseCols(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, c-1-j, m.At(i, j))
		}
	}
	return out
}

// SubImage returns a copy of the pixels of m selected by reg.
func SubImage(m *mat.Dense, reg AmpRegion) *mat.Dense {
	return mat.DenseCopyOf(m.Slice(reg.RowStart, reg.RowStop, reg.ColStart, reg.ColStop))
}

// SetSubImage writes sub into the pixels of m selected by reg.
func SetSubImage(m *mat.Dense, reg AmpRegion, sub *mat.Dense) {
	view := m.Slice(reg.RowStart, reg.RowStop, reg.ColStart, reg.ColStop).(*mat.Dense)
	view.Copy(sub)
}

// OrientedAmp returns a copy of the amplifier pixels of m, column-reversed
// if the region's readout direction requires it, so that readout always
// proceeds toward smaller column index.
func OrientedAmp(m *mat.Dense, reg AmpRegion) *mat.Dense {
	_, cols := m.Dims()
	amp := SubImage(m, reg)
	if reg.NeedsReverse(cols) {
		return ReverseCols(amp)
	}
	return amp
}

// SetOrientedAmp is the inverse of OrientedAmp: it restores the original
// column order of amp if needed and writes it back into m at reg.
func SetOrientedAmp(m *mat.Dense, reg AmpRegion, amp *mat.Dense) {
	_, cols := m.Dims()
	if reg.NeedsReverse(cols) {
		amp = ReverseCols(amp)
	}
	SetSubImage(m, reg, amp)
}
