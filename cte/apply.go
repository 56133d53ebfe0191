package cte

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/ccd"
)

// AmpFunc applies a CTE effect to an oriented amplifier view and returns
// the corrupted copy.
type AmpFunc func(*mat.Dense) *mat.Dense

// TrapFunc builds the AmpFunc for one trap from its fitted parameters.
func TrapFunc(fn TransferFunc, amplitude, fracleak float64) AmpFunc {
	return func(amp *mat.Dense) *mat.Dense {
		return AddCTE(amp, fn, amplitude, fracleak)
	}
}

// ApplyMultiple composes several traps over one oriented amplifier view.
// locations are trap column offsets in the oriented frame (readout toward
// smaller column index).  Traps are applied in descending-location order:
// charge passing a trap near the register has already been altered by
// every trap farther out, so the outermost trap must act first.  Each trap
// acts on the slice of columns at or beyond its own location.
func ApplyMultiple(amp *mat.Dense, locations []int, fns []AmpFunc) *mat.Dense {
	rows, cols := amp.Dims()
	order := make([]int, len(locations))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return locations[order[a]] > locations[order[b]]
	})
	out := mat.DenseCopyOf(amp)
	for _, idx := range order {
		loc := locations[idx]
		if loc < 0 {
			loc = 0
		}
		if loc >= cols {
			continue
		}
		affected := out.Slice(0, rows, loc, cols).(*mat.Dense)
		affected.Copy(fns[idx](mat.DenseCopyOf(affected)))
	}
	return out
}

// trapsAmpFunc builds the composed per-amplifier CTE function for a set of
// traps with fitted parameters, for the amplifier region reg of an image
// with imageCols columns.
func trapsAmpFunc(traps []Trap, reg ccd.AmpRegion, imageCols int) (AmpFunc, error) {
	locations := make([]int, len(traps))
	fns := make([]AmpFunc, len(traps))
	for i, t := range traps {
		fn, err := TransferByName(t.Func)
		if err != nil {
			return nil, err
		}
		locations[i] = t.Location(reg, imageCols)
		fns[i] = TrapFunc(fn, t.Amplitude, t.FracLeak)
	}
	return func(amp *mat.Dense) *mat.Dense {
		return ApplyMultiple(amp, locations, fns)
	}, nil
}
