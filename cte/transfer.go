// Package cte models charge-transfer-efficiency defects ("traps") in the
// serial register of a CCD amplifier, corrects science images for them,
// and fits trap parameters from flat-field exposure pairs.
//
// The trap model, both correction strategies and the parameter fitter all
// share one transfer-function implementation.  Everything here works on an
// amplifier view that has been oriented so readout proceeds toward smaller
// column index; package ccd provides the orientation transform.
package cte

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/stats"
)

// TransferFunc describes how many electrons a trap soaks up from or emits
// into one pixel during one column transfer.  pixval is the (non-negative)
// charge arriving at the trap and inTrap the charge currently held.  The
// return value is positive when the trap releases net charge into the
// pixel stream.
type TransferFunc func(pixval, inTrap, amplitude, fracleak float64) float64

// RegnaultName is the only transfer-function kind defined so far.
const RegnaultName = "simplified_regnault"

// SimplifiedRegnault is the transfer function of Regnault et al.:
//
//	transfer = inTrap*fracleak - pixval*(1 - inTrap/amplitude)
//
// with clips so that no more electrons enter or leave the trap than exist.
// Once the trap is full it leaks roughly amplitude*fracleak per transfer
// and steals back up to the same amount.
func SimplifiedRegnault(pixval, inTrap, amplitude, fracleak float64) float64 {
	maxin := pixval
	if headroom := amplitude - inTrap; headroom < maxin {
		maxin = headroom
	}
	release := stats.Clamp(inTrap*fracleak, 0, inTrap)
	capture := stats.Clamp(pixval*(1-inTrap/amplitude), 0, maxin)
	return release - capture
}

// TransferByName resolves a transfer-function kind from the fitted
// calibration table.  An unknown name is a configuration error.
func TransferByName(name string) (TransferFunc, error) {
	if name == RegnaultName {
		return SimplifiedRegnault, nil
	}
	return nil, fmt.Errorf("cte: no transfer function called %q", name)
}

// AddCTE walks a trap over every row of img, which must already be
// oriented so that column 0 is read out first.  The per-row trap
// occupancy starts empty at the far edge of the affected region and
// evolves column by column; the returned image is a corrupted copy, the
// input is untouched.
//
// Negative input charge is clamped to zero before capture (a trap cannot
// soak up electrons that are not there) but released charge still lands on
// the possibly negative output pixel.
func AddCTE(img *mat.Dense, fn TransferFunc, amplitude, fracleak float64) *mat.Dense {
	rows, cols := img.Dims()
	out := mat.DenseCopyOf(img)
	if amplitude == 0 {
		// no capture headroom, trap is inert
		return out
	}
	for i := 0; i < rows; i++ {
		inTrap := 0.0
		for j := 0; j < cols; j++ {
			pixval := img.At(i, j)
			if pixval < 0 {
				pixval = 0
			}
			transfer := fn(pixval, inTrap, amplitude, fracleak)
			inTrap -= transfer
			out.Set(i, j, out.At(i, j)+transfer)
		}
	}
	return out
}
