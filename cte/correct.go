package cte

import (
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/stats"
)

// CorrectAmp corrects one oriented amplifier view for CTE by direct
// inversion.  In the limit that CTE is perturbative,
//
//	for i in 0..niter: I' = CTE(I); I = orig - (I' - I)
//
// removes the effect.  For large traps this correlates the noise and
// performs poorly; it is kept as a reference implementation and for
// forward-modeling, the production path is CorrectImageViaModel.
//
// With applyOnly the correction is skipped entirely and the forward
// model CTE(I) is returned instead, which simulates CTE onto a clean
// amplifier.
func CorrectAmp(amp *mat.Dense, ctefun AmpFunc, niter int, applyOnly bool) *mat.Dense {
	rows, cols := amp.Dims()
	corrected := mat.DenseCopyOf(amp)
	correction := mat.NewDense(rows, cols, nil)
	for i := 0; i < niter; i++ {
		cteamp := ctefun(corrected)
		if applyOnly {
			return cteamp
		}
		correction.Sub(cteamp, corrected)
		mean, median, rms := stats.SigmaClippedDefault(correction.RawMatrix().Data)
		log.Printf("correcting CTE, iteration %d, correction mean %6.3f median %6.3f rms %6.3f",
			i, mean, median, rms)
		corrected.Sub(amp, correction)
	}
	return corrected
}

// CorrectImage corrects a whole image for CTE with the perturbative
// CorrectAmp strategy, looping over amplifiers and reversing readout
// directions as appropriate.  An image with no fitted traps is returned
// as an unmodified copy.
func CorrectImage(img *ccd.Image, reg Registry, niter int, applyOnly bool) (*ccd.Image, error) {
	amps, traps, err := reg.Resolve(img.Header, true)
	if err != nil {
		return nil, err
	}
	out := img.Copy()
	_, cols := img.Dims()
	for amp, region := range amps {
		ampTraps := traps[amp]
		if len(ampTraps) == 0 {
			continue
		}
		ctefun, err := trapsAmpFunc(ampTraps, region, cols)
		if err != nil {
			return nil, err
		}
		oriented := ccd.OrientedAmp(out.Pix, region)
		ccd.SetOrientedAmp(out.Pix, region, CorrectAmp(oriented, ctefun, niter, applyOnly))
	}
	return out, nil
}
