package cte

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/stats"
)

// ModelBuilder is the spectral-extraction collaborator: it reconstructs a
// noise-free model of an image's pixel grid from extracted, smoothed,
// fiberflat- and sky-corrected spectra.  The PSF, trace and fiberflat
// calibration it depends on are opaque to this package.
type ModelBuilder interface {
	BuildModel(img *ccd.Image) (*mat.Dense, error)
}

// rmsConvergence is the early-stop threshold on the change of the
// sigma-clipped correction RMS between iterations, in detector counts.
// It is a fixed absolute heuristic, deliberately not normalized to the
// image noise level.
const rmsConvergence = 0.1

// CorrectImageViaModel corrects an image for CTE using a noise-free image
// model.  Spectra can be roughly extracted from a CTE-affected image as
// usual; the model built from them, with CTE applied, predicts what the
// traps do to the data free of noise.  Per iteration:
//
//	M = BuildModel(I)
//	M' = CTE(M)
//	I = orig - (M' - M)
//
// so real noise is preserved and only the systematic CTE bias is removed.
// Re-extracting from the corrected image improves the model, up to niter
// rounds or until the correction RMS stops changing.
//
// An image whose registry reports no fitted traps is returned unchanged.
func CorrectImageViaModel(img *ccd.Image, mb ModelBuilder, reg Registry, niter int) (*ccd.Image, error) {
	amps, traps, err := reg.Resolve(img.Header, true)
	if err != nil {
		return nil, err
	}
	ntraps := 0
	for _, t := range traps {
		ntraps += len(t)
	}
	if ntraps == 0 {
		log.Printf("no CTE correction to do for this image, returning original")
		return img, nil
	}

	out := img.Copy()
	rows, cols := img.Dims()
	previousRMS := 0.0
	converged := false
	for i := 0; i < niter && !converged; i++ {
		model, err := mb.BuildModel(out)
		if err != nil {
			return nil, err
		}
		ctemodel := mat.DenseCopyOf(model)

		for amp, region := range amps {
			ampTraps := traps[amp]
			if len(ampTraps) == 0 {
				continue
			}
			ctefun, err := trapsAmpFunc(ampTraps, region, cols)
			if err != nil {
				return nil, err
			}
			oriented := ccd.OrientedAmp(model, region)
			withCTE := ctefun(oriented)
			ccd.SetOrientedAmp(ctemodel, region, withCTE)

			ampCorrection := mat.NewDense(region.Rows(), region.Cols(), nil)
			ampCorrection.Sub(withCTE, oriented)
			_, _, rms := stats.SigmaClippedDefault(ampCorrection.RawMatrix().Data)
			log.Printf("correcting CTE, iteration %d, correction rms %6.3f", i, rms)
			if math.Abs(rms-previousRMS) < rmsConvergence {
				converged = true
			}
			previousRMS = rms
		}

		correction := mat.NewDense(rows, cols, nil)
		correction.Sub(ctemodel, model)
		out.Pix.Sub(img.Pix, correction)
	}
	return out, nil
}
