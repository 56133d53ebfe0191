package cte_test

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/cte"
)

// fakeRegistry is an in-memory cte.Registry for tests.
type fakeRegistry struct {
	amps  map[string]ccd.AmpRegion
	traps map[string][]cte.Trap
	err   error
}

func (f fakeRegistry) Resolve(hdr ccd.Header, withParams bool) (map[string]ccd.AmpRegion, map[string][]cte.Trap, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.amps, f.traps, nil
}

// flatImage builds an image whose pixel values depend only on column:
// base * (1 + 0.5*sin(col/3)), with unit inverse variance everywhere.
func flatImage(rows, cols int, base float64, hdr ccd.Header) *ccd.Image {
	im := ccd.NewImage(rows, cols, hdr)
	for j := 0; j < cols; j++ {
		v := base * (1 + 0.5*math.Sin(float64(j)/3))
		for i := 0; i < rows; i++ {
			im.Pix.Set(i, j, v)
			im.Ivar.Set(i, j, 1)
		}
	}
	return im
}

// injectTrap applies the forward trap model to the sector of one
// amplifier of im, in place, for a non-reversed amplifier.
func injectTrap(im *ccd.Image, region ccd.AmpRegion, trap cte.Trap) {
	sub := mat.DenseCopyOf(im.Pix.Slice(region.RowStart, region.RowStop, trap.Start, trap.Stop))
	withCTE := cte.AddCTE(sub, cte.SimplifiedRegnault, trap.Amplitude, trap.FracLeak)
	im.Pix.Slice(region.RowStart, region.RowStop, trap.Start, trap.Stop).(*mat.Dense).Copy(withCTE)
}

func maxAbsDiff(a, b *mat.Dense) float64 {
	rows, cols := a.Dims()
	worst := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := math.Abs(a.At(i, j) - b.At(i, j))
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

func sumAbsDiff(a, b *mat.Dense) float64 {
	rows, cols := a.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			total += math.Abs(a.At(i, j) - b.At(i, j))
		}
	}
	return total
}
