package cte_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/desihub/ctecorr/cte"
)

func rampAmp(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, 100+5*float64(j)+float64(i))
		}
	}
	return m
}

// A single trap composed through ApplyMultiple must be bit-identical to
// applying the transfer model directly to the affected column slice.
func TestSingleTrapMatchesDirectApplication(t *testing.T) {
	amp := rampAmp(4, 20)
	loc := 7
	fn := cte.TrapFunc(cte.SimplifiedRegnault, 30, 0.2)

	got := cte.ApplyMultiple(amp, []int{loc}, []cte.AmpFunc{fn})

	want := mat.DenseCopyOf(amp)
	rows, cols := amp.Dims()
	slice := mat.DenseCopyOf(want.Slice(0, rows, loc, cols))
	want.Slice(0, rows, loc, cols).(*mat.Dense).Copy(cte.AddCTE(slice, cte.SimplifiedRegnault, 30, 0.2))

	if !mat.Equal(got, want) {
		t.Errorf("single-trap composition differs from direct application")
	}
}

// With two traps, the trap farthest from the register must act first, and
// the nearer trap must act on its output.
func TestTwoTrapOrdering(t *testing.T) {
	amp := rampAmp(3, 24)
	far := cte.TrapFunc(cte.SimplifiedRegnault, 20, 0.1)
	near := cte.TrapFunc(cte.SimplifiedRegnault, 40, 0.3)

	// deliberately passed near-first; ApplyMultiple must reorder
	got := cte.ApplyMultiple(amp, []int{5, 12}, []cte.AmpFunc{near, far})

	rows, cols := amp.Dims()
	want := mat.DenseCopyOf(amp)
	s12 := mat.DenseCopyOf(want.Slice(0, rows, 12, cols))
	want.Slice(0, rows, 12, cols).(*mat.Dense).Copy(far(s12))
	s5 := mat.DenseCopyOf(want.Slice(0, rows, 5, cols))
	want.Slice(0, rows, 5, cols).(*mat.Dense).Copy(near(s5))

	if !mat.Equal(got, want) {
		t.Errorf("two-trap composition applied in the wrong order")
	}
}

func TestApplyMultipleClampsLocations(t *testing.T) {
	amp := rampAmp(2, 10)
	fn := cte.TrapFunc(cte.SimplifiedRegnault, 10, 0.2)

	// negative location acts on the whole amp
	got := cte.ApplyMultiple(amp, []int{-3}, []cte.AmpFunc{fn})
	want := cte.ApplyMultiple(amp, []int{0}, []cte.AmpFunc{fn})
	if !mat.Equal(got, want) {
		t.Errorf("negative trap location should clamp to the full amp")
	}

	// location past the last column is a no-op
	got = cte.ApplyMultiple(amp, []int{10}, []cte.AmpFunc{fn})
	if !mat.Equal(got, amp) {
		t.Errorf("out-of-range trap location should leave the amp unchanged")
	}
}
