package cte

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/stats"
)

// FitResult is one fitted trap: the night/camera/amplifier/sector it
// belongs to, the transfer function and its parameters, and the reduced
// chi-square of the fit.  A poor chi-square is reported for downstream
// quality review, never raised as an error.
type FitResult struct {
	Night     int
	Camera    string
	Amplifier string
	Sector    string
	Func      string
	Amplitude float64
	FracLeak  float64
	Chi2PDF   float64
}

// fitWindowRows is the number of rows taken on each side of the boundary
// between a trap amplifier and its mirror when building the fit traces.
const fitWindowRows = 11

// seedAmplitudes is the coarse grid searched for the solver's starting
// amplitude; fracleak always starts at seedFracleak.
var seedAmplitudes = []float64{1, 20, 50, 100}

const seedFracleak = 0.2

// FitCTE fits trap parameters from a set of exposures of one camera and
// night, usually flats of different exposure times so the differing flux
// levels constrain the trap's saturation behavior.
//
// The fit compares the trap amplifier against its mirrored amplifier
// (A across from C, B across from D) along the row boundary between them:
// the mirror supplies a clean trace, and the trap parameters are solved
// for so that clean + CTE matches the affected trace.  Consequently a
// trap on both members of a mirrored pair, or two traps on one amplifier,
// are unsupported configurations and fail fast.
func FitCTE(images []*ccd.Image, reg Registry) ([]FitResult, error) {
	if len(images) == 0 {
		return nil, nil
	}
	hdr := images[0].Header
	if hdr.ObsType != "FLAT" {
		log.Printf("warning: fitting CTE on %s exposures; flats are strongly preferred", hdr.ObsType)
	}
	for _, im := range images {
		if im.Header.Camera != hdr.Camera {
			return nil, fmt.Errorf("cte: cannot fit across cameras: %q vs %q",
				hdr.Camera, im.Header.Camera)
		}
		if im.Header.ObsType != hdr.ObsType {
			return nil, fmt.Errorf("cte: cannot fit across observation types: %q vs %q",
				hdr.ObsType, im.Header.ObsType)
		}
	}

	amps, traps, err := reg.Resolve(hdr, false)
	if err != nil {
		return nil, err
	}

	var results []FitResult
	for _, amp := range sortedAmps(amps) {
		ampTraps := traps[amp]
		if len(ampTraps) == 0 {
			continue
		}
		if len(ampTraps) > 1 {
			return nil, fmt.Errorf("cte: fitting two traps on amplifier %s of %s is not supported",
				amp, hdr.Camera)
		}
		mirror, err := ccd.MirrorAmp(amp)
		if err != nil {
			return nil, err
		}
		if len(traps[mirror]) != 0 {
			return nil, fmt.Errorf("cte: traps on amplifier %s and its mirror %s of %s: no clean side to fit against",
				amp, mirror, hdr.Camera)
		}
		trap := ampTraps[0]
		res, err := fitTrap(images, amps[amp], trap)
		if err != nil {
			return nil, err
		}
		res.Night = hdr.Night
		res.Camera = hdr.Camera
		res.Amplifier = amp
		results = append(results, res)
		log.Printf("CTE fit %s amp %s sector %s: amplitude %.2f fracleak %.3f chi2/dof %5.2f",
			hdr.Camera, amp, res.Sector, res.Amplitude, res.FracLeak, res.Chi2PDF)
	}
	return results, nil
}

// fitTrap solves for one trap's amplitude and fracleak, shared across all
// input images.
func fitTrap(images []*ccd.Image, region ccd.AmpRegion, trap Trap) (FitResult, error) {
	rows, cols := images[0].Dims()
	for _, im := range images {
		r, c := im.Dims()
		if r != rows || c != cols {
			return FitResult{}, fmt.Errorf("cte: image shapes disagree: %dx%d vs %dx%d", rows, cols, r, c)
		}
	}

	// row boundary between the trap amplifier and its mirror
	boundary := region.RowStart
	if region.OnBottom() {
		boundary = region.RowStop
	}
	cteRow0, cleanRow0 := boundary, boundary-fitWindowRows
	if region.OnBottom() {
		cteRow0, cleanRow0 = boundary-fitWindowRows, boundary
	}
	if cteRow0 < 0 || cleanRow0 < 0 || cteRow0+fitWindowRows > rows || cleanRow0+fitWindowRows > rows {
		return FitResult{}, fmt.Errorf("cte: fit windows around row %d do not fit a %d-row image", boundary, rows)
	}
	reversed := region.NeedsReverse(cols)

	var cleanTraces, cteTraces []*mat.Dense
	var uncertainties [][]float64
	for _, im := range images {
		clean := windowTrace(im.Pix, cleanRow0, trap, reversed, cols)
		cte := windowTrace(im.Pix, cteRow0, trap, reversed, cols)
		cleanTraces = append(cleanTraces, mat.NewDense(1, len(clean), clean))
		cteTraces = append(cteTraces, mat.NewDense(1, len(cte), cte))
		uncertainties = append(uncertainties, windowUncertainty(im.Ivar, cleanRow0, cteRow0, trap, reversed, cols))
	}

	residuals := func(amplitude, fracleak float64) []float64 {
		var res []float64
		for i, clean := range cleanTraces {
			model := AddCTE(clean, SimplifiedRegnault, amplitude, fracleak)
			n := len(uncertainties[i])
			for j := 0; j < n; j++ {
				res = append(res, (model.At(0, j)-cteTraces[i].At(0, j))/uncertainties[i][j])
			}
		}
		return res
	}

	// coarse amplitude grid seed at fixed fracleak
	best, bestSum := seedAmplitudes[0], math.Inf(1)
	for _, a := range seedAmplitudes {
		sum := 0.0
		for _, r := range residuals(a, seedFracleak) {
			sum += r * r
		}
		if sum < bestSum {
			best, bestSum = a, sum
		}
	}

	cost := func(x []float64) float64 {
		return huberCost(residuals(x[0], x[1]))
	}
	x0 := []float64{best, seedFracleak}
	// simplex steps mirror the fixed finite-difference steps of 0.2 in
	// amplitude (relative) and 0.01 in fracleak
	vertices := [][]float64{
		{x0[0], x0[1]},
		{x0[0] * 1.2, x0[1]},
		{x0[0], x0[1] + 0.01},
	}
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = cost(v)
	}
	problem := optimize.Problem{Func: cost}
	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
	}
	result, err := optimize.Minimize(problem, x0, nil, method)
	if err != nil && result == nil {
		return FitResult{}, fmt.Errorf("cte: trap fit failed: %v", err)
	}

	nres := len(residuals(result.X[0], result.X[1]))
	sector := trap.Sector
	if sector == "" {
		sector = FormatSector(trap.Start, trap.Stop)
	}
	return FitResult{
		Sector:    sector,
		Func:      RegnaultName,
		Amplitude: result.X[0],
		FracLeak:  result.X[1],
		Chi2PDF:   result.F / float64(nres),
	}, nil
}

// huberCost is the robust least-squares cost 0.5*sum(rho(r^2)) with the
// Huber influence function rho(z) = z for z <= 1, 2*sqrt(z)-1 beyond.
func huberCost(res []float64) float64 {
	total := 0.0
	for _, r := range res {
		z := r * r
		if z <= 1 {
			total += z
		} else {
			total += 2*math.Sqrt(z) - 1
		}
	}
	return 0.5 * total
}

// windowTrace takes the per-column median of a fitWindowRows-tall window
// starting at row0, over the trap's column sector, oriented so index 0 is
// nearest the trap in readout order.
func windowTrace(m *mat.Dense, row0 int, trap Trap, reversed bool, imageCols int) []float64 {
	cols := sectorColumns(trap, reversed, imageCols)
	trace := make([]float64, len(cols))
	vals := make([]float64, fitWindowRows)
	for k, c := range cols {
		for r := 0; r < fitWindowRows; r++ {
			vals[r] = m.At(row0+r, c)
		}
		trace[k] = stats.Median(vals)
	}
	return trace
}

// windowUncertainty propagates the inverse-variance planes of both
// windows into a per-column uncertainty of the median traces, using the
// variance of the median of a normal sample, sigma^2 * pi / 2 / n.
func windowUncertainty(ivar *mat.Dense, cleanRow0, cteRow0 int, trap Trap, reversed bool, imageCols int) []float64 {
	cols := sectorColumns(trap, reversed, imageCols)
	unc := make([]float64, len(cols))
	fac := math.Sqrt(math.Pi / 2 / fitWindowRows)
	vals := make([]float64, fitWindowRows)
	for k, c := range cols {
		for r := 0; r < fitWindowRows; r++ {
			vals[r] = 1/ivar.At(cleanRow0+r, c) + 1/ivar.At(cteRow0+r, c)
		}
		unc[k] = fac * math.Sqrt(stats.Median(vals))
	}
	return unc
}

// sectorColumns lists the absolute column indices of the trap sector in
// readout order: ascending from Start when the amplifier reads leftward,
// descending from Stop when it reads rightward.
func sectorColumns(trap Trap, reversed bool, imageCols int) []int {
	var cols []int
	if reversed {
		first := trap.Stop
		if first > imageCols-1 {
			first = imageCols - 1
		}
		for c := first; c > trap.Start; c-- {
			cols = append(cols, c)
		}
	} else {
		for c := trap.Start; c < trap.Stop; c++ {
			cols = append(cols, c)
		}
	}
	return cols
}

func sortedAmps(amps map[string]ccd.AmpRegion) []string {
	var out []string
	for _, a := range []string{"A", "B", "C", "D"} {
		if _, ok := amps[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
