package cte_test

import (
	"math"
	"testing"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/cte"
)

// fitLayout is a four-amp detector with a trap on amp A; its mirror C is
// clean, which is the configuration the fitter requires.
func fitLayout() (ccd.Header, map[string]ccd.AmpRegion, cte.Trap) {
	hdr := ccd.Header{
		Camera:  "z1",
		Night:   20260815,
		ObsType: "FLAT",
		AmpSections: map[string]string{
			"A": "[1:15,1:20]",
			"B": "[16:30,1:20]",
			"C": "[1:15,21:40]",
			"D": "[16:30,21:40]",
		},
	}
	amps := map[string]ccd.AmpRegion{
		"A": {RowStart: 0, RowStop: 20, ColStart: 0, ColStop: 15},
	}
	trap := cte.Trap{Start: 3, Stop: 15, Sector: "3:15"}
	return hdr, amps, trap
}

func makeFlats(hdr ccd.Header, region ccd.AmpRegion, amplitude, fracleak float64) []*ccd.Image {
	trap := cte.Trap{Start: 3, Stop: 15, Amplitude: amplitude, FracLeak: fracleak}
	var images []*ccd.Image
	// a faint and a bright flat: the faint one probes the trap's fill
	// dynamics, the bright one its saturation level
	for _, base := range []float64{5, 2000} {
		h := hdr
		h.ExpTime = base / 16
		im := flatImage(40, 30, base, h)
		injectTrap(im, region, trap)
		images = append(images, im)
	}
	return images
}

// Injecting a known trap into synthetic flats and fitting must recover
// its parameters to within a few percent, with a small reduced chi-square
// for noise-free inputs.
func TestFitRecoversInjectedTrap(t *testing.T) {
	hdr, amps, trap := fitLayout()
	const amplitude, fracleak = 30.0, 0.15
	reg := fakeRegistry{amps: amps, traps: map[string][]cte.Trap{"A": {trap}}}
	images := makeFlats(hdr, amps["A"], amplitude, fracleak)

	results, err := cte.FitCTE(images, reg)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 fit result, got %d", len(results))
	}
	res := results[0]
	if res.Night != hdr.Night || res.Camera != hdr.Camera || res.Amplifier != "A" {
		t.Errorf("fit labeled wrong: %+v", res)
	}
	if res.Sector != "3:15" {
		t.Errorf("want sector 3:15, got %s", res.Sector)
	}
	if res.Func != cte.RegnaultName {
		t.Errorf("want func %s, got %s", cte.RegnaultName, res.Func)
	}
	if rel := math.Abs(res.Amplitude-amplitude) / amplitude; rel > 0.05 {
		t.Errorf("amplitude %f more than 5%% from injected %f", res.Amplitude, amplitude)
	}
	if rel := math.Abs(res.FracLeak-fracleak) / fracleak; rel > 0.05 {
		t.Errorf("fracleak %f more than 5%% from injected %f", res.FracLeak, fracleak)
	}
	if res.Chi2PDF > 1 {
		t.Errorf("reduced chi-square %f too large for noise-free input", res.Chi2PDF)
	}
}

func TestFitRejectsTwoTrapsOnOneAmp(t *testing.T) {
	hdr, amps, trap := fitLayout()
	second := cte.Trap{Start: 0, Stop: 2, Sector: "0:2"}
	reg := fakeRegistry{amps: amps, traps: map[string][]cte.Trap{"A": {trap, second}}}
	images := makeFlats(hdr, amps["A"], 30, 0.15)
	if _, err := cte.FitCTE(images, reg); err == nil {
		t.Errorf("two traps on one amplifier should be an unsupported configuration")
	}
}

func TestFitRejectsTrapOnMirrorPair(t *testing.T) {
	hdr, amps, trap := fitLayout()
	amps["C"] = ccd.AmpRegion{RowStart: 20, RowStop: 40, ColStart: 0, ColStop: 15}
	mirror := cte.Trap{Start: 5, Stop: 10, Sector: "5:10"}
	reg := fakeRegistry{amps: amps, traps: map[string][]cte.Trap{
		"A": {trap},
		"C": {mirror},
	}}
	images := makeFlats(hdr, amps["A"], 30, 0.15)
	if _, err := cte.FitCTE(images, reg); err == nil {
		t.Errorf("traps on a mirrored amplifier pair should be an unsupported configuration")
	}
}

func TestFitRejectsMixedCameras(t *testing.T) {
	hdr, amps, trap := fitLayout()
	reg := fakeRegistry{amps: amps, traps: map[string][]cte.Trap{"A": {trap}}}
	images := makeFlats(hdr, amps["A"], 30, 0.15)
	images[1].Header.Camera = "b3"
	if _, err := cte.FitCTE(images, reg); err == nil {
		t.Errorf("mixed cameras should be a validation error")
	}
}

func TestFitNoImages(t *testing.T) {
	results, err := cte.FitCTE(nil, fakeRegistry{})
	if err != nil {
		t.Fatalf("no images should not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want no results for no images, got %d", len(results))
	}
}
