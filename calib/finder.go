package calib

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desihub/ctecorr/ccd"
	"github.com/desihub/ctecorr/cte"
)

// Finder implements cte.Registry against the instrument calibration
// config and the per-night fitted-parameter tables stored under Root.
// It holds no mutable state and is safe for concurrent use on distinct
// images.
type Finder struct {
	Config Config

	// Root is the directory holding ctecorrnight tables
	Root string
}

// NewFinder returns a Finder over the given config and table directory.
func NewFinder(cfg Config, root string) *Finder {
	return &Finder{Config: cfg, Root: root}
}

// TablePath returns the path of the fitted-parameter table for a night
// and camera.
func (f *Finder) TablePath(night int, camera string) string {
	return filepath.Join(f.Root, fmt.Sprintf("ctecorrnight-%s-%d.fits", strings.ToLower(camera), night))
}

// Resolve returns the amplifier regions and traps of the image described
// by hdr.  Amplifiers without configured trap sectors are omitted.  With
// withParams, every trap carries parameters from the night's fitted
// table; a missing table, a missing amplifier row, a configured sector
// with no fitted row, or an unknown transfer-function name are
// configuration errors.  Without withParams traps carry clipped sector
// bounds only, which is what the fitter needs.
func (f *Finder) Resolve(hdr ccd.Header, withParams bool) (map[string]ccd.AmpRegion, map[string][]cte.Trap, error) {
	camera := strings.ToLower(hdr.Camera)
	camCfg, ok := f.Config.Cameras[camera]
	if !ok {
		return map[string]ccd.AmpRegion{}, map[string][]cte.Trap{}, nil
	}

	var table []cte.FitResult
	tablePath := f.TablePath(hdr.Night, camera)
	tableLoaded := false

	ampRegions := make(map[string]ccd.AmpRegion)
	trapRegions := make(map[string][]cte.Trap)
	for _, amp := range hdr.Amps() {
		spec, ok := camCfg.CTECols[amp]
		if !ok || spec == "" {
			// expected: most amplifiers have no trap
			continue
		}
		region, err := ccd.ParseSection(hdr.AmpSections[amp])
		if err != nil {
			return nil, nil, err
		}

		if withParams && !tableLoaded {
			if _, err := os.Stat(tablePath); err != nil {
				return nil, nil, fmt.Errorf("calib: missing CTE table %s for night %d camera %s: traps are configured but no fitted parameters exist",
					tablePath, hdr.Night, camera)
			}
			table, err = ReadTable(tablePath)
			if err != nil {
				return nil, nil, fmt.Errorf("calib: reading CTE table %s: %v", tablePath, err)
			}
			tableLoaded = true
		}

		var ampRows []cte.FitResult
		if withParams {
			for _, r := range table {
				if r.Night == hdr.Night && strings.EqualFold(r.Camera, camera) && r.Amplifier == amp {
					ampRows = append(ampRows, r)
				}
			}
			if len(ampRows) == 0 {
				return nil, nil, fmt.Errorf("calib: no CTE fit in %s for night %d camera %s amplifier %s",
					tablePath, hdr.Night, camera, amp)
			}
		}

		var traps []cte.Trap
		for _, sector := range strings.Split(spec, ",") {
			if sector == "" {
				continue
			}
			start, stop, err := parseSector(sector)
			if err != nil {
				return nil, nil, fmt.Errorf("calib: cannot decode CTECOLS%s=%q for camera %s: %v",
					amp, spec, camera, err)
			}
			trap := cte.Trap{
				Start:  max(region.ColStart, start),
				Stop:   min(region.ColStop, stop),
				Sector: sector,
			}
			if withParams {
				row, ok := findSector(ampRows, sector)
				if !ok {
					return nil, nil, fmt.Errorf("calib: no CTE fit in %s for night %d camera %s amplifier %s sector %s",
						tablePath, hdr.Night, camera, amp, sector)
				}
				if _, err := cte.TransferByName(row.Func); err != nil {
					return nil, nil, fmt.Errorf("calib: night %d camera %s amplifier %s sector %s: %v",
						hdr.Night, camera, amp, sector, err)
				}
				trap.Func = row.Func
				trap.Amplitude = row.Amplitude
				trap.FracLeak = row.FracLeak
				trap.HasParams = true
				log.Printf("CTE correction in amplifier %s, sector %s: %s amplitude %.2f fracleak %.3f",
					amp, sector, row.Func, row.Amplitude, row.FracLeak)
			}
			traps = append(traps, trap)
		}
		if len(traps) > 0 {
			ampRegions[amp] = region
			trapRegions[amp] = traps
		}
	}
	return ampRegions, trapRegions, nil
}

func parseSector(s string) (int, int, error) {
	vals := strings.Split(strings.TrimSpace(s), ":")
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("want start:stop, got %q", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(vals[0]))
	if err != nil {
		return 0, 0, err
	}
	stop, err := strconv.Atoi(strings.TrimSpace(vals[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, stop, nil
}

func findSector(rows []cte.FitResult, sector string) (cte.FitResult, bool) {
	for _, r := range rows {
		if r.Sector == sector {
			return r, true
		}
	}
	return cte.FitResult{}, false
}
