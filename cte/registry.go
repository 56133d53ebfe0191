package cte

import (
	"fmt"

	"github.com/desihub/ctecorr/ccd"
)

// Trap describes one charge trap on an amplifier.  Start and Stop bound
// the affected column sector in the un-reversed image frame, already
// clipped to the amplifier's own column range.  Sector is the raw
// "start:stop" token from the calibration config, which keys rows of the
// fitted table.  Func, Amplitude and FracLeak come from the fitted
// calibration table and are only meaningful when HasParams is true.
type Trap struct {
	Start, Stop int
	Sector      string
	Func        string
	Amplitude   float64
	FracLeak    float64
	HasParams   bool
}

// FormatSector renders column bounds in the "start:stop" form used by the
// calibration config and table.
func FormatSector(start, stop int) string {
	return fmt.Sprintf("%d:%d", start, stop)
}

// Location returns the trap's column offset within its amplifier in the
// oriented frame where readout proceeds toward smaller column index.
func (t Trap) Location(reg ccd.AmpRegion, imageCols int) int {
	if reg.NeedsReverse(imageCols) {
		return reg.ColStop - t.Stop
	}
	return t.Start - reg.ColStart
}

// Registry resolves which amplifiers of an image carry traps.  It is the
// injectable boundary to calibration lookups; package calib provides the
// filesystem-backed implementation and tests use in-memory fakes.
//
// When withParams is true every returned trap carries fitted parameters
// and implementations must fail with a descriptive error when the
// calibration table, or a required row of it, is missing.  When false,
// traps carry sector bounds only.
type Registry interface {
	Resolve(hdr ccd.Header, withParams bool) (map[string]ccd.AmpRegion, map[string][]Trap, error)
}
