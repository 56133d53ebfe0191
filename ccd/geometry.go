package ccd

import (
	"fmt"
	"strconv"
	"strings"
)

// AmpRegion selects one readout amplifier's pixels as half-open index
// ranges over the full image.  Regions for a detector are disjoint and
// tile the image.
type AmpRegion struct {
	RowStart, RowStop int
	ColStart, ColStop int
}

// ParseSection decodes a FITS-style section keyword of the form
// "[x1:x2,y1:y2]" with 1-based inclusive bounds, x running along columns,
// into a half-open 0-based AmpRegion.
func ParseSection(s string) (AmpRegion, error) {
	var r AmpRegion
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return r, fmt.Errorf("ccd: cannot decode section %q", s)
	}
	t = t[1 : len(t)-1]
	parts := strings.Split(t, ",")
	if len(parts) != 2 {
		return r, fmt.Errorf("ccd: cannot decode section %q", s)
	}
	x1, x2, err := parseRange(parts[0])
	if err != nil {
		return r, fmt.Errorf("ccd: cannot decode section %q: %v", s, err)
	}
	y1, y2, err := parseRange(parts[1])
	if err != nil {
		return r, fmt.Errorf("ccd: cannot decode section %q: %v", s, err)
	}
	r.ColStart, r.ColStop = x1-1, x2
	r.RowStart, r.RowStop = y1-1, y2
	return r, nil
}

func parseRange(s string) (int, int, error) {
	vals := strings.Split(strings.TrimSpace(s), ":")
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("want start:stop, got %q", s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(vals[0]))
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(strings.TrimSpace(vals[1]))
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Rows returns the number of rows the region spans.
func (r AmpRegion) Rows() int { return r.RowStop - r.RowStart }

// Cols returns the number of columns the region spans.
func (r AmpRegion) Cols() int { return r.ColStop - r.ColStart }

// NeedsReverse reports whether the amplifier's serial register sits at the
// high-column edge of the full image, in which case its pixel view must be
// column-reversed before the trap model (which always reads out toward
// smaller column index) is applied.
func (r AmpRegion) NeedsReverse(imageCols int) bool {
	return r.ColStop == imageCols
}

// OnBottom reports whether the region touches the bottom (row 0) edge of
// the image.
func (r AmpRegion) OnBottom() bool { return r.RowStart == 0 }

// MirrorAmp returns the amplifier sharing a row boundary with the given
// one in the standard four-amp layout: A across from C, B across from D.
func MirrorAmp(amp string) (string, error) {
	switch amp {
	case "A":
		return "C", nil
	case "B":
		return "D", nil
	case "C":
		return "A", nil
	case "D":
		return "B", nil
	}
	return "", fmt.Errorf("ccd: no mirror for amplifier %q", amp)
}
