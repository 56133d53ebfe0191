// Package ccd holds the data model for preprocessed CCD images: pixel,
// inverse-variance and mask planes, header metadata, amplifier geometry,
// and FITS I/O.  The correction and fitting algorithms in package cte
// operate on these types but never mutate a caller's Image in place.
package ccd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Header carries the image metadata the calibration core cares about.
// AmpSections maps an amplifier letter to its CCDSEC-style region keyword,
// e.g. "A" -> "[1:1057,1:1032]".
type Header struct {
	// Camera is the spectrograph camera identifier, e.g. "z1"
	Camera string

	// Night is the observation night as a YEARMMDD integer
	Night int

	// ObsType is the observation type, e.g. "FLAT" or "SCIENCE"
	ObsType string

	// ExpTime is the exposure time in seconds
	ExpTime float64

	// AmpSections holds the CCDSEC<amp> region strings keyed by amp letter
	AmpSections map[string]string
}

// Amps returns the amplifier identifiers present in the header, in
// alphabetical order.
func (h Header) Amps() []string {
	amps := make([]string, 0, len(h.AmpSections))
	for _, a := range []string{"A", "B", "C", "D"} {
		if _, ok := h.AmpSections[a]; ok {
			amps = append(amps, a)
		}
	}
	return amps
}

// Image is a preprocessed detector image.  Pix holds pixel values in
// electrons, Ivar the per-pixel inverse variance, and Mask per-pixel
// condition flags (zero means good).  All three planes share one shape.
type Image struct {
	Pix    *mat.Dense
	Ivar   *mat.Dense
	Mask   *mat.Dense
	Header Header
}

// NewImage allocates a zero-filled image of the given shape.
func NewImage(rows, cols int, hdr Header) *Image {
	return &Image{
		Pix:    mat.NewDense(rows, cols, nil),
		Ivar:   mat.NewDense(rows, cols, nil),
		Mask:   mat.NewDense(rows, cols, nil),
		Header: hdr,
	}
}

// Dims returns the (rows, cols) shape of the image.
func (im *Image) Dims() (int, int) {
	return im.Pix.Dims()
}

// Copy returns a deep copy of the image.  Correctors operate on copies so
// the caller's data is never mutated.
func (im *Image) Copy() *Image {
	out := &Image{
		Pix:    mat.DenseCopyOf(im.Pix),
		Ivar:   mat.DenseCopyOf(im.Ivar),
		Mask:   mat.DenseCopyOf(im.Mask),
		Header: im.Header,
	}
	if im.Header.AmpSections != nil {
		out.Header.AmpSections = make(map[string]string, len(im.Header.AmpSections))
		for k, v := range im.Header.AmpSections {
			out.Header.AmpSections[k] = v
		}
	}
	return out
}

// Validate checks that the three planes share one shape.
func (im *Image) Validate() error {
	pr, pc := im.Pix.Dims()
	ir, ic := im.Ivar.Dims()
	mr, mc := im.Mask.Dims()
	if pr != ir || pc != ic || pr != mr || pc != mc {
		return fmt.Errorf("ccd: plane shapes disagree: pix %dx%d ivar %dx%d mask %dx%d",
			pr, pc, ir, ic, mr, mc)
	}
	return nil
}
