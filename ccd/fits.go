package ccd

import (
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"
)

// WriteImage streams im to w as a FITS file: the pixel plane in the
// primary HDU carrying the metadata cards, followed by IVAR and MASK
// image extensions.
func WriteImage(w io.Writer, im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	cards := []fitsio.Card{
		{Name: "CAMERA", Value: im.Header.Camera},
		{Name: "NIGHT", Value: im.Header.Night},
		{Name: "OBSTYPE", Value: im.Header.ObsType},
		{Name: "EXPTIME", Value: im.Header.ExpTime},
	}
	for _, amp := range im.Header.Amps() {
		cards = append(cards, fitsio.Card{
			Name:  "CCDSEC" + amp,
			Value: im.Header.AmpSections[amp],
		})
	}

	if err := writePlane(f, "", im.Pix, cards); err != nil {
		return err
	}
	if err := writePlane(f, "IVAR", im.Ivar, nil); err != nil {
		return err
	}
	return writePlane(f, "MASK", im.Mask, nil)
}

func writePlane(f *fitsio.File, name string, plane *mat.Dense, cards []fitsio.Card) error {
	rows, cols := plane.Dims()
	hdu := fitsio.NewImage(-32, []int{cols, rows})
	defer hdu.Close()
	if name != "" {
		cards = append(cards, fitsio.Card{Name: "EXTNAME", Value: name})
	}
	if len(cards) > 0 {
		if err := hdu.Header().Append(cards...); err != nil {
			return err
		}
	}
	buf := make([]float32, rows*cols)
	raw := plane.RawMatrix()
	for i, v := range raw.Data {
		buf[i] = float32(v)
	}
	if err := hdu.Write(buf); err != nil {
		return err
	}
	return f.Write(hdu)
}

// ReadImage reads a FITS file written by WriteImage.  The primary HDU
// supplies the pixel plane and metadata; IVAR and MASK extensions are
// matched by name and default to zero planes when absent.
func ReadImage(r io.Reader) (*Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) == 0 {
		return nil, fmt.Errorf("ccd: FITS file has no HDUs")
	}
	primary, ok := hdus[0].(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("ccd: primary HDU is not an image")
	}
	pix, rows, cols, err := readPlane(primary)
	if err != nil {
		return nil, err
	}

	hdr := Header{AmpSections: map[string]string{}}
	h := primary.Header()
	if c := h.Get("CAMERA"); c != nil {
		hdr.Camera, _ = c.Value.(string)
	}
	if c := h.Get("NIGHT"); c != nil {
		if v, ok := c.Value.(int); ok {
			hdr.Night = v
		}
	}
	if c := h.Get("OBSTYPE"); c != nil {
		hdr.ObsType, _ = c.Value.(string)
	}
	if c := h.Get("EXPTIME"); c != nil {
		switch v := c.Value.(type) {
		case float64:
			hdr.ExpTime = v
		case int:
			hdr.ExpTime = float64(v)
		}
	}
	for _, amp := range []string{"A", "B", "C", "D"} {
		if c := h.Get("CCDSEC" + amp); c != nil {
			if s, ok := c.Value.(string); ok {
				hdr.AmpSections[amp] = s
			}
		}
	}

	im := &Image{
		Pix:    pix,
		Ivar:   mat.NewDense(rows, cols, nil),
		Mask:   mat.NewDense(rows, cols, nil),
		Header: hdr,
	}
	for _, hdu := range hdus[1:] {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		plane, pr, pc, err := readPlane(img)
		if err != nil {
			return nil, err
		}
		if pr != rows || pc != cols {
			return nil, fmt.Errorf("ccd: extension %s shape %dx%d does not match image %dx%d",
				hdu.Name(), pr, pc, rows, cols)
		}
		switch hdu.Name() {
		case "IVAR":
			im.Ivar = plane
		case "MASK":
			im.Mask = plane
		}
	}
	return im, nil
}

func readPlane(img fitsio.Image) (*mat.Dense, int, int, error) {
	axes := img.Header().Axes()
	if len(axes) != 2 {
		return nil, 0, 0, fmt.Errorf("ccd: want 2-D image HDU, got %d axes", len(axes))
	}
	cols, rows := axes[0], axes[1]
	buf := make([]float32, rows*cols)
	if err := img.Read(&buf); err != nil {
		return nil, 0, 0, err
	}
	if len(buf) != rows*cols {
		return nil, 0, 0, fmt.Errorf("ccd: image HDU has %d values, want %d", len(buf), rows*cols)
	}
	data := make([]float64, len(buf))
	for i, v := range buf {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data), rows, cols, nil
}

// ReadImageFile reads a preprocessed image from the named file.
func ReadImageFile(path string) (*Image, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()
	return ReadImage(fid)
}

// WriteImageFile writes im to the named file.
func WriteImageFile(path string, im *Image) error {
	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()
	return WriteImage(fid, im)
}
