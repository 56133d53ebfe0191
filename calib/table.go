package calib

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/desihub/ctecorr/cte"
)

// tableName is the EXTNAME of the fitted-parameter binary table.
const tableName = "CTECORRNIGHT"

// tableRow is the FITS layout of one fitted trap.
type tableRow struct {
	Night     int64   `fits:"NIGHT"`
	Camera    string  `fits:"CAMERA"`
	Amplifier string  `fits:"AMPLIFIER"`
	Sector    string  `fits:"SECTOR"`
	Func      string  `fits:"FUNC"`
	Amplitude float64 `fits:"AMPLITUDE"`
	FracLeak  float64 `fits:"FRACLEAK"`
	Chi2PDF   float64 `fits:"CHI2PDF"`
}

// WriteTable writes fitted trap parameters to path as a FITS binary
// table, one row per (night, camera, amplifier, sector).
func WriteTable(path string, results []cte.FitResult) error {
	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	f, err := fitsio.Create(fid)
	if err != nil {
		return err
	}
	defer f.Close()

	// null primary HDU ahead of the table
	primary := fitsio.NewImage(8, []int{})
	defer primary.Close()
	if err := f.Write(primary); err != nil {
		return err
	}

	tbl, err := fitsio.NewTable(tableName, []fitsio.Column{
		{Name: "NIGHT", Format: "K"},
		{Name: "CAMERA", Format: "8A"},
		{Name: "AMPLIFIER", Format: "2A"},
		{Name: "SECTOR", Format: "16A"},
		{Name: "FUNC", Format: "32A"},
		{Name: "AMPLITUDE", Format: "D"},
		{Name: "FRACLEAK", Format: "D"},
		{Name: "CHI2PDF", Format: "D"},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()

	for _, r := range results {
		row := tableRow{
			Night:     int64(r.Night),
			Camera:    r.Camera,
			Amplifier: r.Amplifier,
			Sector:    r.Sector,
			Func:      r.Func,
			Amplitude: r.Amplitude,
			FracLeak:  r.FracLeak,
			Chi2PDF:   r.Chi2PDF,
		}
		if err := tbl.Write(&row); err != nil {
			return err
		}
	}
	return f.Write(tbl)
}

// ReadTable reads a fitted-parameter table written by WriteTable.
func ReadTable(path string) ([]cte.FitResult, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	f, err := fitsio.Open(fid)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, fmt.Errorf("calib: no binary table in %s", path)
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cte.FitResult
	for rows.Next() {
		var r tableRow
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, cte.FitResult{
			Night:     int(r.Night),
			Camera:    r.Camera,
			Amplifier: r.Amplifier,
			Sector:    r.Sector,
			Func:      r.Func,
			Amplitude: r.Amplitude,
			FracLeak:  r.FracLeak,
			Chi2PDF:   r.Chi2PDF,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
