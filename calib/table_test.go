package calib_test

import (
	"path/filepath"
	"testing"

	"github.com/desihub/ctecorr/calib"
	"github.com/desihub/ctecorr/cte"
)

func TestTableRoundTrip(t *testing.T) {
	rows := []cte.FitResult{
		{
			Night: 20260815, Camera: "z1", Amplifier: "C", Sector: "543:2057",
			Func: cte.RegnaultName, Amplitude: 115, FracLeak: 0.21, Chi2PDF: 1.05,
		},
		{
			Night: 20260815, Camera: "z1", Amplifier: "B", Sector: "10:20",
			Func: cte.RegnaultName, Amplitude: 4.5, FracLeak: 0.02, Chi2PDF: 0.8,
		},
	}
	path := filepath.Join(t.TempDir(), "ctecorrnight-z1-20260815.fits")
	if err := calib.WriteTable(path, rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := calib.ReadTable(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("want %d rows, got %d", len(rows), len(got))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d did not round-trip:\n got %+v\nwant %+v", i, got[i], rows[i])
		}
	}
}

func TestReadTableMissingFile(t *testing.T) {
	if _, err := calib.ReadTable(filepath.Join(t.TempDir(), "nope.fits")); err == nil {
		t.Errorf("missing table file should be an error")
	}
}
