package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/opal-photonics/asesweep/manifest"
	"github.com/opal-photonics/asesweep/spectra"
)

// Point is the reduction of one successful scan point.
type Point struct {
	Index           int
	Angle           float64
	IntegrationTime float64
	FluenceJM2      float64

	// Intensity is the integrated net intensity, normalized per second of
	// integration so points taken at different presets compare.
	Intensity float64

	// FWHMnm is the emission width; zero when the spectrum never fell to
	// half maximum inside the captured span.
	FWHMnm float64
}

// Table is a reduced run.
type Table struct {
	Meta   manifest.Meta
	Points []Point

	// Skipped counts manifest records that could not be reduced (failed
	// points, unreadable files, degenerate spectra).
	Skipped int
}

// Reducer holds everything needed to reduce a run directory.
type Reducer struct {
	Calibration *Calibration
	Beam        Beam

	// Smoother is applied to each net spectrum before the width and
	// intensity measurements.  Nil means no smoothing.
	Smoother *SavGol
}

// Reduce walks a run directory and reduces every successful point.
func (r Reducer) Reduce(dir string) (Table, error) {
	meta, recs, err := manifest.Load(dir)
	if err != nil {
		return Table{}, errors.Wrap(err, "analysis: loading run")
	}
	tab := Table{Meta: meta}
	for _, rec := range recs {
		if rec.Status != manifest.StatusOK || rec.NetFile == "" {
			tab.Skipped++
			continue
		}
		pt, err := r.reducePoint(dir, rec)
		if err != nil {
			tab.Skipped++
			continue
		}
		tab.Points = append(tab.Points, pt)
	}
	if len(tab.Points) == 0 {
		return tab, errors.New("analysis: no reducible points in run")
	}
	return tab, nil
}

func (r Reducer) reducePoint(dir string, rec manifest.Record) (Point, error) {
	f, err := os.Open(filepath.Join(dir, "Raw_Data", rec.NetFile))
	if err != nil {
		return Point{}, err
	}
	net, err := spectra.ReadTXT(f)
	f.Close()
	if err != nil {
		return Point{}, err
	}
	counts := net.Counts
	if r.Smoother != nil {
		counts = r.Smoother.Smooth(counts)
	}

	pt := Point{
		Index:           rec.Index,
		Angle:           rec.Angle,
		IntegrationTime: rec.IntegrationTime,
		FluenceJM2:      r.Beam.Fluence(r.Calibration, rec.Angle),
	}
	if rec.IntegrationTime > 0 {
		pt.Intensity = IntegratedIntensity(net.Wavelength, counts) / rec.IntegrationTime
	}
	if w, err := FWHM(net.Wavelength, counts); err == nil {
		pt.FWHMnm = w
	}
	return pt, nil
}

// Threshold extracts the threshold fluence from the table's points with a
// usable width measurement.
func (t Table) Threshold() (float64, error) {
	var fl, wd []float64
	for _, p := range t.Points {
		if p.FWHMnm > 0 {
			fl = append(fl, p.FluenceJM2)
			wd = append(wd, p.FWHMnm)
		}
	}
	return Threshold(fl, wd)
}

// WriteCSV writes the reduced table.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "angle_deg", "integration_s", "fluence_J_m2", "intensity_per_s", "fwhm_nm"}); err != nil {
		return err
	}
	for _, p := range t.Points {
		row := []string{
			fmt.Sprintf("%d", p.Index),
			fmt.Sprintf("%.2f", p.Angle),
			fmt.Sprintf("%g", p.IntegrationTime),
			fmt.Sprintf("%.6g", p.FluenceJM2),
			fmt.Sprintf("%.6g", p.Intensity),
			fmt.Sprintf("%.4f", p.FWHMnm),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
