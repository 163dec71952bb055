package spectra

import (
	"io"

	"github.com/astrogo/fitsio"
)

// fitsCards builds the header metadata for a frame.
func fitsCards(f Frame) []fitsio.Card {
	trig := 0
	if f.Triggered {
		trig = 1
	}
	return []fitsio.Card{
		{Name: "ANGLE", Value: f.Angle, Comment: "filter wheel angle, degrees"},
		{Name: "ITIME", Value: f.IntegrationTime, Comment: "integration time, seconds"},
		{Name: "TRIGGER", Value: trig, Comment: "1 if excitation source firing"},
		{Name: "DATE-OBS", Value: f.Timestamp.UTC().Format("2006-01-02T15:04:05"), Comment: "acquisition timestamp, UTC"},
		{Name: "CUNIT1", Value: "nm", Comment: "wavelength unit"},
		{Name: "BUNIT", Value: "count", Comment: "intensity unit"},
	}
}

// WriteFits streams a frame to w as a two-row float64 image; row 0 is the
// wavelength axis in nanometers, row 1 the counts.  Acquisition metadata
// rides in the header cards.
func WriteFits(w io.Writer, f Frame) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	n := f.Len()
	im := fitsio.NewImage(-64, []int{n, 2})
	defer im.Close()
	err = im.Header().Append(fitsCards(f)...)
	if err != nil {
		return err
	}
	buf := make([]float64, 0, 2*n)
	buf = append(buf, f.Wavelength...)
	buf = append(buf, f.Counts...)
	err = im.Write(&buf)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
