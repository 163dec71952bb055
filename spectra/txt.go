package spectra

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// WriteTXT streams a background-subtracted frame to w as commented-header
// CSV, the plain numeric format the downstream analysis consumes.
func WriteTXT(w io.Writer, net Frame) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Date: %s\n", net.Timestamp.Format("20060102-150405"))
	fmt.Fprintf(bw, "# Angle (deg): %.2f\n", net.Angle)
	fmt.Fprintf(bw, "# Integration Time (s): %g\n", net.IntegrationTime)
	fmt.Fprintf(bw, "# ---\n")
	fmt.Fprintf(bw, "# Wavelength (nm), Intensity (Counts, Signal-Background)\n")
	for i := range net.Counts {
		fmt.Fprintf(bw, "%.4f, %.2f\n", net.Wavelength[i], net.Counts[i])
	}
	return bw.Flush()
}

// ReadTXT parses a frame previously written with WriteTXT.  Unknown header
// lines are skipped, so files with extra annotations still load.
func ReadTXT(r io.Reader) (Frame, error) {
	var f Frame
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseHeaderLine(&f, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return f, errors.Errorf("spectra: malformed data line %q", line)
		}
		wl, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return f, errors.Wrap(err, "spectra: bad wavelength")
		}
		ct, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return f, errors.Wrap(err, "spectra: bad intensity")
		}
		f.Wavelength = append(f.Wavelength, wl)
		f.Counts = append(f.Counts, ct)
	}
	if err := sc.Err(); err != nil {
		return f, err
	}
	if f.Len() == 0 {
		return f, errors.New("spectra: no data rows")
	}
	return f, nil
}

func parseHeaderLine(f *Frame, line string) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return
	}
	key := strings.TrimSpace(line[:idx])
	val := strings.TrimSpace(line[idx+1:])
	switch key {
	case "Angle (deg)":
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			f.Angle = v
		}
	case "Integration Time (s)":
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			f.IntegrationTime = v
		}
	case "Date":
		if t, err := time.ParseInLocation("20060102-150405", val, time.Local); err == nil {
			f.Timestamp = t
		}
	}
}
