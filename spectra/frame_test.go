package spectra

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func frameOf(counts ...float64) Frame {
	wl := make([]float64, len(counts))
	for i := range wl {
		wl[i] = 400 + float64(i)
	}
	return Frame{Wavelength: wl, Counts: counts, IntegrationTime: 0.1, Angle: 90}
}

func TestMaxEmptyFrame(t *testing.T) {
	var f Frame
	if f.Max() != 0 {
		t.Errorf("expected 0 max for empty frame, got %f", f.Max())
	}
}

func TestSaturated(t *testing.T) {
	f := frameOf(10, 999, 1000)
	if !f.Saturated(1000) {
		t.Error("expected frame with sample at threshold to report saturated")
	}
	if f.Saturated(1001) {
		t.Error("expected frame below threshold to report unsaturated")
	}
}

func TestSubtract(t *testing.T) {
	sig := frameOf(10, 20, 30)
	bg := frameOf(1, 2, 3)
	net, err := Subtract(sig, bg)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{9, 18, 27}
	for i, v := range net.Counts {
		if v != want[i] {
			t.Errorf("sample %d: expected %f got %f", i, want[i], v)
		}
	}
	// inputs must be untouched
	if sig.Counts[0] != 10 || bg.Counts[0] != 1 {
		t.Error("Subtract mutated its inputs")
	}
}

func TestSubtractLengthMismatch(t *testing.T) {
	_, err := Subtract(frameOf(1, 2), frameOf(1, 2, 3))
	if err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestDenoiserPassThrough(t *testing.T) {
	f := frameOf(5, 50, 5)
	for _, d := range []Denoiser{{}, {Enabled: false, Window: 9}, {Enabled: true, Window: 1}} {
		out := d.Apply(f)
		for i := range out.Counts {
			if out.Counts[i] != f.Counts[i] {
				t.Errorf("denoiser %+v should pass through, sample %d changed", d, i)
			}
		}
	}
}

func TestDenoiserSmooths(t *testing.T) {
	f := frameOf(0, 0, 90, 0, 0)
	out := Denoiser{Enabled: true, Window: 3}.Apply(f)
	if out.Counts[2] >= 90 {
		t.Errorf("expected spike attenuated, got %f", out.Counts[2])
	}
	if math.Abs(out.Counts[2]-30) > 1e-12 {
		t.Errorf("expected centered average of 30, got %f", out.Counts[2])
	}
	// conserve total within interior (edges use a shrunken window)
	if f.Counts[2] == out.Counts[2] {
		t.Error("denoiser did not modify the output copy")
	}
}

func TestTXTRoundTrip(t *testing.T) {
	f := frameOf(12.345, 67.891, 0.009)
	f.Timestamp = time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local)
	buf := &bytes.Buffer{}
	if err := WriteTXT(buf, f); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTXT(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Angle != f.Angle {
		t.Errorf("angle did not round trip, got %f", got.Angle)
	}
	if got.IntegrationTime != f.IntegrationTime {
		t.Errorf("integration time did not round trip, got %f", got.IntegrationTime)
	}
	if got.Len() != f.Len() {
		t.Fatalf("expected %d samples, got %d", f.Len(), got.Len())
	}
	for i := range got.Counts {
		if math.Abs(got.Counts[i]-f.Counts[i]) > 0.01 {
			t.Errorf("sample %d: expected about %f got %f", i, f.Counts[i], got.Counts[i])
		}
	}
}

func TestFitsWriteProducesOutput(t *testing.T) {
	f := frameOf(1, 2, 3, 4)
	f.Timestamp = time.Now()
	buf := &bytes.Buffer{}
	if err := WriteFits(buf, f); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty FITS output")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("SIMPLE")) {
		t.Error("expected FITS magic at start of output")
	}
}
