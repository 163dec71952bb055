package autoexpose

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for empty preset list")
	}
	if _, err := New([]float64{0.1, 4.0}); err == nil {
		t.Error("expected error for ascending presets")
	}
	if _, err := New([]float64{1.0, 1.0}); err == nil {
		t.Error("expected error for duplicate presets")
	}
	if _, err := New([]float64{4.0}); err != nil {
		t.Errorf("single preset should be valid: %v", err)
	}
}

func TestMonotonicDescentAndExhaustion(t *testing.T) {
	presets := []float64{4.0, 1.0, 0.5, 0.1}
	s, err := New(presets)
	if err != nil {
		t.Fatal(err)
	}
	s.Begin()
	prev := -1
	for i := 0; ; i++ {
		sat := i > 0
		tm, err := s.Next(sat)
		if err != nil {
			if !errors.Is(err, ErrExhausted) {
				t.Fatalf("unexpected error %v", err)
			}
			if i != len(presets) {
				t.Errorf("exhausted after %d attempts, expected %d", i, len(presets))
			}
			break
		}
		idx := -1
		for j, p := range presets {
			if p == tm {
				idx = j
			}
		}
		if idx < 0 {
			t.Fatalf("selector returned %g which is not a preset", tm)
		}
		if idx <= prev {
			t.Errorf("index did not strictly decrease in sensitivity: %d after %d", idx, prev)
		}
		prev = idx
	}
}

func TestExhaustionDeterministic(t *testing.T) {
	order := func() []float64 {
		s, _ := New([]float64{4.0, 0.5, 0.1})
		s.Begin()
		var got []float64
		sat := false
		for {
			tm, err := s.Next(sat)
			if err != nil {
				return got
			}
			got = append(got, tm)
			sat = true
		}
	}
	a, b := order(), order()
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("attempt %d differs: %g vs %g", i, a[i], b[i])
		}
	}
}

func TestResumeFromLastSuccessful(t *testing.T) {
	s, _ := New([]float64{4.0, 1.0, 0.1})
	s.Begin()
	tm, _ := s.Next(false)
	if tm != 4.0 {
		t.Fatalf("first attempt should be longest preset, got %g", tm)
	}
	tm, _ = s.Next(true)
	if tm != 1.0 {
		t.Fatalf("expected step down to 1.0, got %g", tm)
	}
	s.Confirm(false)

	s.Begin()
	tm, _ = s.Next(false)
	if tm != 1.0 {
		t.Errorf("next point should resume at 1.0, got %g", tm)
	}
}

func TestHotConfirmStepsDown(t *testing.T) {
	s, _ := New([]float64{4.0, 1.0, 0.1})
	s.Begin()
	s.Next(false)
	s.Confirm(true)
	s.Begin()
	tm, _ := s.Next(false)
	if tm != 1.0 {
		t.Errorf("hot success should step the next start down, got %g", tm)
	}

	// at the shortest preset, hot cannot step further
	s, _ = New([]float64{4.0})
	s.Begin()
	s.Next(false)
	s.Confirm(true)
	s.Begin()
	tm, _ = s.Next(false)
	if tm != 4.0 {
		t.Errorf("single preset list must always return 4.0, got %g", tm)
	}
}

func TestResumeDisabled(t *testing.T) {
	s, _ := New([]float64{4.0, 0.1})
	s.ResumeLast = false
	s.Begin()
	s.Next(false)
	s.Next(true)
	s.Confirm(false)
	s.Begin()
	tm, _ := s.Next(false)
	if tm != 4.0 {
		t.Errorf("with resume disabled each point starts at the longest preset, got %g", tm)
	}
}

func TestResetForgetsHint(t *testing.T) {
	s, _ := New([]float64{4.0, 0.1})
	s.Begin()
	s.Next(false)
	s.Next(true)
	s.Confirm(false)
	s.Reset()
	s.Begin()
	tm, _ := s.Next(false)
	if tm != 4.0 {
		t.Errorf("after Reset the next point starts at the longest preset, got %g", tm)
	}
}
