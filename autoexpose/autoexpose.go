/*Package autoexpose implements the step-down integration time policy used
during a sweep.

The selector walks an ordered list of integration time presets, longest
(most sensitive) first.  Within one scan point it only ever steps toward
shorter times, so the number of acquisitions per point is bounded by the
list length and the walk cannot oscillate.  Across scan points it remembers
the last time that worked and starts the next point there; a near-saturated
success proactively steps the starting guess down one notch, since emission
only grows as the sweep opens the filter.
*/
package autoexpose

import "github.com/pkg/errors"

// ErrExhausted is returned by Next when the shortest preset still saturates.
var ErrExhausted = errors.New("autoexpose: saturated at shortest preset")

// Selector owns the exposure state for one run.  It is not safe for
// concurrent use; the sweep drives it from a single goroutine.
type Selector struct {
	presets []float64

	// ResumeLast starts each point at the previous point's successful
	// preset instead of the longest one.
	ResumeLast bool

	start int // index tried first at the next point
	cur   int // index of the current attempt
	begun bool
}

// New builds a selector over presets, which must be non-empty and strictly
// decreasing (longest first).
func New(presets []float64) (*Selector, error) {
	if len(presets) == 0 {
		return nil, errors.New("autoexpose: preset list is empty")
	}
	for i := 1; i < len(presets); i++ {
		if presets[i] >= presets[i-1] {
			return nil, errors.Errorf("autoexpose: presets must be strictly decreasing, got %g before %g", presets[i-1], presets[i])
		}
	}
	return &Selector{presets: append([]float64(nil), presets...), ResumeLast: true}, nil
}

// Presets returns a copy of the configured preset list.
func (s *Selector) Presets() []float64 {
	return append([]float64(nil), s.presets...)
}

// Begin starts the attempt sequence for a new scan point.
func (s *Selector) Begin() {
	if !s.ResumeLast {
		s.start = 0
	}
	s.cur = s.start
	s.begun = true
}

// Next returns the integration time to attempt.  The first call after Begin
// must pass saturated=false and yields the starting preset; each
// saturated=true call steps to the next shorter preset.  When the shortest
// preset has already been tried, Next returns ErrExhausted.
func (s *Selector) Next(saturated bool) (float64, error) {
	if !s.begun {
		s.Begin()
	}
	if saturated {
		s.cur++
		if s.cur >= len(s.presets) {
			return 0, ErrExhausted
		}
	}
	return s.presets[s.cur], nil
}

// Confirm records that the current attempt succeeded.  hot indicates the
// signal was near saturation; in that case the next point starts one preset
// shorter so the first attempt there is less likely to be discarded.
func (s *Selector) Confirm(hot bool) {
	s.start = s.cur
	if hot && s.start < len(s.presets)-1 {
		s.start++
	}
	s.begun = false
}

// Reset abandons the resume hint; the next point starts from the longest
// preset.  Used after a point fails so a transiently bright angle does not
// pin the sweep at short exposures.
func (s *Selector) Reset() {
	s.start = 0
	s.begun = false
}
