package sapphire

// Sim is an in-memory stand-in for the pulse generator.  OnSet, when
// non-nil, is invoked on every trigger change so a simulated spectrometer
// can observe the excitation state.
type Sim struct {
	// On is the current trigger state.
	On bool

	// Sets counts SetTrigger calls.
	Sets int

	// OnSet observes trigger changes.
	OnSet func(bool)
}

func (s *Sim) Connect(PulseConfig) error { return nil }

func (s *Sim) SetTrigger(on bool) error {
	s.On = on
	s.Sets++
	if s.OnSet != nil {
		s.OnSet(on)
	}
	return nil
}

func (s *Sim) Close() error {
	s.On = false
	return nil
}
