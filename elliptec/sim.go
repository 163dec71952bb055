package elliptec

// Sim is an in-memory stand-in for a rotation stage, used for offline runs
// and tests.  Moves are instantaneous.
type Sim struct {
	// Angle is the current position in degrees.
	Angle float64

	// Moves counts completed MoveTo calls.
	Moves int

	// Homed reports whether Home has been called.
	Homed bool
}

func (s *Sim) Connect() error { return nil }
func (s *Sim) Close() error   { return nil }

func (s *Sim) Home() error {
	s.Angle = 0
	s.Homed = true
	return nil
}

func (s *Sim) MoveTo(deg float64) error {
	s.Angle = deg
	s.Moves++
	return nil
}

func (s *Sim) GetAngle() (float64, error) {
	return s.Angle, nil
}
