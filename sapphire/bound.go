package sapphire

// Configured binds a pulse configuration to a pulser so callers that open
// all their devices uniformly can connect it without arguments.
type Configured struct {
	P interface {
		Connect(PulseConfig) error
		SetTrigger(bool) error
		Close() error
	}
	Config PulseConfig
}

// Connect opens and programs the pulser with the bound configuration.
func (c Configured) Connect() error { return c.P.Connect(c.Config) }

// SetTrigger gates the pulse output.
func (c Configured) SetTrigger(on bool) error { return c.P.SetTrigger(on) }

// Close quiesces and releases the pulser.
func (c Configured) Close() error { return c.P.Close() }
