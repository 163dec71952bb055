package spectra

// Denoiser is an optional smoothing transform applied to frames before
// subtraction.  The zero value is a pass-through.
type Denoiser struct {
	// Enabled turns the transform on.  When false, Apply returns its
	// input unchanged.
	Enabled bool `koanf:"enabled" yaml:"enabled"`

	// Window is the width of the moving average in samples.  Values
	// below 2 are treated as pass-through.  Even values are widened by
	// one so the window stays centered.
	Window int `koanf:"window" yaml:"window"`
}

// Apply smooths the counts of f with a centered moving average and returns
// the result as a new frame.  Edges use a shrunken window rather than
// padding, so the output length equals the input length.
func (d Denoiser) Apply(f Frame) Frame {
	if !d.Enabled || d.Window < 2 || f.Len() == 0 {
		return f
	}
	w := d.Window
	if w%2 == 0 {
		w++
	}
	half := w / 2
	out := f.clone()
	n := len(f.Counts)
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > n-1 {
			hi = n - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += f.Counts[j]
		}
		out.Counts[i] = sum / float64(hi-lo+1)
	}
	return out
}
