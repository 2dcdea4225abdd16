package params

// Slider is a bounded control position, as moved by the form's keys.
type Slider struct {
	Position int
	Max      int
}

// NewSlider returns a slider clamped into [0, max].
func NewSlider(position, max int) Slider {
	if max < 0 {
		max = 0
	}
	return Slider{Position: clampPosition(position, max), Max: max}
}

// Step moves the slider by delta, staying in range.
func (s Slider) Step(delta int) Slider {
	return NewSlider(s.Position+delta, s.Max)
}

// Fraction returns the position as a 0..1 ratio.
func (s Slider) Fraction() float64 {
	if s.Max <= 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Max)
}

// Rate is the speaking rate at the current position.
func (s Slider) Rate() float64 { return RateFromControl(s.Position, s.Max) }

// Pitch is the pitch in semitones at the current position.
func (s Slider) Pitch() float64 { return PitchFromControl(s.Position, s.Max) }
