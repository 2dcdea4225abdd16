// Package params maps raw control positions (slider ticks) onto validated
// synthesis parameters. Every function here is pure.
package params

import (
	"math"

	"github.com/hammamikhairi/vicvoix/internal/domain"
)

// DefaultControlMax is the slider range used by the form.
const DefaultControlMax = 100

// RateFromControl maps a control position onto a speaking rate.
//
// The curve has two linear segments joined at a quarter of the range:
// 0 -> 0.25, 25% -> 1.0, 100% -> 4.0. Out-of-range positions are clamped
// first. A non-positive controlMax yields the position-0 value.
func RateFromControl(position, controlMax int) float64 {
	if controlMax <= 0 {
		return domain.MinSpeakingRate
	}
	p := float64(clampPosition(position, controlMax))
	max := float64(controlMax)
	q := max / 4

	var rate float64
	if p < q {
		rate = domain.MinSpeakingRate + (p/q)*(domain.DefaultRate-domain.MinSpeakingRate)
	} else {
		rate = domain.DefaultRate + ((p-q)/(max-q))*(domain.MaxSpeakingRate-domain.DefaultRate)
	}
	return ClampRate(rate)
}

// PitchFromControl maps a control position linearly onto -20..+20 semitones.
func PitchFromControl(position, controlMax int) float64 {
	if controlMax <= 0 {
		return domain.MinPitch
	}
	p := float64(clampPosition(position, controlMax))
	return ClampPitch(domain.MinPitch + (p/float64(controlMax))*(domain.MaxPitch-domain.MinPitch))
}

// ControlFromRate is the inverse of RateFromControl, rounded to the
// nearest position. Used to place a slider at a configured default.
func ControlFromRate(rate float64, controlMax int) int {
	if controlMax <= 0 {
		return 0
	}
	rate = ClampRate(rate)
	max := float64(controlMax)
	q := max / 4

	var p float64
	if rate < domain.DefaultRate {
		p = (rate - domain.MinSpeakingRate) / (domain.DefaultRate - domain.MinSpeakingRate) * q
	} else {
		p = q + (rate-domain.DefaultRate)/(domain.MaxSpeakingRate-domain.DefaultRate)*(max-q)
	}
	return clampPosition(int(math.Round(p)), controlMax)
}

// ControlFromPitch is the inverse of PitchFromControl.
func ControlFromPitch(pitch float64, controlMax int) int {
	if controlMax <= 0 {
		return 0
	}
	pitch = ClampPitch(pitch)
	p := (pitch - domain.MinPitch) / (domain.MaxPitch - domain.MinPitch) * float64(controlMax)
	return clampPosition(int(math.Round(p)), controlMax)
}

// ClampRate forces a rate into the accepted range.
func ClampRate(rate float64) float64 {
	return clamp(rate, domain.MinSpeakingRate, domain.MaxSpeakingRate)
}

// ClampPitch forces a pitch into the accepted range.
func ClampPitch(pitch float64) float64 {
	return clamp(pitch, domain.MinPitch, domain.MaxPitch)
}

func clampPosition(position, controlMax int) int {
	if position < 0 {
		return 0
	}
	if position > controlMax {
		return controlMax
	}
	return position
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
