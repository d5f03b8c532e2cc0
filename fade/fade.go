// SPDX-License-Identifier: EPL-2.0

// Package fade moves a volume between two levels over time.
package fade

import (
	"math"
	"time"
)

// Curve maps linear progress t in [0, 1] to eased progress in [0, 1].
type Curve int

const (
	Linear Curve = iota
	Smooth
	Exponential
	Logarithmic
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Smooth:
		return "smooth"
	case Exponential:
		return "exponential"
	case Logarithmic:
		return "logarithmic"
	default:
		return "unknown"
	}
}

// Apply eases t. Values outside [0, 1] are clamped first.
func (c Curve) Apply(t float64) float64 {
	t = max(0, min(1, t))

	switch c {
	case Smooth:
		return 0.5 - 0.5*math.Cos(math.Pi*t)
	case Exponential:
		return t * t
	case Logarithmic:
		return 1 - (1-t)*(1-t)
	default:
		return t
	}
}

// Fade is a single volume ramp. The zero Duration jumps to To on the first
// Update.
type Fade struct {
	Duration time.Duration
	From     float32
	To       float32
	Curve    Curve

	elapsed time.Duration
	volume  float32
	started bool
}

func New(d time.Duration, from, to float32, curve Curve) *Fade {
	return &Fade{Duration: d, From: from, To: to, Curve: curve}
}

// Update advances the fade by elapsed and returns the new volume.
func (f *Fade) Update(elapsed time.Duration) float32 {
	f.started = true
	f.elapsed += max(elapsed, 0)

	if f.Done() {
		f.volume = f.To
		return f.volume
	}

	t := f.Curve.Apply(float64(f.elapsed) / float64(f.Duration))
	f.volume = f.From + float32(t)*(f.To-f.From)

	return f.volume
}

// Volume is the level reached by the last Update, or From before any.
func (f *Fade) Volume() float32 {
	if !f.started {
		return f.From
	}
	return f.volume
}

func (f *Fade) Elapsed() time.Duration { return f.elapsed }

func (f *Fade) Done() bool { return f.elapsed >= f.Duration }
