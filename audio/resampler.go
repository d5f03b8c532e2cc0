// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"

	"github.com/ik5/audstream/utils"
)

// Resampler streams from src to a target sample rate using cubic interpolation.
// Works on interleaved samples and preserves the channel count. The pitch
// scales the step through the source, so 2.0 plays an octave up at the same
// output rate.
type Resampler struct {
	src      Source
	srcRate  float64
	dstRate  float64
	pitch    float64
	step     float64 // source frames consumed per output frame
	channels int

	// frames[0] = t-1, frames[1] = t0, frames[2] = t+1, frames[3] = t+2
	frames   [4][]float32
	hasFrame [4]bool
	primed   bool

	// fractional position between frames[1] and frames[2]
	pos float64

	srcBuf []float32
	eof    bool

	// one-pole low-pass, only active while stepping faster than 1:1
	filterState []float32
	filterAlpha float32
	seeded      bool
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()

	r := &Resampler{
		src:         src,
		srcRate:     float64(src.SampleRate()),
		dstRate:     float64(dstRate),
		pitch:       1,
		channels:    channels,
		srcBuf:      make([]float32, channels),
		filterState: make([]float32, channels),
	}

	for i := range r.frames {
		r.frames[i] = make([]float32, channels)
	}

	r.updateStep()

	return r
}

func (r *Resampler) SampleRate() int { return int(r.dstRate) }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

// Pitch returns the current playback speed factor.
func (r *Resampler) Pitch() float64 { return r.pitch }

// SetPitch changes the playback speed factor. Non-positive values are ignored.
func (r *Resampler) SetPitch(p float64) {
	if p <= 0 {
		return
	}

	r.pitch = p
	r.updateStep()
}

func (r *Resampler) updateStep() {
	r.step = r.srcRate * r.pitch / r.dstRate
	if r.step > 1.0 {
		r.filterAlpha = 0.5
	} else {
		r.filterAlpha = 0
	}
}

func (r *Resampler) Close() error {
	err := r.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (r *Resampler) readFrame(slot int) (bool, error) {
	n, err := r.src.ReadSamples(r.srcBuf[:r.channels])
	got := n >= r.channels
	if got {
		if !r.seeded {
			// start the filter on the first sample to avoid a warm-up ramp
			copy(r.filterState, r.srcBuf[:r.channels])
			r.seeded = true
		}
		copy(r.frames[slot], r.srcBuf[:r.channels])
		if r.filterAlpha > 0 {
			for c := range r.channels {
				r.frames[slot][c] = r.filterAlpha*r.frames[slot][c] + (1-r.filterAlpha)*r.filterState[c]
				r.filterState[c] = r.frames[slot][c]
			}
		}
	}

	if err == io.EOF {
		r.eof = true
		return got, nil
	}
	if err != nil {
		return got, fmt.Errorf("%w", err)
	}

	return got, nil
}

// prime loads t0..t+2; t-1 starts as a copy of t0.
func (r *Resampler) prime() error {
	r.primed = true

	for i := 1; i < len(r.frames); i++ {
		if r.eof {
			break
		}

		got, err := r.readFrame(i)
		if err != nil {
			return err
		}
		r.hasFrame[i] = got
	}

	if !r.hasFrame[1] {
		return io.EOF
	}

	copy(r.frames[0], r.frames[1])
	r.hasFrame[0] = true

	return nil
}

// advance shifts the window by one source frame.
func (r *Resampler) advance() error {
	copy(r.frames[0], r.frames[1])
	copy(r.frames[1], r.frames[2])
	copy(r.frames[2], r.frames[3])
	r.hasFrame[0] = r.hasFrame[1]
	r.hasFrame[1] = r.hasFrame[2]
	r.hasFrame[2] = r.hasFrame[3]
	r.hasFrame[3] = false

	if r.eof {
		return nil
	}

	got, err := r.readFrame(3)
	if err != nil {
		return err
	}
	r.hasFrame[3] = got

	return nil
}

// ReadSamples produces dst samples at r.dstRate.
// dst length should be a multiple of r.channels.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	written := 0
	framesNeeded := len(dst) / r.channels

	for written < framesNeeded {
		for r.pos >= 1.0 {
			r.pos -= 1.0
			if err := r.advance(); err != nil {
				return written * r.channels, err
			}
		}

		// the window ran dry: t0 is the last frame the source ever produced
		if !r.hasFrame[1] || !r.hasFrame[2] {
			return written * r.channels, io.EOF
		}

		alpha := float32(r.pos)
		base := written * r.channels

		for c := range r.channels {
			y1 := r.frames[1][c]
			y2 := r.frames[2][c]

			y0 := y1
			if r.hasFrame[0] {
				y0 = r.frames[0][c]
			}

			y3 := y2
			if r.hasFrame[3] {
				y3 = r.frames[3][c]
			}

			dst[base+c] = utils.CubicInterpolate(y0, y1, y2, y3, alpha)
		}

		written++
		r.pos += r.step
	}

	return written * r.channels, nil
}
