// SPDX-License-Identifier: EPL-2.0

package soft

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/utils"
)

// queueReader walks a voice's buffer queue as an audio.Source. It is only
// read from Mix, with the device lock held.
type queueReader struct {
	d        *Device
	v        *voice
	rate     int
	channels int
}

func (q *queueReader) SampleRate() int { return q.rate }
func (q *queueReader) Channels() int   { return q.channels }
func (q *queueReader) BufSize() int    { return 0 }
func (q *queueReader) Close() error    { return nil }

// ReadSamples copies whole frames from the unprocessed part of the queue,
// marking each buffer processed as soon as its last frame is read.
func (q *queueReader) ReadSamples(dst []float32) (int, error) {
	v := q.v
	written := 0

	for written+q.channels <= len(dst) {
		if v.processed >= len(v.queue) {
			break
		}

		b := q.d.buffers[v.queue[v.processed]]
		if b == nil || v.cursor >= b.frames() {
			v.processed++
			v.cursor = 0
			continue
		}

		bch := b.format.Channels()
		base := v.cursor * bch
		for c := range q.channels {
			src := min(c, bch-1)
			dst[written+c] = utils.Int16ToFloat32(b.data[base+src])
		}
		written += q.channels

		v.cursor++
		if v.cursor >= b.frames() {
			v.processed++
			v.cursor = 0
		}
	}

	if written == 0 {
		return 0, io.EOF
	}

	return written, nil
}

// start builds the playback pipeline from the buffer at the head of the
// unprocessed queue. It reports false when nothing is left to play.
func (d *Device) start(v *voice) bool {
	var head *buffer
	for i := v.processed; i < len(v.queue); i++ {
		if b := d.buffers[v.queue[i]]; b != nil && b.frames() > 0 {
			head = b
			break
		}
	}
	if head == nil {
		return false
	}

	q := &queueReader{
		d:        d,
		v:        v,
		rate:     head.rate,
		channels: head.format.Channels(),
	}

	v.resampler = audio.NewResampler(q, d.rate)
	v.resampler.SetPitch(float64(v.pitch))

	v.pipe = v.resampler
	if d.channels == 1 {
		v.pipe = audio.NewMonoMixer(v.resampler)
	}

	return true
}

// Mix renders len(dst)/Channels() frames of every playing source into dst.
// A source that runs out of queued audio stops, the way a hardware source
// does on underrun.
func (d *Device) Mix(dst []float32) {
	clear(dst)

	frames := len(dst) / d.channels
	if frames == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, v := range d.sources {
		if v.state != device.Playing {
			continue
		}

		if v.pipe == nil && !d.start(v) {
			v.halt()
			continue
		}

		pc := v.pipe.Channels()
		need := frames * pc
		if cap(v.tmp) < need {
			v.tmp = make([]float32, need)
		}
		tmp := v.tmp[:need]

		n, err := v.pipe.ReadSamples(tmp)
		got := n / pc

		switch {
		case pc == d.channels:
			for i := range got * pc {
				dst[i] += tmp[i] * v.gain
			}
		default: // mono voice on a stereo output
			for f := range got {
				s := tmp[f] * v.gain
				dst[f*2] += s
				dst[f*2+1] += s
			}
		}

		// a broken pipeline is treated like an underrun
		if err != nil || got < frames {
			v.halt()
		}
	}

	for i, s := range dst {
		dst[i] = max(-1, min(1, s))
	}
}

type byteReader struct {
	d   *Device
	buf []float32
}

// Read fills p with whole frames of float32 little-endian samples. It never
// returns an error; silence is produced when nothing plays.
func (r *byteReader) Read(p []byte) (int, error) {
	frameBytes := 4 * r.d.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	need := frames * r.d.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	buf := r.buf[:need]

	r.d.Mix(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}

	return need * 4, nil
}
