// SPDX-License-Identifier: EPL-2.0

package audstream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/bgm"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/formats"
	"github.com/ik5/audstream/stream"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("audstream: manager closed")

type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithChecker(c *device.Checker) Option {
	return func(m *Manager) { m.chk = c }
}

// WithStreamOptions applies opts to every song the manager opens.
func WithStreamOptions(opts ...stream.StreamOption) Option {
	return func(m *Manager) { m.sopts = append(m.sopts, opts...) }
}

// WithRegistry replaces the bundled decoders.
func WithRegistry(r *audio.Registry) Option {
	return func(m *Manager) { m.reg = r }
}

// Manager owns a Streamer and the background music playing on it.
type Manager struct {
	log zerolog.Logger
	chk *device.Checker
	reg *audio.Registry

	sopts    []stream.StreamOption
	streamer *stream.Streamer
	manual   bool

	mu     sync.Mutex
	music  *bgm.Music
	master float32
	volume float32
	pitch  float32
	closed bool
}

func New(dev device.Device, cfg stream.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		log:    zerolog.Nop(),
		master: 1,
		volume: 1,
		pitch:  1,
	}
	for _, o := range opts {
		o(m)
	}
	if m.reg == nil {
		m.reg = formats.NewRegistry()
	}

	stOpts := []stream.Option{stream.WithLogger(m.log)}
	if m.chk != nil {
		stOpts = append(stOpts, stream.WithChecker(m.chk))
	}

	st, err := stream.NewStreamer(dev, cfg, stOpts...)
	if err != nil {
		return nil, fmt.Errorf("audstream: %w", err)
	}
	m.streamer = st
	m.manual = st.UpdateRate() == 0

	return m, nil
}

func (m *Manager) Streamer() *stream.Streamer { return m.streamer }
func (m *Manager) Registry() *audio.Registry  { return m.reg }

// Music returns the music now set, or nil.
func (m *Manager) Music() *bgm.Music {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.music
}

// OpenSong opens and prepares path on the manager's streamer.
func (m *Manager) OpenSong(path string) (*bgm.Song, error) {
	return bgm.OpenSong(m.streamer, m.reg, path, m.sopts...)
}

// SetMusic disposes the music now playing and starts music in its place. A
// nil music only stops what plays.
func (m *Manager) SetMusic(music *bgm.Music) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	var errs []error
	if m.music != nil && m.music != music {
		errs = append(errs, m.music.Dispose())
	}
	m.music = music
	if music == nil {
		return errors.Join(errs...)
	}

	errs = append(errs,
		music.SetVolume(m.master*m.volume),
		music.SetPitch(m.pitch),
		music.Start(),
	)
	if err := errors.Join(errs...); err != nil {
		m.log.Error().Err(err).Str("music", music.Kind().String()).Msg("set music")
		return err
	}

	return nil
}

// SetBGM plays the file at path as single-track music.
func (m *Manager) SetBGM(path string, looping bool) error {
	song, err := m.OpenSong(path)
	if err != nil {
		return err
	}

	music := bgm.NewSingleTrack(song)
	song.SetLooping(looping)

	return m.SetMusic(music)
}

func (m *Manager) MasterVolume() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

func (m *Manager) SetMasterVolume(v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.master = max(v, 0)
	return m.applyVolume()
}

func (m *Manager) MusicVolume() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Manager) SetMusicVolume(v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = max(v, 0)
	return m.applyVolume()
}

func (m *Manager) Pitch() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pitch
}

func (m *Manager) SetPitch(p float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pitch = p
	if m.music == nil {
		return nil
	}
	return m.music.SetPitch(p)
}

func (m *Manager) applyVolume() error {
	if m.music == nil {
		return nil
	}
	return m.music.SetVolume(m.master * m.volume)
}

// Update advances the music by elapsed. In manual mode it also runs one
// refill cycle.
func (m *Manager) Update(elapsed time.Duration) error {
	m.mu.Lock()
	music, closed := m.music, m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}

	var err error
	if music != nil {
		err = music.Update(elapsed)
	}
	if m.manual {
		m.streamer.Update()
	}

	return err
}

// Close disposes the music, then shuts the streamer down.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	music := m.music
	m.music = nil
	m.mu.Unlock()

	var errs []error
	if music != nil {
		errs = append(errs, music.Dispose())
	}
	errs = append(errs, m.streamer.Close())

	return errors.Join(errs...)
}
