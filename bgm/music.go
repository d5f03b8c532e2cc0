// SPDX-License-Identifier: EPL-2.0

package bgm

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ik5/audstream/fade"
)

// Kind selects how Music picks what plays.
type Kind int

const (
	// SingleTrack loops one song forever.
	SingleTrack Kind = iota
	// Pool plays songs one after another, picked at random, never the same
	// song twice in a row when there is a choice.
	Pool
)

func (k Kind) String() string {
	switch k {
	case SingleTrack:
		return "single"
	case Pool:
		return "pool"
	default:
		return "unknown"
	}
}

// Music is a background music controller. Both kinds share volume, pitch and
// fade handling; only song selection differs.
type Music struct {
	mu sync.Mutex

	kind    Kind
	songs   []*Song
	current *Song

	volume float32 // set by the owner
	local  float32 // driven by fades
	pitch  float32

	fade *fade.Fade
	then func()
}

// NewSingleTrack plays song on a loop.
func NewSingleTrack(song *Song) *Music {
	song.SetLooping(true)

	return &Music{
		kind:    SingleTrack,
		songs:   []*Song{song},
		current: song,
		volume:  1,
		local:   1,
		pitch:   1,
	}
}

// NewPool shuffles between songs. Each song plays once through before the
// next is picked.
func NewPool(songs ...*Song) (*Music, error) {
	if len(songs) == 0 {
		return nil, ErrNoSongs
	}

	return &Music{
		kind:   Pool,
		songs:  songs,
		volume: 1,
		local:  1,
		pitch:  1,
	}, nil
}

func (m *Music) Kind() Kind { return m.kind }

// Songs returns the songs the music was built with.
func (m *Music) Songs() []*Song { return m.songs }

// Current returns the song now selected, nil for a pool that is not started.
func (m *Music) Current() *Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Music) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kind == SingleTrack {
		return errors.Join(
			m.apply(),
			m.current.SetPitch(m.pitch),
			m.current.Play(),
		)
	}

	return m.next()
}

func (m *Music) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}

	err := m.current.Stop()
	if m.kind == Pool {
		m.current = nil
	}
	m.local = 1
	m.fade = nil
	m.then = nil

	return err
}

// Update moves a pool on to its next song once the current one has ended,
// and advances any running fade.
func (m *Music) Update(elapsed time.Duration) error {
	m.mu.Lock()

	var err error
	if m.kind == Pool && m.current != nil && m.current.FinishedPlaying() {
		err = m.next()
	}

	var then func()
	if m.fade != nil {
		m.local = m.fade.Update(elapsed)
		m.apply()

		if m.fade.Done() {
			m.fade = nil
			then, m.then = m.then, nil
		}
	}

	m.mu.Unlock()

	// then may call back into the music, or into whoever owns it
	if then != nil {
		then()
	}

	return err
}

// FadeOut ramps the music down to silence over d and calls then, if not nil,
// from the Update that completes the fade.
func (m *Music) FadeOut(d time.Duration, then func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fade = fade.New(d, m.local, 0, fade.Linear)
	m.then = then
}

// FadeIn ramps the music from silence back to full volume over d.
func (m *Music) FadeIn(d time.Duration, curve fade.Curve) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.local = 0
	m.apply()
	m.fade = fade.New(d, 0, 1, curve)
	m.then = nil
}

// Fading reports whether a fade is in progress.
func (m *Music) Fading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fade != nil
}

func (m *Music) Volume() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Music) SetVolume(v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = max(v, 0)
	return m.apply()
}

func (m *Music) Pitch() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pitch
}

func (m *Music) SetPitch(p float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pitch = p
	if m.current == nil {
		return nil
	}
	return m.current.SetPitch(p)
}

// Dispose stops the music and disposes every song.
func (m *Music) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]error, 0, len(m.songs))
	for _, s := range m.songs {
		errs = append(errs, s.Dispose())
	}
	m.current = nil
	m.fade = nil
	m.then = nil

	return errors.Join(errs...)
}

func (m *Music) apply() error {
	if m.current == nil {
		return nil
	}
	return m.current.SetVolume(m.volume * m.local)
}

// next stops the current song and starts a different one.
func (m *Music) next() error {
	var errs []error
	if m.current != nil {
		errs = append(errs, m.current.Stop())
	}

	m.current = m.pick()
	m.current.SetLooping(false)
	errs = append(errs,
		m.apply(),
		m.current.SetPitch(m.pitch),
		m.current.Play(),
	)

	return errors.Join(errs...)
}

func (m *Music) pick() *Song {
	if len(m.songs) == 1 {
		return m.songs[0]
	}

	for {
		s := m.songs[rand.IntN(len(m.songs))]
		if s != m.current {
			return s
		}
	}
}
