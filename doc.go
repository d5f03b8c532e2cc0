// SPDX-License-Identifier: EPL-2.0

// Package audstream streams long audio, such as background music, to a
// playback device through a small ring of double-buffered device buffers.
//
// The work is split across subpackages:
//   - device: the playback device contract, its error policy and the owned
//     source and buffer ring handles
//   - device/soft: a pure Go device that mixes its sources in software
//   - stream: the Stream and the Streamer that keeps streams refilled
//   - bgm: songs and background music (single track or shuffled pool)
//   - fade: volume envelopes used by bgm
//   - formats: decoders for Ogg Vorbis, WAV, MP3 and AIFF
//   - output/oto, output/malgo, output/wav: sinks that drain a soft device
//
// # Quick Start
//
// Manager ties a Streamer to the music playing on it:
//
//	dev, _ := soft.New(soft.DefaultConfig())
//	sink, _ := oto.Open(dev)
//	defer sink.Close()
//
//	m, _ := audstream.New(dev, stream.DefaultConfig())
//	defer m.Close()
//
//	_ = m.SetBGM("theme.ogg", true)
//
// A host that drives its own loop sets stream.Config.Manual and calls
// Manager.Update once per frame; otherwise the Streamer refills on its own
// goroutine and Update only advances fades and pool songs.
//
// # Background Music
//
// A pool plays its songs one after another, never the same song twice in a
// row when it has a choice:
//
//	a, _ := m.OpenSong("a.ogg")
//	b, _ := m.OpenSong("b.ogg")
//	pool, _ := bgm.NewPool(a, b)
//	_ = m.SetMusic(pool)
//
// See the individual subpackages for more detailed documentation.
package audstream
