// SPDX-License-Identifier: EPL-2.0

// Package stream feeds long-running playback sources from decoders.
//
// A Stream owns a decoder, a device source and a small ring of device
// buffers (three by default). Prepare decodes the first buffer right away and
// registers the stream with its Streamer, which fills the remaining buffers
// and, from then on, replaces every buffer the device reports as processed.
// When the decoder runs dry a looping stream rewinds; any other stream
// completes its Done channel and leaves the Streamer.
//
// The Streamer runs its refill cycle on a background goroutine at
// Config.UpdateRate cycles per second, or not at all in manual mode, where the
// host calls Update on its own cadence.
//
//	st, _ := stream.NewStreamer(dev, stream.DefaultConfig())
//	defer st.Close()
//
//	s, _ := stream.OpenFile(st, formats.NewRegistry(), "theme.ogg", stream.WithLooping(true))
//	defer s.Dispose()
//	_ = s.Play()
package stream
