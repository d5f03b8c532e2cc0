// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audstream/bgm"
	"github.com/ik5/audstream/fade"
	"github.com/ik5/audstream/output"
	"github.com/ik5/audstream/output/malgo"
	"github.com/ik5/audstream/output/oto"
)

// tickInterval paces fades and pool changes while playing.
const tickInterval = 50 * time.Millisecond

var playCmd = &cobra.Command{
	Use:   "play FILE...",
	Short: "Play audio files",
	Long: `Play one file, or shuffle between several, on the speakers.

A single file plays once unless --loop is given. Several files form a pool that
keeps picking a different song until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().Bool("loop", false, "loop a single file")
	playCmd.Flags().String("backend", "oto", "audio backend (oto, malgo)")
	playCmd.Flags().Duration("latency", 50*time.Millisecond, "output latency")
	playCmd.Flags().Duration("fade-in", 0, "fade the music in over this long")

	bind(playCmd, map[string]string{
		"output.backend": "backend",
		"output.latency": "latency",
	})
}

func runPlay(cmd *cobra.Command, args []string) error {
	loop, _ := cmd.Flags().GetBool("loop")
	fadeIn, _ := cmd.Flags().GetDuration("fade-in")

	e, err := setup(v, false)
	if err != nil {
		return err
	}
	defer e.Close()

	sink, err := openSink(e)
	if err != nil {
		return err
	}
	defer sink.Close()

	music, err := buildMusic(e, args, loop)
	if err != nil {
		return err
	}
	if fadeIn > 0 {
		music.FadeIn(fadeIn, fade.Smooth)
	}
	if err := e.mgr.SetMusic(music); err != nil {
		return err
	}

	e.log.Info().Strs("files", args).Str("music", music.Kind().String()).Msg("playing")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case sig := <-signalChan:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, stopping...\n", sig)
			return nil
		case now := <-ticker.C:
			if err := e.mgr.Update(now.Sub(last)); err != nil {
				e.log.Warn().Err(err).Msg("update")
			}
			last = now

			if music.Kind() == bgm.SingleTrack && music.Current().FinishedPlaying() {
				return nil
			}
		}
	}
}

func buildMusic(e *engine, files []string, loop bool) (*bgm.Music, error) {
	songs := make([]*bgm.Song, 0, len(files))
	for _, f := range files {
		song, err := e.mgr.OpenSong(f)
		if err != nil {
			for _, s := range songs {
				_ = s.Dispose()
			}
			return nil, err
		}
		songs = append(songs, song)
	}

	if len(songs) == 1 {
		music := bgm.NewSingleTrack(songs[0])
		songs[0].SetLooping(loop)
		return music, nil
	}

	return bgm.NewPool(songs...)
}

func openSink(e *engine) (io.Closer, error) {
	var (
		sink io.Closer
		err  error
	)

	switch e.cfg.Output.Backend {
	case "oto":
		sink, err = oto.Open(e.dev, oto.WithLatency(e.cfg.Output.Latency), oto.WithLogger(e.log))
	case "malgo":
		sink, err = malgo.Open(e.dev,
			malgo.WithPeriod(int(e.cfg.Output.Latency/time.Millisecond)),
			malgo.WithLogger(e.log))
	default:
		return nil, fmt.Errorf("%w: %q cannot play to speakers", output.ErrBackend, e.cfg.Output.Backend)
	}
	if err != nil {
		return nil, err
	}

	return sink, nil
}
