// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audstream/output/wav"
)

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a file to WAV faster than real time",
	Long: `Render streams FILE through the engine without a sound card and writes the
mix as 16-bit PCM WAV. The streamer runs in manual mode and is refilled between
every rendered chunk.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringP("out", "o", "out.wav", "output WAV file")
	renderCmd.Flags().Duration("duration", 10*time.Second, "length to render")
	renderCmd.Flags().Bool("loop", false, "loop the file for the whole duration")
}

func runRender(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	d, _ := cmd.Flags().GetDuration("duration")
	loop, _ := cmd.Flags().GetBool("loop")

	e, err := setup(v, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.mgr.SetBGM(args[0], loop); err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	chunk := time.Duration(wav.ChunkFrames) * time.Second / time.Duration(e.dev.SampleRate())
	tick := func() {
		if err := e.mgr.Update(chunk); err != nil {
			e.log.Warn().Err(err).Msg("update")
		}
	}

	frames, err := wav.Render(e.dev, f, d, tick)
	if err != nil {
		return err
	}

	e.log.Info().Str("file", out).Int("frames", frames).Msg("rendered")
	return nil
}
