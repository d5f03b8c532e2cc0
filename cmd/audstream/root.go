// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ik5/audstream"
	"github.com/ik5/audstream/config"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/device/soft"
	"github.com/ik5/audstream/logger"
	"github.com/ik5/audstream/stream"
)

var (
	cfgFile string
	verbose bool

	v = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "audstream",
	Short: "Stream audio files through a double-buffered playback engine",
	Long: `audstream decodes Ogg Vorbis, WAV, MP3 and AIFF files into a small ring of
device buffers and keeps them refilled while they play.

Settings come from audstream.yaml, AUDSTREAM_* environment variables and flags,
in increasing order of precedence.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./audstream.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Int("buffer-size", stream.DefaultBufferSize, "samples per device buffer")
	rootCmd.PersistentFlags().Int("buffer-count", stream.DefaultBufferCount, "device buffers per stream")
	rootCmd.PersistentFlags().Int("sample-rate", 44100, "output sample rate")
	rootCmd.PersistentFlags().Int("channels", 2, "output channels (1 or 2)")
	rootCmd.PersistentFlags().Float32("volume", 1, "music volume")
	rootCmd.PersistentFlags().Float32("pitch", 1, "playback speed factor")

	bind(rootCmd, map[string]string{
		"logging.level":       "log-level",
		"logging.format":      "log-format",
		"stream.buffer_size":  "buffer-size",
		"stream.buffer_count": "buffer-count",
		"output.sample_rate":  "sample-rate",
		"output.channels":     "channels",
		"audio.music_volume":  "volume",
		"audio.pitch":         "pitch",
	})

	rootCmd.AddCommand(playCmd, renderCmd, versionCmd)
}

func bind(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		_ = v.BindPFlag(key, f)
	}
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if verbose {
		v.Set("logging.level", "debug")
	}
}

// engine is what every subcommand runs on.
type engine struct {
	cfg *config.Config
	log zerolog.Logger
	dev *soft.Device
	chk *device.Checker
	mgr *audstream.Manager
}

// setup loads the configuration and builds a software device with a manager
// on top of it. manual forces the streamer into manual mode.
func setup(vp *viper.Viper, manual bool) (*engine, error) {
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if manual {
		cfg.Stream.Manual = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	chk, err := device.OpenChecker(policy, cfg.Device.ErrorLog)
	if err != nil {
		return nil, err
	}

	dev, err := soft.New(soft.Config{SampleRate: cfg.Output.SampleRate, Channels: cfg.Output.Channels})
	if err != nil {
		_ = chk.Close()
		return nil, err
	}

	mgr, err := audstream.New(dev, cfg.Streamer(),
		audstream.WithLogger(logger.WithComponent(log, "stream")),
		audstream.WithChecker(chk),
		audstream.WithStreamOptions(stream.WithBufferCount(cfg.Stream.BufferCount)))
	if err != nil {
		_ = chk.Close()
		return nil, err
	}

	e := &engine{cfg: cfg, log: log, dev: dev, chk: chk, mgr: mgr}
	if err := e.applyAudio(); err != nil {
		_ = e.Close()
		return nil, err
	}

	return e, nil
}

func (e *engine) applyAudio() error {
	if err := e.mgr.SetMasterVolume(e.cfg.Audio.MasterVolume); err != nil {
		return err
	}
	if err := e.mgr.SetMusicVolume(e.cfg.Audio.MusicVolume); err != nil {
		return err
	}
	return e.mgr.SetPitch(e.cfg.Audio.Pitch)
}

func (e *engine) Close() error {
	err := e.mgr.Close()
	if cerr := e.chk.Close(); err == nil {
		err = cerr
	}
	return err
}
