// SPDX-License-Identifier: EPL-2.0

package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Policy selects what happens to a failed device call. Flags combine;
// the zero value ignores errors.
type Policy uint8

const (
	LogConsole Policy = 1 << iota
	LogFile
	Raise

	Ignore Policy = 0
	// DefaultPolicy logs to the console and keeps going.
	DefaultPolicy = LogConsole
)

func (p Policy) String() string {
	if p == Ignore {
		return "ignore"
	}

	var parts []string
	if p&LogConsole != 0 {
		parts = append(parts, "console")
	}
	if p&LogFile != 0 {
		parts = append(parts, "file")
	}
	if p&Raise != 0 {
		parts = append(parts, "raise")
	}

	return strings.Join(parts, "|")
}

var ErrUnknownPolicy = errors.New("unknown device error policy")

// ParsePolicy combines policy names: ignore, console, file, raise.
func ParsePolicy(names ...string) (Policy, error) {
	var p Policy
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "ignore", "":
		case "console":
			p |= LogConsole
		case "file":
			p |= LogFile
		case "raise":
			p |= Raise
		default:
			return Ignore, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
		}
	}

	return p, nil
}

// Checker is the single post-call check every device call goes through.
type Checker struct {
	policy  Policy
	console zerolog.Logger
	file    zerolog.Logger
	closer  io.Closer
}

type CheckerOption func(*Checker)

// WithConsole sends console-policy logs to w instead of stderr.
func WithConsole(w io.Writer) CheckerOption {
	return func(c *Checker) {
		c.console = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
			With().Timestamp().Logger()
	}
}

// WithLogFile sends file-policy logs to w as JSON lines. If w is an
// io.Closer it is closed by Checker.Close.
func WithLogFile(w io.Writer) CheckerOption {
	return func(c *Checker) {
		c.file = zerolog.New(w).With().Timestamp().Logger()
		if cl, ok := w.(io.Closer); ok {
			c.closer = cl
		}
	}
}

func NewChecker(policy Policy, opts ...CheckerOption) *Checker {
	c := &Checker{
		policy: policy,
		file:   zerolog.Nop(),
	}
	WithConsole(os.Stderr)(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OpenChecker builds a checker and, when the policy logs to a file, appends
// to the file at path.
func OpenChecker(policy Policy, path string, opts ...CheckerOption) (*Checker, error) {
	if policy&LogFile != 0 {
		if path == "" {
			return nil, fmt.Errorf("device error log: %w", ErrInvalidValue)
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("device error log: %w", err)
		}
		opts = append(opts, WithLogFile(f))
	}

	return NewChecker(policy, opts...), nil
}

func (c *Checker) Policy() Policy { return c.policy }

// Check applies the policy to err. It returns err only under Raise, so call
// sites can always write `if err := c.Check(...); err != nil`.
func (c *Checker) Check(op string, err error) error {
	err = c.Report(op, err)
	if c.policy&Raise == 0 {
		return nil
	}
	return err
}

// Report logs err according to the policy and returns it whatever the
// policy. Callers that keep their own view of device state use it so a
// logged failure does not read as success.
func (c *Checker) Report(op string, err error) error {
	if err == nil {
		return nil
	}

	if c.policy&LogConsole != 0 {
		c.console.Warn().Err(err).Str("op", op).Msg("device call failed")
	}
	if c.policy&LogFile != 0 {
		c.file.Error().Err(err).Str("op", op).Msg("device call failed")
	}

	return fmt.Errorf("%s: %w", op, err)
}

// Raises reports whether the policy hands errors back to callers.
func (c *Checker) Raises() bool { return c.policy&Raise != 0 }

func (c *Checker) Close() error {
	if c.closer == nil {
		return nil
	}

	err := c.closer.Close()
	c.closer = nil

	return err
}
