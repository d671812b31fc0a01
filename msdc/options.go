package msdc

import (
	"time"

	log "github.com/fclairamb/go-log"
	lognoop "github.com/fclairamb/go-log/noop"
)

// Config holds the session configuration.
type Config struct {
	// Logger receives every command, the probe progress and failures.
	Logger log.Logger

	// Delayer performs all waits of the session.
	Delayer Delayer

	// Platform switches clocks, power and pins outside the register window.
	Platform Platform

	// CommandTimeout bounds the wait for the status of a command.
	CommandTimeout time.Duration

	// DataTimeout bounds the wait for the data of a single block.
	DataTimeout time.Duration

	// ResetTimeout bounds the wait for the controller reset bit to clear.
	ResetTimeout time.Duration

	// PollStep is the delay between two polls of a status register.
	PollStep time.Duration

	// IdentClockKHz is the bus clock during card identification (at most 400 kHz).
	IdentClockKHz uint32

	// OperatingClockKHz is the bus clock once the card is selected.
	OperatingClockKHz uint32

	// OpCondRetries is the number of ACMD41 attempts before giving up.
	OpCondRetries int

	// OpCondInterval is the delay between two ACMD41 attempts.
	OpCondInterval time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:            lognoop.NewNoOpLogger(),
		Delayer:           SleepDelayer{},
		Platform:          NopPlatform{},
		CommandTimeout:    20 * time.Millisecond,
		DataTimeout:       2 * time.Second,
		ResetTimeout:      100 * time.Millisecond,
		PollStep:          time.Microsecond,
		IdentClockKHz:     240,
		OperatingClockKHz: 13000,
		OpCondRetries:     200, // 200 * 5 ms = 1 s
		OpCondInterval:    5 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithLogger sets the logger.
//
// Example:
//
//	s := msdc.New(controllers, msdc.WithLogger(logger))
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithDelayer replaces time.Sleep, e.g. by a busy wait on a hardware timer
// or by a no-op in simulations.
func WithDelayer(d Delayer) Option {
	return func(c *Config) {
		if d != nil {
			c.Delayer = d
		}
	}
}

// WithPlatform sets the clock, power and pin mux hooks.
func WithPlatform(p Platform) Option {
	return func(c *Config) {
		if p != nil {
			c.Platform = p
		}
	}
}

// WithCommandTimeout sets the command status timeout.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.CommandTimeout = timeout
		}
	}
}

// WithDataTimeout sets the timeout for the data of one block.
func WithDataTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.DataTimeout = timeout
		}
	}
}

// WithResetTimeout sets the timeout of the controller reset.
func WithResetTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ResetTimeout = timeout
		}
	}
}

// WithPollStep sets the delay between two status polls.
func WithPollStep(step time.Duration) Option {
	return func(c *Config) {
		if step > 0 {
			c.PollStep = step
		}
	}
}

// WithIdentClock sets the identification clock in kHz.
func WithIdentClock(kHz uint32) Option {
	return func(c *Config) {
		if kHz > 0 {
			c.IdentClockKHz = kHz
		}
	}
}

// WithOperatingClock sets the operating clock in kHz.
func WithOperatingClock(kHz uint32) Option {
	return func(c *Config) {
		if kHz > 0 {
			c.OperatingClockKHz = kHz
		}
	}
}

// WithOpCondRetries sets how often ACMD41 is sent before the card is
// considered dead.
func WithOpCondRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.OpCondRetries = retries
		}
	}
}

// WithOpCondInterval sets the delay between two ACMD41 attempts.
func WithOpCondInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval >= 0 {
			c.OpCondInterval = interval
		}
	}
}
