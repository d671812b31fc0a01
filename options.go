package sdfat

import (
	log "github.com/fclairamb/go-log"
	lognoop "github.com/fclairamb/go-log/noop"
)

type config struct {
	logger log.Logger
}

func defaultConfig() config {
	return config{
		logger: lognoop.NewNoOpLogger(),
	}
}

// Option configures Mount.
type Option func(*config)

// WithLogger sets the logger the volume reports geometry and read failures to.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
