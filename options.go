package mrqd

import (
	"github.com/nbtaylor/mrqd/delegation"
	"github.com/nbtaylor/mrqd/readindicator"
)

// DefaultPatience is the number of yield cycles (spin iterations waiting
// for a contended mutex) a reader tolerates before raising the write
// barrier, matching the reference implementation's
// MRQD_READ_PATIENCE_LIMIT.
const DefaultPatience = 1000

type config struct {
	groups        int
	patience      int
	queueCapacity int
}

// Option configures an MRQDLock at construction time.
type Option func(*config)

// WithGroups sets the number of read-indicator stripes (G). Values <= 0
// fall back to readindicator.DefaultGroups.
func WithGroups(groups int) Option {
	return func(c *config) { c.groups = groups }
}

// WithPatience sets the reader patience limit (P): the number of yield
// cycles a reader spins on a contended mutex before raising the write
// barrier. Values <= 0 fall back to DefaultPatience.
func WithPatience(patience int) Option {
	return func(c *config) { c.patience = patience }
}

// WithQueueCapacity sets the delegation queue's per-session pending
// message capacity. Values <= 0 fall back to delegation.DefaultCapacity.
func WithQueueCapacity(capacity int) Option {
	return func(c *config) { c.queueCapacity = capacity }
}

func newConfig(opts ...Option) config {
	cfg := config{
		groups:        readindicator.DefaultGroups,
		patience:      DefaultPatience,
		queueCapacity: delegation.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.groups <= 0 {
		cfg.groups = readindicator.DefaultGroups
	}
	if cfg.patience <= 0 {
		cfg.patience = DefaultPatience
	}
	if cfg.queueCapacity <= 0 {
		cfg.queueCapacity = delegation.DefaultCapacity
	}
	return cfg
}
