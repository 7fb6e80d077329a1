package publish

import (
	"time"

	"github.com/hypertrace/artifact-publisher/staging"
)

// Config is the immutable configuration of an Orchestrator. The orchestrator keeps its own copy.
type Config struct {
	Retry staging.RetryPolicy
	// Parallelism is the number of targets published concurrently.
	Parallelism int
	// AutoRelease releases staging targets after a successful close. Direct and local targets are always released.
	AutoRelease bool
	// DropTimeout bounds the cleanup of a failed or cancelled session.
	DropTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Retry:       staging.DefaultRetryPolicy(),
		Parallelism: 3,
		DropTimeout: staging.DefaultOptions().DropTimeout,
	}
}

func (c Config) normalized() Config {
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.DropTimeout <= 0 {
		c.DropTimeout = staging.DefaultOptions().DropTimeout
	}
	return c
}
