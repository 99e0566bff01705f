package utils

import (
	"time"
)

// Dispatch constants
const (
	// InterCallDispatchDelay spaces successive dispatches within a batch to
	// avoid bursting the voice provider.
	InterCallDispatchDelay = 1 * time.Second

	// DefaultSchedulerInterval is how often the run scheduler triggers dispatch
	// cycles for running runs.
	DefaultSchedulerInterval = 30 * time.Second

	// StuckCallingTimeout is how long a row may sit in calling before the sweep
	// treats the provider callback as lost and fails the row.
	StuckCallingTimeout = 2 * time.Hour

	// StuckSweepInterval is how often the stuck-row sweep runs.
	StuckSweepInterval = 10 * time.Minute

	// DispatchLockTTL bounds how long a per-run dispatch lock is held when the
	// holder dies mid-cycle.
	DispatchLockTTL = 2 * time.Minute
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
