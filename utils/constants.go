package utils

import (
	"time"
)

// Counter increment constants
const (
	// CounterMaxRetries bounds the compare-and-swap retry loop
	CounterMaxRetries = 3

	// CounterRetryBackoff is the base backoff between CAS attempts (doubles per attempt)
	CounterRetryBackoff = 100 * time.Millisecond

	// CounterRetryJitter is the maximum random jitter added to each backoff
	CounterRetryJitter = 50 * time.Millisecond
)

// Distributed lock constants
const (
	// LockTTL bounds the blast radius of a crashed lock holder
	LockTTL = 5 * time.Second

	// LockMaxRetries bounds acquisition attempts under contention
	LockMaxRetries = 5

	// LockRetryDelay is the base delay between acquisition attempts
	LockRetryDelay = 100 * time.Millisecond

	// LockRetryJitter is the maximum random jitter added to each delay
	LockRetryJitter = 50 * time.Millisecond
)

// Reservation constants
const (
	// ReservationTTL is how long a reserved number stays claimable (5 minutes)
	ReservationTTL = 5 * time.Minute

	// ReservationSweepInterval is how often abandoned reservations are cancelled
	ReservationSweepInterval = 5 * time.Minute
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Request context keys
const (
	RequestIDKey ContextKey = "request_id"
	IPAddressKey ContextKey = "ip_address"
	UserAgentKey ContextKey = "user_agent"
	EndpointKey  ContextKey = "endpoint"

	// CancelFuncKey carries the request context's cancel func so deferred
	// cleanup can release the timer.
	CancelFuncKey ContextKey = "cancel_func"
)

// Format token constants
const (
	// MissingCodeSentinel substitutes organization/discipline lookup misses
	MissingCodeSentinel = "GEN"

	// MissingProjectSentinel substitutes project code lookup misses
	MissingProjectSentinel = "PROJ"

	// MissingTypeSentinel substitutes document type lookup misses
	MissingTypeSentinel = "DOC"
)
