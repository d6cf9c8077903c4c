package constants

import "time"

const (
	// DefaultOperationTimeout bounds a single remote attempt.
	DefaultOperationTimeout = 15 * time.Second

	// DefaultReadAttempts / DefaultWriteAttempts are the per-operation
	// retry budgets. Reads recover cheaply so they get fewer tries.
	DefaultReadAttempts  = 3
	DefaultWriteAttempts = 4

	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 8 * time.Second

	// DefaultChangeBufferSize is the per-subscriber buffer for realtime
	// change feeds and the connectivity stream.
	DefaultChangeBufferSize = 16
)

const (
	DefaultServerSelectionTimeout = 5 * time.Second
	DefaultHeartbeatInterval      = 10 * time.Second
	DefaultMaxPoolSize            = 100
)
