package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a single transaction attempt.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultRuleBatchLimit bounds the events processed by one ApplyBatch call.
	DefaultRuleBatchLimit = 100

	// IdempotencyKeyTTL is how long a replayable HTTP response is kept.
	IdempotencyKeyTTL = 24 * time.Hour
)
