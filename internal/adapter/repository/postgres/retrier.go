package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// PostgreSQL error codes for retryable errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// Retrier implements usecase.Retrier with exponential backoff. Deadlocks,
// serialization failures and lost reference claims re-run the whole unit of
// work so it re-reads state.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	metrics         *metrics.Metrics
}

// NewRetrier allows three retries within ten seconds.
func NewRetrier(log zerolog.Logger, metrics *metrics.Metrics) *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          log,
		metrics:         metrics,
	}
}

// Retry runs operation until it succeeds, fails permanently, or the retry
// budget is spent. The last error is returned unwrapped.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	log := logger.WithContext(ctx, r.logger)
	attempt := 0

	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}

		reason := retryReason(err)
		if reason == "" {
			return backoff.Permanent(err)
		}

		if r.metrics != nil {
			r.metrics.OperationRetries.Inc()
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("reason", reason).Msg("retrying unit of work")

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx))
}

func isRetryableError(err error) bool {
	return retryReason(err) != ""
}

// retryReason names the transient condition behind err, or "" when err is
// permanent.
func retryReason(err error) string {
	if errors.Is(err, domain.ErrReferenceConflict) {
		return "reference_conflict"
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	switch pgErr.Code {
	case pgErrDeadlock:
		return "deadlock"
	case pgErrSerializationFailure:
		return "serialization_failure"
	case pgErrLockNotAvailable:
		return "lock_not_available"
	}
	return ""
}
