package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// BalanceRefresher recomputes cached balances after a commit.
type BalanceRefresher interface {
	Refresh(ctx context.Context, restaurantID string, accountIDs []string) error
}

// requireBookkeeper fails with ErrUnauthorized unless the principal may
// write the restaurant's books.
func requireBookkeeper(ctx context.Context, authz Authorizer, principal domain.Principal, restaurantID string) error {
	if principal.UserID == "" && !principal.Service {
		return domain.ErrUnauthorized
	}

	role, err := authz.RoleFor(ctx, principal, restaurantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return domain.ErrUnauthorized
		}
		return err
	}

	if !role.CanWrite() {
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrInsufficientRole)
	}

	return nil
}

// runInTx executes fn as one bounded unit of work.
func runInTx(ctx context.Context, txManager TransactionManager, fn func(ctx context.Context, tx Transaction) error) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// retryInTx re-runs the whole unit of work when the retrier deems the
// failure transient, so every attempt re-reads locked state.
func retryInTx(ctx context.Context, retrier Retrier, txManager TransactionManager, fn func(ctx context.Context, tx Transaction) error) error {
	return retrier.Retry(ctx, func() error {
		return runInTx(ctx, txManager, fn)
	})
}

// checkPeriodOpen fails with ErrPeriodClosed when date falls in a closed
// fiscal period. A nil calendar treats every period as open.
func checkPeriodOpen(ctx context.Context, calendar FiscalCalendar, restaurantID string, date time.Time) error {
	if calendar == nil {
		return nil
	}
	closed, err := calendar.IsClosed(ctx, restaurantID, date)
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%w: %s", domain.ErrPeriodClosed, date.Format(time.DateOnly))
	}
	return nil
}

func observeOperation(m *metrics.Metrics, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.TransitionRejected.WithLabelValues(operation, string(domain.ErrorKind(err))).Inc()
	}
}

func principalID(p domain.Principal) string {
	if p.UserID != "" {
		return p.UserID
	}
	if p.Service {
		return "service"
	}
	return ""
}

func newAuditLog(
	ctx context.Context,
	id string,
	principal domain.Principal,
	restaurantID string,
	action domain.AuditAction,
	resourceType, resourceID string,
	before, after any,
) *domain.AuditLog {
	return &domain.AuditLog{
		ID:           id,
		RestaurantID: restaurantID,
		UserID:       principalID(principal),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    logger.RequestID(ctx),
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}
}

func newOutboxEvent(id, restaurantID, aggregateType, aggregateID, eventType string, payload any) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		RestaurantID:  restaurantID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.MarshalState(payload),
		CreatedAt:     time.Now().UTC(),
	}
}

// refreshAfterCommit runs the explicit balance recompute for touched
// accounts. Failures leave the cache stale until the next RebuildAll and are
// only logged.
func refreshAfterCommit(ctx context.Context, log zerolog.Logger, balances BalanceRefresher, restaurantID string, accountIDs []string) {
	if balances == nil || len(accountIDs) == 0 {
		return
	}
	if err := balances.Refresh(ctx, restaurantID, accountIDs); err != nil {
		l := logger.WithContext(ctx, log)
		l.Warn().Err(err).
			Str("restaurant_id", restaurantID).
			Strs("account_ids", accountIDs).
			Msg("balance refresh failed")
	}
}

func mergeAccountIDs(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, id := range set {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
