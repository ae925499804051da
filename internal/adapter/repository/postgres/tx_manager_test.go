package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}

func TestTxManager(t *testing.T) {
	beginErr := errors.New("begin failed")

	tests := []struct {
		name   string
		expect func(pgxmock.PgxPoolIface)
		finish func(*Tx, context.Context) error
		err    error
	}{
		{
			name: "commit",
			expect: func(p pgxmock.PgxPoolIface) {
				p.ExpectBegin()
				p.ExpectCommit()
			},
			finish: (*Tx).Commit,
		},
		{
			name: "rollback",
			expect: func(p pgxmock.PgxPoolIface) {
				p.ExpectBegin()
				p.ExpectRollback()
			},
			finish: (*Tx).Rollback,
		},
		{
			name: "begin error",
			expect: func(p pgxmock.PgxPoolIface) {
				p.ExpectBegin().WillReturnError(beginErr)
			},
			err: beginErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tt.expect(pool)

			tx, err := newTxManagerWithPool(pool).Begin(context.Background())
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := tt.finish(tx.(*Tx), context.Background()); err != nil {
				t.Fatalf("finish failed: %v", err)
			}

			assertExpectations(t, pool)
		})
	}
}

func TestConnRoutesThroughTx(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("DELETE FROM outbox_events").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	pool.ExpectBegin()
	pool.ExpectExec("DELETE FROM outbox_events").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	pool.ExpectCommit()

	if conn(pool, nil) != pool {
		t.Fatalf("expected pool without a transaction")
	}
	if err := queries(pool, nil).DeletePublishedEvents(context.Background(), timeToPgTimestamptz(testTime())); err != nil {
		t.Fatalf("pool exec failed: %v", err)
	}

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := queries(pool, tx).DeletePublishedEvents(context.Background(), timeToPgTimestamptz(testTime())); err != nil {
		t.Fatalf("tx exec failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, pool)
}
