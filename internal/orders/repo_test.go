package orders

import (
	"context"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"regexp"
	"testing"
	"time"
)

var (
	sqlSelectStock = regexp.QuoteMeta(`SELECT available_quantity::text FROM products WHERE id=$1 FOR UPDATE`)
	sqlDecrement   = regexp.QuoteMeta(`UPDATE products SET available_quantity = available_quantity - $2::numeric`)
	sqlIncrement   = regexp.QuoteMeta(`UPDATE products SET available_quantity = available_quantity + $2::numeric`)
	sqlUpdateOrder = regexp.QuoteMeta(`UPDATE orders SET`)
)

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Repo{DB: mock}, mock
}

func TestRepoReserveLocksThenDecrements(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlSelectStock).WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"available_quantity"}).AddRow("10"))
	mock.ExpectQuery(sqlDecrement).WithArgs("p1", "6").
		WillReturnRows(pgxmock.NewRows([]string{"available_quantity"}).AddRow("4"))
	mock.ExpectCommit()

	var left decimal.Decimal
	err := repo.WithTx(ctx, func(tx Tx) error {
		var err error
		left, err = tx.ReserveStock(ctx, "p1", decimal.NewFromInt(6))
		return err
	})
	require.NoError(t, err)
	assert.True(t, left.Equal(decimal.NewFromInt(4)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoReserveInsufficientRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlSelectStock).WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"available_quantity"}).AddRow("4"))
	mock.ExpectRollback()

	err := repo.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ReserveStock(ctx, "p1", decimal.NewFromInt(5))
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoReleaseIsSingleStatement(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs("p1", "2.5").
		WillReturnRows(pgxmock.NewRows([]string{"available_quantity"}).AddRow("6.5"))
	mock.ExpectCommit()

	err := repo.WithTx(ctx, func(tx Tx) error {
		left, err := tx.ReleaseStock(ctx, "p1", decimal.RequireFromString("2.5"))
		assert.True(t, left.Equal(decimal.RequireFromString("6.5")))
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGuardedUpdateMiss(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(sqlUpdateOrder).
		WithArgs("o1", "delivered", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"shipped", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.WithTx(ctx, func(tx Tx) error {
		o := &Order{ID: "o1", Status: StatusDelivered, UpdatedAt: now}
		return tx.UpdateOrder(ctx, o, Guard{Status: StatusShipped, DueBy: &now})
	})
	require.ErrorIs(t, err, ErrOrderChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoDueForAutoConfirm(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a, b := now.Add(-2*time.Hour), now.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, auto_confirm_at FROM orders`)).
		WithArgs(now, (*time.Time)(nil), "", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "auto_confirm_at"}).AddRow("a", a).AddRow("b", b))

	due, err := repo.DueForAutoConfirm(ctx, now, nil, 50)
	require.NoError(t, err)
	assert.Equal(t, []DueOrder{{ID: "a", AutoConfirmAt: a}, {ID: "b", AutoConfirmAt: b}}, due)

	mock.ExpectQuery(regexp.QuoteMeta(`(auto_confirm_at, id) > ($2::timestamptz, $3::text)`)).
		WithArgs(now, &b, "b", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "auto_confirm_at"}))

	due, err = repo.DueForAutoConfirm(ctx, now, &due[1], 50)
	require.NoError(t, err)
	assert.Empty(t, due)
	require.NoError(t, mock.ExpectationsWereMet())
}
