package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestUoW_Repositories(t *testing.T) {
	db, _ := newMockPostgres(t)
	uow := NewUoW(db, newTestCipher(t), time.Second)

	cards, err := uow.CardRepository()
	require.NoError(t, err)
	assert.IsType(t, &cardRepository{}, cards)

	txs, err := uow.TransactionRepository()
	require.NoError(t, err)
	assert.IsType(t, &transactionRepository{}, txs)

	customers, err := uow.CustomerRepository()
	require.NoError(t, err)
	assert.IsType(t, &customerRepository{}, customers)

	_, err = NewUoW(db, nil, 0).CardRepository()
	assert.Error(t, err)
}

func TestUoW_PostgresLockTimeoutAndRowLock(t *testing.T) {
	db, mock := newMockPostgres(t)
	uow := NewUoW(db, newTestCipher(t), 1500*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '1500ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "cards" WHERE number_hash = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		cards, err := tx.CardRepository()
		if err != nil {
			return err
		}
		c, err := cards.FindByNumberForUpdate(context.Background(), "4000000000000001")
		assert.Nil(t, c)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_PostgresLockNotAvailable(t *testing.T) {
	db, mock := newMockPostgres(t)
	uow := NewUoW(db, newTestCipher(t), time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(&pgconnLockError)
	mock.ExpectRollback()

	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		cards, err := tx.CardRepository()
		if err != nil {
			return err
		}
		_, err = cards.FindByNumberForUpdate(context.Background(), "4000000000000001")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	uow := NewUoW(db, newTestCipher(t), time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		cards, err := tx.CardRepository()
		if err != nil {
			return err
		}
		if err := cards.Create(ctx, newTestCard(t, "4000000000000001", 1, "0")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cards, err := uow.CardRepository()
	require.NoError(t, err)
	c, err := cards.FindByNumber(ctx, "4000000000000001")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestUoW_CommitAndNestedDo(t *testing.T) {
	db := newTestDB(t)
	uow := NewUoW(db, newTestCipher(t), time.Second)
	ctx := context.Background()

	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		return tx.Do(ctx, func(inner repository.UnitOfWork) error {
			cards, err := inner.CardRepository()
			if err != nil {
				return err
			}
			return cards.Create(ctx, newTestCard(t, "4000000000000001", 1, "0"))
		})
	})
	require.NoError(t, err)

	cards, err := uow.CardRepository()
	require.NoError(t, err)
	c, err := cards.FindByNumber(ctx, "4000000000000001")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

var pgconnLockError = pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
