package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirasaad/bankcards/infra"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Repositories handed out inside Do share its database transaction.
type UoW struct {
	db          *gorm.DB
	tx          *gorm.DB
	cipher      *NumberCipher
	lockTimeout time.Duration
}

// NewUoW creates a new UoW for the given *gorm.DB. A positive lockTimeout
// bounds row lock waits on Postgres.
func NewUoW(db *gorm.DB, cipher *NumberCipher, lockTimeout time.Duration) *UoW {
	return &UoW{db: db, cipher: cipher, lockTimeout: lockTimeout}
}

// Do runs fn in a transaction. A UoW that is already inside a transaction
// runs fn in that same transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if infra.IsPostgres(tx) && u.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		txnUow := &UoW{db: u.db, tx: tx, cipher: u.cipher, lockTimeout: u.lockTimeout}
		return fn(txnUow)
	})
	return MapGormErrorToDomain(err, domain.ErrCardAlreadyExists)
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// CardRepository returns the card store bound to the current session.
func (u *UoW) CardRepository() (repository.CardRepository, error) {
	if u.cipher == nil {
		return nil, fmt.Errorf("card repository: number cipher is not configured")
	}
	return NewCardRepository(u.session(), u.cipher), nil
}

// TransactionRepository returns the transaction log bound to the current session.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return NewTransactionRepository(u.session()), nil
}

// CustomerRepository returns the customer repository bound to the current session.
func (u *UoW) CustomerRepository() (repository.CustomerRepository, error) {
	return NewCustomerRepository(u.session()), nil
}
