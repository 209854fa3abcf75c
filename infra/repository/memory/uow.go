package memory

import (
	"context"

	"github.com/amirasaad/bankcards/pkg/repository"
)

// UoW implements repository.UnitOfWork over a Store.
type UoW struct {
	store *Store
	tx    *txState
}

// NewUoW creates a unit of work over store.
func NewUoW(store *Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn with staged writes and commits them when fn succeeds. Row locks
// taken inside fn are released after the commit or rollback.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	t := newTxState()
	defer func() { u.store.unlock(t.held) }()

	if err := fn(&UoW{store: u.store, tx: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.commit(t)
}

func (u *UoW) CardRepository() (repository.CardRepository, error) {
	return &cardRepository{store: u.store, tx: u.tx}, nil
}

func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return &transactionRepository{store: u.store, tx: u.tx}, nil
}

func (u *UoW) CustomerRepository() (repository.CustomerRepository, error) {
	return &customerRepository{store: u.store, tx: u.tx}, nil
}

// write stages fn into the current unit of work, or commits it on its own
// when there is none.
func write(store *Store, tx *txState, fn func(t *txState) error) error {
	if tx != nil {
		return fn(tx)
	}
	t := newTxState()
	if err := fn(t); err != nil {
		return err
	}
	return store.commit(t)
}
